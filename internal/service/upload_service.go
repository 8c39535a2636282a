package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/coursetrack-api/internal/dto"
	"github.com/noah-isme/coursetrack-api/internal/models"
	"github.com/noah-isme/coursetrack-api/internal/observability"
	"github.com/noah-isme/coursetrack-api/internal/repository"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the detected content type is not a course material.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadScanFailed indicates the archive could not be inspected or is a zip bomb.
	ErrUploadScanFailed = errors.New("file scanning failed")

	errUploadMissing = errors.New("file is required")
)

// DefaultUploadMaxBytes caps section attachments at 1 MiB.
const DefaultUploadMaxBytes int64 = 1 << 20

// archiveExpansionLimit bounds the uncompressed size of an archive relative to the upload cap.
const archiveExpansionLimit = 20

// Accepted MIME types per material kind. Any image/* is accepted as well.
var (
	documentTypes = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.ms-excel",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
	archiveTypes = []string{"application/zip", "application/x-zip-compressed"}
	textTypes    = []string{"text/plain", "text/markdown", "text/csv"}
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService validates section files and stores each distinct content once.
type UploadService interface {
	Upload(ctx context.Context, file *multipart.FileHeader, userID *uint) (dto.UploadResponse, error)
}

type uploadService struct {
	storage FileStorage
	repo    repository.UploadRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewUploadService constructs an upload service. maxBytes falls back to DefaultUploadMaxBytes.
func NewUploadService(storage FileStorage, repo repository.UploadRepository, maxBytes int64, logger zerolog.Logger) UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	return &uploadService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: maxBytes,
		tracer:  otel.Tracer("github.com/noah-isme/coursetrack-api/internal/service/upload"),
	}
}

// material is an upload that passed validation and is ready to store.
type material struct {
	name     string
	kind     string
	mime     string
	checksum string
	payload  []byte
}

// storageKey makes the stored object name unique per content.
func (m material) storageKey() string {
	ext := filepath.Ext(m.name)
	return strings.TrimSuffix(m.name, ext) + "-" + m.checksum[:12] + ext
}

func (s *uploadService) Upload(ctx context.Context, file *multipart.FileHeader, userID *uint) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store", trace.WithAttributes(attribute.Int64("upload.max_bytes", s.maxSize)))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	item, reason, err := s.inspect(file)
	if err != nil {
		if reason != "" {
			observability.UploadRejected().WithLabelValues(reason).Inc()
			s.logger.Warn().Err(err).Str("reason", reason).Msg("upload rejected")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected: "+reason)
		return dto.UploadResponse{}, err
	}
	span.SetAttributes(
		attribute.String("upload.kind", item.kind),
		attribute.String("upload.mime", item.mime),
		attribute.Int64("upload.size_bytes", int64(len(item.payload))),
	)

	if existing, err := s.repo.FindByChecksum(ctx, item.checksum); err == nil && existing.URL != "" {
		observability.UploadRequests().WithLabelValues(item.kind, "true").Inc()
		span.SetStatus(codes.Ok, "deduplicated")
		return dto.NewUploadResponse(existing, item.name, true), nil
	}

	url, err := s.storage.Upload(ctx, item.storageKey(), bytes.NewReader(item.payload))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.UploadResponse{}, err
	}

	record := models.UploadRecord{
		UserID:     userID,
		FileName:   item.name,
		StorageKey: item.storageKey(),
		URL:        url,
		Kind:       item.kind,
		MimeType:   item.mime,
		SizeBytes:  int64(len(item.payload)),
		Checksum:   item.checksum,
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		// a concurrent upload of the same bytes won the unique checksum
		if existing, findErr := s.repo.FindByChecksum(ctx, item.checksum); findErr == nil {
			return dto.NewUploadResponse(existing, item.name, true), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.UploadResponse{}, err
	}

	observability.UploadRequests().WithLabelValues(item.kind, "false").Inc()
	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().Str("key", record.StorageKey).Str("kind", record.Kind).Int64("size", record.SizeBytes).Msg("upload stored")

	return dto.NewUploadResponse(record, "", false), nil
}

// inspect reads at most maxSize+1 bytes and classifies them. reason labels rejections for metrics.
func (s *uploadService) inspect(file *multipart.FileHeader) (material, string, error) {
	if file == nil {
		return material{}, "", errUploadMissing
	}
	if file.Size > s.maxSize {
		return material{}, "size", ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return material{}, "", err
	}
	defer handle.Close()

	payload, err := io.ReadAll(io.LimitReader(handle, s.maxSize+1))
	if err != nil {
		return material{}, "", err
	}
	if int64(len(payload)) > s.maxSize {
		return material{}, "size", ErrUploadTooLarge
	}

	detected := mimetype.Detect(payload)
	mime, kind, ok := classifyMaterial(detected.String())
	if !ok {
		return material{}, "type", fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, mime)
	}
	if kind == models.MaterialArchive {
		if err := checkArchive(payload, s.maxSize*archiveExpansionLimit); err != nil {
			return material{}, "scan", err
		}
	}

	sum := sha256.Sum256(payload)
	return material{
		name:     sanitizeFileName(file.Filename, detected.Extension()),
		kind:     kind,
		mime:     mime,
		checksum: hex.EncodeToString(sum[:]),
		payload:  payload,
	}, "", nil
}

// classifyMaterial strips MIME parameters and reports the material kind.
func classifyMaterial(detected string) (string, string, bool) {
	mime := strings.ToLower(strings.TrimSpace(detected))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return mime, models.MaterialImage, true
	case slices.Contains(documentTypes, mime):
		return mime, models.MaterialDocument, true
	case slices.Contains(archiveTypes, mime):
		return mime, models.MaterialArchive, true
	case slices.Contains(textTypes, mime):
		return mime, models.MaterialText, true
	default:
		return mime, "", false
	}
}

func checkArchive(payload []byte, limit int64) error {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrUploadScanFailed
	}
	var expanded uint64
	for _, entry := range reader.File {
		expanded += entry.UncompressedSize64
		if expanded > uint64(limit) {
			return fmt.Errorf("archive expands past %d bytes: %w", limit, ErrUploadScanFailed)
		}
	}
	return nil
}

// sanitizeFileName lowercases the name and keeps only [a-z0-9_-] in the stem.
// fallbackExt is used when the client name has no extension.
func sanitizeFileName(name, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	stem = strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, stem), "-")
	if stem == "" {
		stem = "upload-" + strconv.FormatInt(time.Now().Unix(), 10)
	}
	if ext == "" {
		ext = fallbackExt
	}
	if ext == "" {
		ext = ".bin"
	}
	return stem + ext
}
