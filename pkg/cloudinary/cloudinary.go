// Package cloudinary stores section attachments in Cloudinary.
package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by New when any credential is missing.
var ErrNotConfigured = errors.New("cloudinary credentials must be provided")

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Configured reports whether every credential is present.
func (c Config) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Storage uploads files to a Cloudinary folder.
type Storage struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary-backed storage.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Storage{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the file and returns its secure URL. Non-media files are stored as raw
// resources so PDFs and archives keep their bytes untouched.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     PublicID(name, uuid.NewString()),
		ResourceType: resourceType(name),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("file uploaded to cloudinary")
	return result.SecureURL, nil
}

// Ping checks credentials against the admin API; used by the health endpoint.
func (s *Storage) Ping(ctx context.Context) error {
	if _, err := s.client.Admin.Ping(ctx); err != nil {
		return fmt.Errorf("cloudinary ping: %w", err)
	}
	return nil
}

// PublicID derives a readable, collision-free public id from the file name. Raw
// resources keep their extension.
func PublicID(name, unique string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	if len(unique) > 8 {
		unique = unique[:8]
	}
	id := fmt.Sprintf("%s-%s", strings.ToLower(base), unique)
	if resourceType(name) == "raw" {
		id += ext
	}
	return id
}

func resourceType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp":
		return "image"
	default:
		return "raw"
	}
}
