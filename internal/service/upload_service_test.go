package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/coursetrack-api/internal/models"
)

type storageStub struct {
	uploaded bytes.Buffer
	calls    int
}

func (s *storageStub) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	s.calls++
	s.uploaded.Reset()
	_, err := s.uploaded.ReadFrom(reader)
	if err != nil {
		return "", err
	}
	return "https://cdn.example.com/" + name, nil
}

type uploadRepoStub struct {
	records []models.UploadRecord
}

func (u *uploadRepoStub) Create(ctx context.Context, record *models.UploadRecord) error {
	record.ID = uint(len(u.records) + 1)
	u.records = append(u.records, *record)
	return nil
}

func (u *uploadRepoStub) FindByChecksum(ctx context.Context, checksum string) (models.UploadRecord, error) {
	for i := len(u.records) - 1; i >= 0; i-- {
		if u.records[i].Checksum == checksum {
			return u.records[i], nil
		}
	}
	return models.UploadRecord{}, gorm.ErrRecordNotFound
}

func TestUploadServiceRejectsSize(t *testing.T) {
	storage := &storageStub{}
	repo := &uploadRepoStub{}
	svc := NewUploadService(storage, repo, 0, testLogger())

	file := buildFileHeader(t, "file.pdf", bytes.Repeat([]byte("a"), 2*1024*1024))

	_, err := svc.Upload(context.Background(), file, nil)
	require.ErrorIs(t, err, ErrUploadTooLarge)
	require.Zero(t, storage.calls)
	require.Empty(t, repo.records)
}

func TestUploadServiceTypeValidation(t *testing.T) {
	storage := &storageStub{}
	repo := &uploadRepoStub{}
	svc := NewUploadService(storage, repo, DefaultUploadMaxBytes, testLogger())

	file := buildFileHeader(t, "setup.exe", []byte("MZ\x90\x00\x03\x00\x00\x00\x04\x00\x00\x00\xff\xff"))
	_, err := svc.Upload(context.Background(), file, nil)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
}

func TestUploadServiceAcceptsPlainText(t *testing.T) {
	storage := &storageStub{}
	repo := &uploadRepoStub{}
	svc := NewUploadService(storage, repo, DefaultUploadMaxBytes, testLogger())

	file := buildFileHeader(t, "Read Me.txt", []byte("plain text"))
	resp, err := svc.Upload(context.Background(), file, nil)
	require.NoError(t, err)
	require.Equal(t, "text/plain", resp.MimeType)
	require.Equal(t, models.MaterialText, resp.Kind)
	require.Equal(t, "read-me.txt", resp.FileName)
	require.False(t, resp.Deduplicated)
}

func TestUploadServiceSuccess(t *testing.T) {
	storage := &storageStub{}
	repo := &uploadRepoStub{}
	svc := NewUploadService(storage, repo, DefaultUploadMaxBytes, testLogger())

	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	file := buildFileHeader(t, "image.png", pngHeader)

	userID := uint(7)
	resp, err := svc.Upload(context.Background(), file, &userID)
	require.NoError(t, err)
	require.Contains(t, resp.URL, "image")
	require.Len(t, repo.records, 1)
	require.Equal(t, "image/png", repo.records[0].MimeType)
	require.Equal(t, models.MaterialImage, repo.records[0].Kind)
	require.Equal(t, userID, *repo.records[0].UserID)
	require.True(t, strings.HasPrefix(repo.records[0].StorageKey, "image-"))
	require.True(t, strings.HasSuffix(repo.records[0].StorageKey, ".png"))
}

func TestUploadServiceDeduplicatesByChecksum(t *testing.T) {
	storage := &storageStub{}
	repo := &uploadRepoStub{}
	svc := NewUploadService(storage, repo, DefaultUploadMaxBytes, testLogger())

	first, err := svc.Upload(context.Background(), buildFileHeader(t, "notes.txt", []byte("same bytes")), nil)
	require.NoError(t, err)

	second, err := svc.Upload(context.Background(), buildFileHeader(t, "copy.txt", []byte("same bytes")), nil)
	require.NoError(t, err)
	require.Equal(t, first.URL, second.URL)
	require.Equal(t, first.Checksum, second.Checksum)
	require.Equal(t, "copy.txt", second.FileName)
	require.True(t, second.Deduplicated)
	require.Equal(t, 1, storage.calls)
	require.Len(t, repo.records, 1)
}

func TestUploadServiceRejectsZipBomb(t *testing.T) {
	storage := &storageStub{}
	svc := NewUploadService(storage, &uploadRepoStub{}, 1024, testLogger())

	archive := &bytes.Buffer{}
	writer := zip.NewWriter(archive)
	entry, err := writer.Create("zeros.txt")
	require.NoError(t, err)
	_, err = entry.Write(make([]byte, 64*1024))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.Less(t, archive.Len(), 1024)

	_, err = svc.Upload(context.Background(), buildFileHeader(t, "bundle.zip", archive.Bytes()), nil)
	require.ErrorIs(t, err, ErrUploadScanFailed)
	require.Zero(t, storage.calls)
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "week-1-notes.pdf", sanitizeFileName("Week 1 Notes.PDF", ".pdf"))
	require.Equal(t, "slides.pdf", sanitizeFileName("../../slides.pdf", ".pdf"))
	require.Equal(t, "diagram.png", sanitizeFileName("diagram", ".png"))
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
