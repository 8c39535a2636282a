package dto

import "github.com/noah-isme/coursetrack-api/internal/models"

// UploadResponse describes a stored file. Deduplicated is set when the bytes were
// already stored and the earlier URL is returned.
type UploadResponse struct {
	URL          string `json:"url"`
	SizeBytes    int64  `json:"sizeBytes"`
	Kind         string `json:"kind"`
	MimeType     string `json:"mimeType"`
	Checksum     string `json:"checksum"`
	FileName     string `json:"fileName"`
	Deduplicated bool   `json:"deduplicated"`
}

// NewUploadResponse converts a stored record. fileName overrides the stored name
// when a deduplicated upload arrived under a different one.
func NewUploadResponse(record models.UploadRecord, fileName string, deduplicated bool) UploadResponse {
	if fileName == "" {
		fileName = record.FileName
	}
	return UploadResponse{
		URL:          record.URL,
		SizeBytes:    record.SizeBytes,
		Kind:         record.Kind,
		MimeType:     record.MimeType,
		Checksum:     record.Checksum,
		FileName:     fileName,
		Deduplicated: deduplicated,
	}
}
