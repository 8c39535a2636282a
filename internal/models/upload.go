package models

import "time"

// Material kinds accepted as section attachments.
const (
	MaterialImage    = "image"
	MaterialDocument = "document"
	MaterialArchive  = "archive"
	MaterialText     = "text"
)

// UploadRecord is a file stored for course sections. Records are keyed by content
// checksum so a re-upload of the same bytes reuses the stored URL.
type UploadRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     *uint     `gorm:"index" json:"userId"`
	FileName   string    `gorm:"size:255;not null" json:"fileName"`
	StorageKey string    `gorm:"size:255;not null" json:"storageKey"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	Kind       string    `gorm:"size:16;not null" json:"kind"`
	MimeType   string    `gorm:"size:128;not null" json:"mimeType"`
	SizeBytes  int64     `gorm:"not null" json:"sizeBytes"`
	Checksum   string    `gorm:"size:64;uniqueIndex" json:"checksum"`
	CreatedAt  time.Time `json:"createdAt"`
}
