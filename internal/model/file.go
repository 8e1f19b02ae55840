package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File represents an uploaded file stored in object storage. Messages of type
// image/file and conversation avatars reference files by id; a file can only
// be attached by its owner.
type File struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID  uuid.UUID `json:"owner_id" gorm:"type:uuid;index;not null"`
	Key      string    `json:"-" gorm:"size:500;not null"` // object key in storage
	Bucket   string    `json:"-" gorm:"size:255;not null"`
	URL      string    `json:"url" gorm:"size:1000;not null"`
	FileName string    `json:"file_name" gorm:"size:255"`
	FileSize int64     `json:"file_size"`
	MimeType string    `json:"mime_type" gorm:"size:100"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Owner User `json:"-" gorm:"foreignKey:OwnerID"`
}

// BeforeCreate assigns a UUID when none was set
func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// UploadResponse is returned after a successful file upload
type UploadResponse struct {
	FileID   uuid.UUID `json:"file_id"`
	URL      string    `json:"url"`
	FileName string    `json:"file_name"`
	FileSize int64     `json:"file_size"`
	MimeType string    `json:"mime_type"`
}
