package models

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Title           string     `json:"title"`
	FileName        string     `json:"file_name"`
	FileSize        int64      `json:"file_size"`
	FileType        string     `json:"file_type"`
	StoragePath     *string    `json:"-"`
	ReadingProgress int        `json:"reading_progress"` // 0-100
	Tags            []string   `json:"tags"`
	Subject         *string    `json:"subject"`
	IsPublic        bool       `json:"is_public"`
	ExtractedText   *string    `json:"extracted_text,omitempty"`
	TotalPages      *int       `json:"total_pages"`
	UploadedAt      time.Time  `json:"uploaded_at"`
	LastReadAt      *time.Time `json:"last_read_at"`
}

type UpdateDocumentRequest struct {
	Title    *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Tags     []string `json:"tags" validate:"omitempty,dive,min=1,max=40"`
	Subject  *string  `json:"subject" validate:"omitempty,max=80"`
	IsPublic *bool    `json:"is_public"`
}

type UpdateProgressRequest struct {
	Progress int `json:"progress"`
}
