package entity

import (
	"time"

	"github.com/google/uuid"
)

// Asset represents an uploaded file's metadata. Rows are created by the
// upload API; the worker only reads them.
type Asset struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	StoragePath string    `json:"storage_path"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
