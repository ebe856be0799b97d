package articles

import (
	"time"

	"gorm.io/datatypes"
)

type UploadKind string

const (
	UploadBibTeX   UploadKind = "bibtex"
	UploadDocument UploadKind = "document"
)

// ImportError describes one entry that could not be imported.
type ImportError struct {
	Entry string `json:"entry"`
	Error string `json:"error"`
}

type UploadedFile struct {
	ID             uint       `gorm:"primaryKey"`
	ProjectID      uint       `gorm:"not null;index"`
	UploadedByID   uint       `gorm:"not null"`
	FileName       string     `gorm:"type:varchar(255);not null"`
	StoragePath    string     `gorm:"type:varchar(500)"`
	Kind           UploadKind `gorm:"type:varchar(16);not null"`
	ProcessedCount int        `gorm:"not null;default:0"`
	Errors         datatypes.JSONSlice[ImportError]
	CreatedAt      time.Time
}
