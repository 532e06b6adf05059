package models

import (
	"time"

	"github.com/google/uuid"
)

// TaxDocument is the metadata row for one uploaded file. The extracted
// contents live in the per-year TaxData aggregate, not here.
type TaxDocument struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	Year         int       `db:"year"`
	DocumentType string    `db:"document_type"`
	FileName     string    `db:"file_name"`
	FilePath     string    `db:"file_path"`
	FileSize     int64     `db:"file_size"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
