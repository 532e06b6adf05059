package dto

import "taxdesk/internal/models"

type DocumentResponse struct {
	ID        string `json:"id"`
	Year      int    `json:"year"`
	Type      string `json:"type"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	CreatedAt string `json:"created_at"`
}

// UploadDocumentResponse returns the stored document plus whatever the field
// extractor pulled out of it. ExtractedRecords may contain the single
// "No data found" sentinel when nothing was recognized.
type UploadDocumentResponse struct {
	Document         DocumentResponse `json:"document"`
	ExtractedRecords []models.Record  `json:"extracted_records"`
}
