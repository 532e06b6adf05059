package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"taxdesk/internal/dto"
	"taxdesk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNotDocumentOwner = errors.New("document belongs to another user")
	ErrFileMissing      = errors.New("file not found on disk")
)

// extractionFailedText is stored as the document text when the whole
// extraction failed. It is distinguishable from the parser's "No data found"
// sentinel: the former means OCR broke, the latter means OCR worked but no
// fields were recognized.
const extractionFailedText = "Failed to extract text"

// rawTextPreviewLimit caps the stored preview of assembled text, in runes.
const rawTextPreviewLimit = 500

// TaxStore is the persistence boundary for documents and per-year aggregates.
// Implemented by repository.TaxRepository; tests swap in an in-memory fake.
type TaxStore interface {
	CreateDocument(ctx context.Context, doc *models.TaxDocument) error
	FindDocumentsByUser(ctx context.Context, userID uuid.UUID) ([]*models.TaxDocument, error)
	FindDocumentByID(ctx context.Context, id uuid.UUID) (*models.TaxDocument, error)
	FindDataByUserYear(ctx context.Context, userID uuid.UUID, year int) (*models.TaxData, error)
	FindAllDataByUser(ctx context.Context, userID uuid.UUID) ([]*models.TaxData, error)
	UpsertTaxData(ctx context.Context, userID uuid.UUID, year int, data json.RawMessage) (*models.TaxData, error)
	AppendDocumentEntry(ctx context.Context, userID uuid.UUID, year int, entry models.DocumentEntry) (*models.TaxData, error)
}

// TextSource produces the assembled text of one stored file.
type TextSource interface {
	ExtractText(ctx context.Context, filePath string) (string, error)
}

// TaxService runs the ingestion pipeline: store the upload, assemble its
// text, extract fields, and merge the result into the user's per-year
// aggregate.
type TaxService struct {
	store     TaxStore
	text      TextSource
	parser    *ParserService
	uploadDir string
	logger    *zap.Logger
}

func NewTaxService(store TaxStore, text TextSource, parser *ParserService, uploadDir string, logger *zap.Logger) *TaxService {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		logger.Warn("Failed to create upload directory", zap.Error(err))
	}

	return &TaxService{
		store:     store,
		text:      text,
		parser:    parser,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// UploadDocument ingests one uploaded file. Extraction failures degrade (the
// document row survives with a "Failed to extract text" preview and a
// sentinel record); only persistence failures fail the call.
func (s *TaxService) UploadDocument(ctx context.Context, userID uuid.UUID, file io.Reader, fileName string, year int, docType string) (*dto.UploadDocumentResponse, error) {
	fileID := uuid.New()
	filePath := filepath.Join(s.uploadDir, fileID.String()+filepath.Ext(fileName))

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	fileSize, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		os.Remove(filePath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	now := time.Now()
	doc := &models.TaxDocument{
		ID:           fileID,
		UserID:       userID,
		Year:         year,
		DocumentType: docType,
		FileName:     fileName,
		FilePath:     filePath,
		FileSize:     fileSize,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateDocument(ctx, doc); err != nil {
		os.Remove(filePath)
		return nil, &StorageError{Op: "create document", Err: err}
	}

	extractedText, err := s.text.ExtractText(ctx, filePath)
	if err != nil {
		// The upload is kept: the user should not lose the file because
		// OCR or rasterization broke.
		s.logger.Warn("Text extraction failed",
			zap.String("document_id", doc.ID.String()),
			zap.String("file", filePath),
			zap.Error(err),
		)
		extractedText = extractionFailedText
	}

	records := s.parser.Parse(extractedText, docType)

	entry := models.DocumentEntry{
		ID:             doc.ID,
		Type:           docType,
		Records:        records,
		RawTextPreview: sanitizeUTF8(truncateRunes(extractedText, rawTextPreviewLimit)),
	}

	if _, err := s.store.AppendDocumentEntry(ctx, userID, year, entry); err != nil {
		return nil, &StorageError{Op: "append document entry", Err: err}
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", doc.ID.String()),
		zap.Int("year", year),
		zap.String("type", docType),
		zap.Int("records", len(records)),
	)

	return &dto.UploadDocumentResponse{
		Document:         toDocumentResponse(doc),
		ExtractedRecords: records,
	}, nil
}

func (s *TaxService) ListDocuments(ctx context.Context, userID uuid.UUID) ([]dto.DocumentResponse, error) {
	docs, err := s.store.FindDocumentsByUser(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "list documents", Err: err}
	}

	responses := make([]dto.DocumentResponse, len(docs))
	for i, doc := range docs {
		responses[i] = toDocumentResponse(doc)
	}
	return responses, nil
}

func (s *TaxService) GetTaxData(ctx context.Context, userID uuid.UUID) ([]dto.TaxDataResponse, error) {
	data, err := s.store.FindAllDataByUser(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "load tax data", Err: err}
	}

	responses := make([]dto.TaxDataResponse, len(data))
	for i, d := range data {
		responses[i] = toTaxDataResponse(d)
	}
	return responses, nil
}

// SaveManualData replaces the aggregate blob for one year with caller-provided
// data. This is the manual-entry escape hatch; uploads never go through here.
func (s *TaxService) SaveManualData(ctx context.Context, userID uuid.UUID, year int, data json.RawMessage) (*dto.TaxDataResponse, error) {
	saved, err := s.store.UpsertTaxData(ctx, userID, year, data)
	if err != nil {
		return nil, &StorageError{Op: "save tax data", Err: err}
	}

	resp := toTaxDataResponse(saved)
	return &resp, nil
}

// DocumentFile resolves a document for download, checking ownership and that
// the stored file still exists on disk.
func (s *TaxService) DocumentFile(ctx context.Context, userID, documentID uuid.UUID) (*models.TaxDocument, error) {
	doc, err := s.store.FindDocumentByID(ctx, documentID)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	if doc.UserID != userID {
		return nil, ErrNotDocumentOwner
	}
	if _, err := os.Stat(doc.FilePath); err != nil {
		return nil, ErrFileMissing
	}
	return doc, nil
}

func toDocumentResponse(doc *models.TaxDocument) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:        doc.ID.String(),
		Year:      doc.Year,
		Type:      doc.DocumentType,
		FileName:  doc.FileName,
		FileSize:  doc.FileSize,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
	}
}

func toTaxDataResponse(data *models.TaxData) dto.TaxDataResponse {
	return dto.TaxDataResponse{
		ID:        data.ID.String(),
		Year:      data.Year,
		Data:      data.Data,
		UpdatedAt: data.UpdatedAt.Format(time.RFC3339),
	}
}
