package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"taxdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTaxStore struct {
	mu         sync.Mutex
	docs       map[uuid.UUID]*models.TaxDocument
	data       map[string]*models.TaxData
	failCreate error
	failAppend error
}

func newFakeTaxStore() *fakeTaxStore {
	return &fakeTaxStore{
		docs: make(map[uuid.UUID]*models.TaxDocument),
		data: make(map[string]*models.TaxData),
	}
}

func dataKey(userID uuid.UUID, year int) string {
	return fmt.Sprintf("%s|%d", userID, year)
}

func (s *fakeTaxStore) CreateDocument(ctx context.Context, doc *models.TaxDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *fakeTaxStore) FindDocumentsByUser(ctx context.Context, userID uuid.UUID) ([]*models.TaxDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TaxDocument
	for _, doc := range s.docs {
		if doc.UserID == userID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *fakeTaxStore) FindDocumentByID(ctx context.Context, id uuid.UUID) (*models.TaxDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	return doc, nil
}

func (s *fakeTaxStore) FindDataByUserYear(ctx context.Context, userID uuid.UUID, year int) (*models.TaxData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[dataKey(userID, year)]
	if !ok {
		return nil, errors.New("no rows")
	}
	return d, nil
}

func (s *fakeTaxStore) FindAllDataByUser(ctx context.Context, userID uuid.UUID) ([]*models.TaxData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TaxData
	for _, d := range s.data {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeTaxStore) UpsertTaxData(ctx context.Context, userID uuid.UUID, year int, data json.RawMessage) (*models.TaxData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &models.TaxData{
		ID:        uuid.New(),
		UserID:    userID,
		Year:      year,
		Data:      data,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.data[dataKey(userID, year)] = d
	return d, nil
}

// AppendDocumentEntry mirrors the jsonb append the real store does in one
// statement: the entry lands at the end of the documents array, never
// replacing what is already there.
func (s *fakeTaxStore) AppendDocumentEntry(ctx context.Context, userID uuid.UUID, year int, entry models.DocumentEntry) (*models.TaxData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		return nil, s.failAppend
	}

	key := dataKey(userID, year)
	d, ok := s.data[key]
	if !ok {
		d = &models.TaxData{
			ID:        uuid.New(),
			UserID:    userID,
			Year:      year,
			Data:      json.RawMessage(`{"documents":[]}`),
			CreatedAt: time.Now(),
		}
		s.data[key] = d
	}

	agg := d.Aggregate()
	agg.Documents = append(agg.Documents, entry)
	blob, err := json.Marshal(agg)
	if err != nil {
		return nil, err
	}
	d.Data = blob
	d.UpdatedAt = time.Now()
	return d, nil
}

func (s *fakeTaxStore) aggregate(userID uuid.UUID, year int) models.TaxAggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[dataKey(userID, year)]
	if !ok {
		return models.TaxAggregate{}
	}
	return d.Aggregate()
}

type stubTextSource struct {
	text string
	err  error
}

func (s *stubTextSource) ExtractText(ctx context.Context, filePath string) (string, error) {
	return s.text, s.err
}

func newTestTaxService(t *testing.T, store TaxStore, text TextSource) *TaxService {
	t.Helper()
	return NewTaxService(store, text, NewParserService(zap.NewNop()), t.TempDir(), zap.NewNop())
}

const w2Text = "Employer's Name: Acme Corp\nWages, tips, other compensation: $45,000.00\nFederal income tax withheld: 3,200.00\n"

func TestUploadDocumentStoresFileAndAppendsEntry(t *testing.T) {
	store := newFakeTaxStore()
	svc := newTestTaxService(t, store, &stubTextSource{text: w2Text})
	userID := uuid.New()

	resp, err := svc.UploadDocument(context.Background(), userID, strings.NewReader("fake image bytes"), "w2.jpg", 2023, "W2")

	require.NoError(t, err)
	require.Len(t, resp.ExtractedRecords, 1)
	assert.Equal(t, "Acme Corp", resp.ExtractedRecords[0]["employer"])
	assert.Equal(t, 2023, resp.Document.Year)
	assert.Equal(t, "w2.jpg", resp.Document.FileName)
	assert.Equal(t, int64(len("fake image bytes")), resp.Document.FileSize)

	agg := store.aggregate(userID, 2023)
	require.Len(t, agg.Documents, 1)
	assert.Equal(t, "W2", agg.Documents[0].Type)
	assert.Equal(t, w2Text, agg.Documents[0].RawTextPreview)

	// The stored file is on disk under a fresh name with the original
	// extension.
	docID := uuid.MustParse(resp.Document.ID)
	doc, err := store.FindDocumentByID(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(doc.FilePath, ".jpg"))
	_, err = os.Stat(doc.FilePath)
	assert.NoError(t, err)
}

func TestUploadDocumentAppendsSecondEntryInOrder(t *testing.T) {
	store := newFakeTaxStore()
	svc := newTestTaxService(t, store, &stubTextSource{text: w2Text})
	userID := uuid.New()

	first, err := svc.UploadDocument(context.Background(), userID, strings.NewReader("a"), "first.jpg", 2023, "W2")
	require.NoError(t, err)
	second, err := svc.UploadDocument(context.Background(), userID, strings.NewReader("b"), "second.jpg", 2023, "W2")
	require.NoError(t, err)

	agg := store.aggregate(userID, 2023)
	require.Len(t, agg.Documents, 2)
	assert.Equal(t, first.Document.ID, agg.Documents[0].ID.String())
	assert.Equal(t, second.Document.ID, agg.Documents[1].ID.String())
}

func TestUploadDocumentExtractionFailureDegrades(t *testing.T) {
	store := newFakeTaxStore()
	textErr := &OCRRunError{Image: "page-1.png", Err: errors.New("tesseract crashed")}
	svc := newTestTaxService(t, store, &stubTextSource{err: textErr})
	userID := uuid.New()

	resp, err := svc.UploadDocument(context.Background(), userID, strings.NewReader("x"), "scan.pdf", 2023, "W2")

	require.NoError(t, err)
	require.Len(t, resp.ExtractedRecords, 1)
	assert.True(t, resp.ExtractedRecords[0].IsSentinel())

	agg := store.aggregate(userID, 2023)
	require.Len(t, agg.Documents, 1)
	assert.Equal(t, "Failed to extract text", agg.Documents[0].RawTextPreview)
}

func TestUploadDocumentCreateFailureRemovesFile(t *testing.T) {
	store := newFakeTaxStore()
	store.failCreate = errors.New("db down")
	uploadDir := t.TempDir()
	svc := NewTaxService(store, &stubTextSource{text: w2Text}, NewParserService(zap.NewNop()), uploadDir, zap.NewNop())

	_, err := svc.UploadDocument(context.Background(), uuid.New(), strings.NewReader("x"), "w2.jpg", 2023, "W2")

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)

	entries, readErr := os.ReadDir(uploadDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestUploadDocumentAppendFailureReturnsStorageError(t *testing.T) {
	store := newFakeTaxStore()
	store.failAppend = errors.New("db down")
	svc := newTestTaxService(t, store, &stubTextSource{text: w2Text})

	_, err := svc.UploadDocument(context.Background(), uuid.New(), strings.NewReader("x"), "w2.jpg", 2023, "W2")

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.ErrorIs(t, err, store.failAppend)
}

func TestUploadDocumentTruncatesPreview(t *testing.T) {
	store := newFakeTaxStore()
	longText := strings.Repeat("é", 600)
	svc := newTestTaxService(t, store, &stubTextSource{text: longText})
	userID := uuid.New()

	_, err := svc.UploadDocument(context.Background(), userID, strings.NewReader("x"), "w2.jpg", 2023, "W2")
	require.NoError(t, err)

	agg := store.aggregate(userID, 2023)
	require.Len(t, agg.Documents, 1)
	assert.Equal(t, strings.Repeat("é", 500), agg.Documents[0].RawTextPreview)
}

func TestConcurrentUploadsBothSurvive(t *testing.T) {
	store := newFakeTaxStore()
	svc := newTestTaxService(t, store, &stubTextSource{text: w2Text})
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.UploadDocument(context.Background(), userID, strings.NewReader("x"), fmt.Sprintf("doc-%d.jpg", i), 2023, "W2")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	agg := store.aggregate(userID, 2023)
	assert.Len(t, agg.Documents, 2)
}

func TestDocumentFileOwnershipAndExistence(t *testing.T) {
	store := newFakeTaxStore()
	svc := newTestTaxService(t, store, &stubTextSource{text: w2Text})
	ownerID := uuid.New()

	resp, err := svc.UploadDocument(context.Background(), ownerID, strings.NewReader("x"), "w2.jpg", 2023, "W2")
	require.NoError(t, err)
	docID := uuid.MustParse(resp.Document.ID)

	doc, err := svc.DocumentFile(context.Background(), ownerID, docID)
	require.NoError(t, err)
	assert.Equal(t, "w2.jpg", doc.FileName)

	_, err = svc.DocumentFile(context.Background(), uuid.New(), docID)
	assert.ErrorIs(t, err, ErrNotDocumentOwner)

	_, err = svc.DocumentFile(context.Background(), ownerID, uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	require.NoError(t, os.Remove(doc.FilePath))
	_, err = svc.DocumentFile(context.Background(), ownerID, docID)
	assert.ErrorIs(t, err, ErrFileMissing)
}

func TestSaveManualDataReplacesBlob(t *testing.T) {
	store := newFakeTaxStore()
	svc := newTestTaxService(t, store, &stubTextSource{text: w2Text})
	userID := uuid.New()

	blob := json.RawMessage(`{"documents":[],"notes":"manual"}`)
	resp, err := svc.SaveManualData(context.Background(), userID, 2022, blob)

	require.NoError(t, err)
	assert.Equal(t, 2022, resp.Year)
	assert.JSONEq(t, string(blob), string(resp.Data))
}
