package repository

import (
	"context"
	"encoding/json"
	"time"

	"taxdesk/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	documentColumns = []string{
		"id", "user_id", "year", "document_type", "file_name", "file_path",
		"file_size", "created_at", "updated_at",
	}
	taxDataColumns = []string{"id", "user_id", "year", "data", "created_at", "updated_at"}
)

type TaxRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaxRepository(db *pgxpool.Pool, logger *zap.Logger) *TaxRepository {
	return &TaxRepository{
		db:     db,
		logger: logger,
	}
}

func (r *TaxRepository) CreateDocument(ctx context.Context, doc *models.TaxDocument) error {
	query := squirrel.Insert("tax_documents").
		Columns(documentColumns...).
		Values(
			doc.ID, doc.UserID, doc.Year, doc.DocumentType, doc.FileName,
			doc.FilePath, doc.FileSize, doc.CreatedAt, doc.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *TaxRepository) FindDocumentsByUser(ctx context.Context, userID uuid.UUID) ([]*models.TaxDocument, error) {
	query := squirrel.Select(documentColumns...).
		From("tax_documents").
		Where(squirrel.Eq{"user_id": userID}).
		Where("deleted_at IS NULL").
		OrderBy("year DESC", "created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []*models.TaxDocument
	for rows.Next() {
		var doc models.TaxDocument
		if err := rows.Scan(
			&doc.ID, &doc.UserID, &doc.Year, &doc.DocumentType, &doc.FileName,
			&doc.FilePath, &doc.FileSize, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		documents = append(documents, &doc)
	}

	return documents, rows.Err()
}

func (r *TaxRepository) FindDocumentByID(ctx context.Context, id uuid.UUID) (*models.TaxDocument, error) {
	query := squirrel.Select(documentColumns...).
		From("tax_documents").
		Where(squirrel.Eq{"id": id}).
		Where("deleted_at IS NULL").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var doc models.TaxDocument
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&doc.ID, &doc.UserID, &doc.Year, &doc.DocumentType, &doc.FileName,
		&doc.FilePath, &doc.FileSize, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *TaxRepository) FindDataByUserYear(ctx context.Context, userID uuid.UUID, year int) (*models.TaxData, error) {
	query := squirrel.Select(taxDataColumns...).
		From("tax_data").
		Where(squirrel.Eq{"user_id": userID, "year": year}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var data models.TaxData
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&data.ID, &data.UserID, &data.Year, &data.Data, &data.CreatedAt, &data.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &data, nil
}

func (r *TaxRepository) FindAllDataByUser(ctx context.Context, userID uuid.UUID) ([]*models.TaxData, error) {
	query := squirrel.Select(taxDataColumns...).
		From("tax_data").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("year DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.TaxData
	for rows.Next() {
		var data models.TaxData
		if err := rows.Scan(
			&data.ID, &data.UserID, &data.Year, &data.Data, &data.CreatedAt, &data.UpdatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, &data)
	}

	return results, rows.Err()
}

// UpsertTaxData replaces the whole aggregate blob for (user, year). Used by
// the manual-save endpoint; uploads go through AppendDocumentEntry instead.
func (r *TaxRepository) UpsertTaxData(ctx context.Context, userID uuid.UUID, year int, data json.RawMessage) (*models.TaxData, error) {
	now := time.Now()
	query := squirrel.Insert("tax_data").
		Columns(taxDataColumns...).
		Values(uuid.New(), userID, year, data, now, now).
		Suffix(`ON CONFLICT (user_id, year) DO UPDATE
			SET data = EXCLUDED.data, updated_at = NOW()
			RETURNING id, user_id, year, data, created_at, updated_at`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var result models.TaxData
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&result.ID, &result.UserID, &result.Year, &result.Data, &result.CreatedAt, &result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// AppendDocumentEntry appends one document entry to the (user, year) aggregate,
// creating the aggregate on first upload. The append happens inside the upsert
// so two concurrent uploads for the same user and year cannot lose entries to
// a stale read-modify-write.
func (r *TaxRepository) AppendDocumentEntry(ctx context.Context, userID uuid.UUID, year int, entry models.DocumentEntry) (*models.TaxData, error) {
	seed, err := json.Marshal(models.TaxAggregate{Documents: []models.DocumentEntry{entry}})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	query := squirrel.Insert("tax_data").
		Columns(taxDataColumns...).
		Values(uuid.New(), userID, year, seed, now, now).
		Suffix(`ON CONFLICT (user_id, year) DO UPDATE
			SET data = jsonb_set(
					tax_data.data,
					'{documents}',
					COALESCE(tax_data.data->'documents', '[]'::jsonb) || (EXCLUDED.data->'documents'),
					true
				),
				updated_at = NOW()
			RETURNING id, user_id, year, data, created_at, updated_at`).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var result models.TaxData
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&result.ID, &result.UserID, &result.Year, &result.Data, &result.CreatedAt, &result.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &result, nil
}
