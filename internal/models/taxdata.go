package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is one extracted key/value structure. The set of keys depends on the
// document type: W2 records carry employer/wages/tax_withheld, 1099 records
// carry payer/income. A document where nothing was recognized yields a single
// sentinel record instead (see SentinelRecord).
type Record map[string]interface{}

// SentinelRecord marks a document where no fields were recognized. Callers
// must treat it as "extraction found nothing", not as real data.
func SentinelRecord() Record {
	return Record{"error": "No data found"}
}

// IsSentinel reports whether the record is the "no data found" placeholder.
func (r Record) IsSentinel() bool {
	_, ok := r["error"]
	return ok
}

// DocumentEntry is one document's contribution to a per-year aggregate.
// Entries are immutable once written; re-uploads append new entries.
type DocumentEntry struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	Records        []Record  `json:"records"`
	RawTextPreview string    `json:"raw_text_preview"`
}

// TaxAggregate is the accumulated dataset for one (user, year). It is the
// durable artifact the assistant and the UI read.
type TaxAggregate struct {
	Documents []DocumentEntry `json:"documents"`
}

// TaxData is the database row holding one aggregate as a JSONB blob.
type TaxData struct {
	ID        uuid.UUID       `db:"id"`
	UserID    uuid.UUID       `db:"user_id"`
	Year      int             `db:"year"`
	Data      json.RawMessage `db:"data"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Aggregate decodes the JSONB blob. A row with a corrupt or empty blob decodes
// to an empty aggregate rather than failing the read path.
func (d *TaxData) Aggregate() TaxAggregate {
	var agg TaxAggregate
	if len(d.Data) > 0 {
		_ = json.Unmarshal(d.Data, &agg)
	}
	return agg
}
