package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateDecodesDocuments(t *testing.T) {
	entry := DocumentEntry{
		ID:             uuid.New(),
		Type:           "W2",
		Records:        []Record{{"employer": "Acme Corp", "wages": 100.0}},
		RawTextPreview: "preview",
	}
	blob, err := json.Marshal(TaxAggregate{Documents: []DocumentEntry{entry}})
	require.NoError(t, err)

	d := &TaxData{Data: blob}
	agg := d.Aggregate()

	require.Len(t, agg.Documents, 1)
	assert.Equal(t, entry.ID, agg.Documents[0].ID)
	assert.Equal(t, "preview", agg.Documents[0].RawTextPreview)
}

func TestAggregateToleratesCorruptBlob(t *testing.T) {
	d := &TaxData{Data: []byte("not json")}
	assert.Empty(t, d.Aggregate().Documents)

	empty := &TaxData{}
	assert.Empty(t, empty.Aggregate().Documents)
}

func TestSentinelRecord(t *testing.T) {
	assert.True(t, SentinelRecord().IsSentinel())
	assert.False(t, Record{"wages": 1.0}.IsSentinel())
}
