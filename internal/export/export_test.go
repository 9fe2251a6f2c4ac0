package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedSpecimen(t *testing.T, st store.Store, id model.Identity, catalog string, flags []model.QualityFlag) {
	t.Helper()
	ctx := context.Background()
	_, err := st.RegisterSpecimen(ctx, id, "scans/"+string(id)+".jpg")
	require.NoError(t, err)
	if catalog == "" {
		return
	}

	att := &model.Attempt{
		ID: uuid.New().String(), Specimen: id,
		Provider: "anthropic", Model: "m1",
		ParamsHash: uuid.New().String(), Status: model.AttemptPending,
	}
	require.NoError(t, st.CreateAttempt(ctx, att))
	require.NoError(t, st.CompleteAttempt(ctx, att.ID, map[string]model.FieldValue{
		model.FieldCatalogNumber:  {Value: catalog, Confidence: 0.9},
		model.FieldScientificName: {Value: "Carex praegracilis", Confidence: 0.8},
	}, nil))
	require.NoError(t, st.SaveAggregate(ctx, &model.AggregatedRecord{
		Specimen: id,
		Fields: map[string]model.SelectedValue{
			model.FieldCatalogNumber:  {Value: catalog, Confidence: 0.9, AttemptID: att.ID, Provider: "anthropic"},
			model.FieldScientificName: {Value: "Carex praegracilis", Confidence: 0.8, AttemptID: att.ID, Provider: "anthropic"},
		},
		Confidence: 0.85,
	}))
	if len(flags) > 0 {
		require.NoError(t, st.ReplaceFlags(ctx, id, flags))
	}
}

func TestCSVExport(t *testing.T) {
	st := newTestStore(t)
	seedSpecimen(t, st, "aaa", "1073", nil)
	seedSpecimen(t, st, "bbb", "", nil) // registered, never extracted

	var buf bytes.Buffer
	exporter := NewCSV(model.NewFieldRegistry(model.DefaultFields()))
	n, err := exporter.Write(context.Background(), &buf, NewIterator(st, store.SpecimenFilter{}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, "identity", header[0])
	assert.Contains(t, header, model.FieldCatalogNumber)
	assert.Contains(t, header, model.FieldVerbatimLabel)

	catalogCol := indexOf(t, header, model.FieldCatalogNumber)
	assert.Equal(t, "aaa", rows[1][0])
	assert.Equal(t, "1073", rows[1][catalogCol])
	// Registered-but-unextracted specimens still get an accounting row.
	assert.Equal(t, "bbb", rows[2][0])
	assert.Equal(t, "", rows[2][catalogCol])
}

func indexOf(t *testing.T, header []string, key string) int {
	t.Helper()
	for i, h := range header {
		if h == key {
			return i
		}
	}
	t.Fatalf("column %q not in header", key)
	return -1
}

func TestIterator_RestartFromCursor(t *testing.T) {
	st := newTestStore(t)
	for _, id := range []model.Identity{"a1", "b2", "c3", "d4"} {
		seedSpecimen(t, st, id, "", nil)
	}
	ctx := context.Background()

	it := NewIterator(st, store.SpecimenFilter{})
	first, err := it.Next(ctx)
	require.NoError(t, err)
	second, err := it.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)

	// Resuming from the saved cursor continues past already-emitted items.
	resumed := NewIterator(st, store.SpecimenFilter{After: it.Cursor()})
	var rest []model.Identity
	for {
		item, err := resumed.Next(ctx)
		require.NoError(t, err)
		if item == nil {
			break
		}
		rest = append(rest, item.Specimen.Identity)
	}
	assert.NotContains(t, rest, first.Specimen.Identity)
	assert.NotContains(t, rest, second.Specimen.Identity)
	assert.Len(t, rest, 2)
}

func TestWriteTriage(t *testing.T) {
	st := newTestStore(t)
	seedSpecimen(t, st, "aaa", "1073", []model.QualityFlag{
		{Specimen: "aaa", Kind: model.FlagMissingCoreField, Severity: model.SeverityMedium, Detail: "eventDate"},
		{Specimen: "aaa", Kind: model.FlagMalformedCatalog, Severity: model.SeverityLow, Detail: "1073x"},
	})
	seedSpecimen(t, st, "bbb", "2000", nil) // clean, omitted from triage

	path := filepath.Join(t.TempDir(), "triage.xlsx")
	n, err := WriteTriage(context.Background(), path, NewIterator(st, store.SpecimenFilter{}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3, "header plus one row per flag")
	assert.Equal(t, "aaa", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "1073", sheet.Rows[1].Cells[1].String())
}
