package provenance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func completeAttempt(t *testing.T, st store.Store, specimen model.Identity, provider string, fields map[string]model.FieldValue) *model.Attempt {
	t.Helper()
	att := &model.Attempt{
		ID:         uuid.New().String(),
		Specimen:   specimen,
		Provider:   provider,
		Model:      "m1",
		ParamsHash: uuid.New().String(),
		Status:     model.AttemptPending,
	}
	require.NoError(t, st.CreateAttempt(context.Background(), att))
	require.NoError(t, st.CompleteAttempt(context.Background(), att.ID, fields, nil))
	return att
}

func TestLineage_FullChain(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	tracker := New(st)

	_, err := st.RegisterSpecimen(ctx, "orig1", "scans/a.jpg")
	require.NoError(t, err)
	_, err = st.RegisterSpecimen(ctx, "orig1", "scans/a-copy.jpg")
	require.NoError(t, err)

	require.NoError(t, st.RecordTransformation(ctx, &model.Transformation{
		ID:              uuid.New().String(),
		Specimen:        "orig1",
		DerivedIdentity: "deriv1",
		Kind:            "deskew",
		Settings:        `{"angle":"auto"}`,
	}))

	att := completeAttempt(t, st, "orig1", "anthropic", map[string]model.FieldValue{
		model.FieldCatalogNumber: {Value: "1073", Confidence: 0.9},
	})

	failed := &model.Attempt{
		ID: uuid.New().String(), Specimen: "orig1",
		Provider: "anthropic", Model: "m1",
		ParamsHash: uuid.New().String(), Status: model.AttemptPending,
	}
	require.NoError(t, st.CreateAttempt(ctx, failed))
	require.NoError(t, st.FailAttempt(ctx, failed.ID, []string{"timeout"}))

	require.NoError(t, st.SaveAggregate(ctx, &model.AggregatedRecord{
		Specimen: "orig1",
		Fields: map[string]model.SelectedValue{
			model.FieldCatalogNumber: {Value: "1073", Confidence: 0.9, AttemptID: att.ID, Provider: "anthropic"},
		},
		Confidence: 0.9,
	}))
	require.NoError(t, st.ReplaceFlags(ctx, "orig1", []model.QualityFlag{
		{Specimen: "orig1", Kind: model.FlagMissingCoreField, Severity: model.SeverityMedium, Detail: "scientificName"},
	}))

	lin, err := tracker.Lineage(ctx, "orig1")
	require.NoError(t, err)

	assert.Equal(t, model.Identity("orig1"), lin.Specimen.Identity)
	assert.ElementsMatch(t, []string{"scans/a.jpg", "scans/a-copy.jpg"}, lin.Specimen.SourceRefs)
	require.Len(t, lin.Transformations, 1)
	assert.Equal(t, model.Identity("deriv1"), lin.Transformations[0].DerivedIdentity)
	assert.Len(t, lin.Attempts, 2, "failed attempts stay in the chain")
	require.NotNil(t, lin.Record)
	assert.Equal(t, "1073", lin.Record.CatalogNumber())
	require.Len(t, lin.Flags, 1)
	assert.Equal(t, model.FlagMissingCoreField, lin.Flags[0].Kind)
}

func TestLineage_NoRecordYet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.RegisterSpecimen(ctx, "orig1", "scans/a.jpg")
	require.NoError(t, err)

	lin, err := New(st).Lineage(ctx, "orig1")
	require.NoError(t, err)
	assert.Nil(t, lin.Record)
	assert.Empty(t, lin.Attempts)
	assert.Empty(t, lin.Flags)
}

func TestLineage_UnknownSpecimen(t *testing.T) {
	st := newTestStore(t)
	_, err := New(st).Lineage(context.Background(), "nope")
	require.Error(t, err)
}

func TestByCatalogNumber(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	tracker := New(st)

	for _, id := range []model.Identity{"s1", "s2", "s3"} {
		_, err := st.RegisterSpecimen(ctx, id, "scans/"+string(id)+".jpg")
		require.NoError(t, err)
	}
	save := func(id model.Identity, catalog string) {
		att := completeAttempt(t, st, id, "anthropic", map[string]model.FieldValue{
			model.FieldCatalogNumber: {Value: catalog, Confidence: 0.8},
		})
		require.NoError(t, st.SaveAggregate(ctx, &model.AggregatedRecord{
			Specimen: id,
			Fields: map[string]model.SelectedValue{
				model.FieldCatalogNumber: {Value: catalog, Confidence: 0.8, AttemptID: att.ID, Provider: "anthropic"},
			},
			Confidence: 0.8,
		}))
	}
	save("s1", "1073")
	save("s2", "1073")
	save("s3", "2000")

	lins, err := tracker.ByCatalogNumber(ctx, "1073")
	require.NoError(t, err)
	require.Len(t, lins, 2, "contested catalog numbers resolve to every holder")

	got := []model.Identity{lins[0].Specimen.Identity, lins[1].Specimen.Identity}
	assert.ElementsMatch(t, []model.Identity{"s1", "s2"}, got)

	none, err := tracker.ByCatalogNumber(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, none)
}
