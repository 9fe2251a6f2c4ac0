package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

type fakeCatalogIndex struct {
	holders map[string][]model.Identity
}

func (f *fakeCatalogIndex) QueryByCatalogNumber(_ context.Context, value string) ([]model.Identity, error) {
	return f.holders[value], nil
}

func newAuditor(t *testing.T) *Auditor {
	t.Helper()
	a, err := New(DefaultRules())
	require.NoError(t, err)
	return a
}

func record(fields map[string]model.SelectedValue) *model.AggregatedRecord {
	return &model.AggregatedRecord{Specimen: "abc123", Fields: fields}
}

func kinds(flags []model.QualityFlag) []model.FlagKind {
	out := make([]model.FlagKind, len(flags))
	for i, f := range flags {
		out[i] = f.Kind
	}
	return out
}

func TestEvaluate_CleanRecord(t *testing.T) {
	a := newAuditor(t)
	rec := record(map[string]model.SelectedValue{
		model.FieldCatalogNumber:  {Value: "019121", Confidence: 0.9},
		model.FieldScientificName: {Value: "Bouteloua gracilis", Confidence: 0.95},
		model.FieldEventDate:      {Value: "1969-07-12", Confidence: 0.8},
	})

	flags, err := a.Evaluate(context.Background(), &fakeCatalogIndex{}, rec)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestEvaluate_MissingCoreFields(t *testing.T) {
	a := newAuditor(t)
	rec := record(map[string]model.SelectedValue{
		model.FieldLocality: {Value: "Val Marie", Confidence: 0.7},
	})

	flags, err := a.Evaluate(context.Background(), &fakeCatalogIndex{}, rec)
	require.NoError(t, err)
	require.Len(t, flags, 2)
	for _, f := range flags {
		assert.Equal(t, model.FlagMissingCoreField, f.Kind)
		assert.Equal(t, model.SeverityMedium, f.Severity)
	}
}

func TestEvaluate_ImplausibleDate(t *testing.T) {
	a := newAuditor(t)

	tests := []struct {
		name    string
		date    string
		flagged bool
	}{
		{"plausible ISO", "1969-07-12", false},
		{"plausible year only", "1903", false},
		{"year too early", "1492", true},
		{"year too late", "2150-01-01", true},
		{"no year at all", "mid July", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record(map[string]model.SelectedValue{
				model.FieldCatalogNumber:  {Value: "1073"},
				model.FieldScientificName: {Value: "Stipa comata"},
				model.FieldEventDate:      {Value: tt.date},
			})
			flags, err := a.Evaluate(context.Background(), &fakeCatalogIndex{}, rec)
			require.NoError(t, err)
			if tt.flagged {
				assert.Contains(t, kinds(flags), model.FlagImplausibleDate)
			} else {
				assert.NotContains(t, kinds(flags), model.FlagImplausibleDate)
			}
		})
	}
}

func TestEvaluate_MalformedCatalogNumber(t *testing.T) {
	a := newAuditor(t)
	rec := record(map[string]model.SelectedValue{
		model.FieldCatalogNumber:  {Value: "??-12"},
		model.FieldScientificName: {Value: "Stipa comata"},
	})

	flags, err := a.Evaluate(context.Background(), &fakeCatalogIndex{}, rec)
	require.NoError(t, err)
	assert.Contains(t, kinds(flags), model.FlagMalformedCatalog)
}

func TestEvaluate_DuplicateCatalogNumber(t *testing.T) {
	a := newAuditor(t)
	idx := &fakeCatalogIndex{holders: map[string][]model.Identity{
		"1073": {"abc123", "def456"},
	}}
	rec := record(map[string]model.SelectedValue{
		model.FieldCatalogNumber:  {Value: "1073"},
		model.FieldScientificName: {Value: "Stipa comata"},
	})

	flags, err := a.Evaluate(context.Background(), idx, rec)
	require.NoError(t, err)
	require.Contains(t, kinds(flags), model.FlagDuplicateCatalog)
	for _, f := range flags {
		if f.Kind == model.FlagDuplicateCatalog {
			assert.Equal(t, model.SeverityHigh, f.Severity)
			assert.Contains(t, f.Detail, "1073")
		}
	}
}

func TestEvaluate_SoleHolderNotFlagged(t *testing.T) {
	a := newAuditor(t)
	idx := &fakeCatalogIndex{holders: map[string][]model.Identity{
		"1073": {"abc123"},
	}}
	rec := record(map[string]model.SelectedValue{
		model.FieldCatalogNumber:  {Value: "1073"},
		model.FieldScientificName: {Value: "Stipa comata"},
	})

	flags, err := a.Evaluate(context.Background(), idx, rec)
	require.NoError(t, err)
	assert.NotContains(t, kinds(flags), model.FlagDuplicateCatalog)
}

func TestEvaluate_FieldConflicts(t *testing.T) {
	a := newAuditor(t)
	rec := record(map[string]model.SelectedValue{
		model.FieldCatalogNumber:  {Value: "019121"},
		model.FieldScientificName: {Value: "Stipa comata"},
	})
	rec.Conflicts = map[string][]model.Candidate{
		model.FieldCatalogNumber: {{Value: "O19121", Confidence: 0.75, AttemptID: "a2"}},
	}

	flags, err := a.Evaluate(context.Background(), &fakeCatalogIndex{}, rec)
	require.NoError(t, err)
	require.Contains(t, kinds(flags), model.FlagFieldConflict)
	for _, f := range flags {
		if f.Kind == model.FlagFieldConflict {
			assert.Equal(t, model.SeverityMedium, f.Severity)
			assert.Contains(t, f.Detail, model.FieldCatalogNumber)
		}
	}
}

func TestNew_BadPattern(t *testing.T) {
	rules := DefaultRules()
	rules.CatalogPattern = "["
	_, err := New(rules)
	require.Error(t, err)
}
