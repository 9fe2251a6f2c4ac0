package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

func TestParsePayload_KnownAndUnmapped(t *testing.T) {
	registry := model.NewFieldRegistry(model.DefaultFields())
	raw := []byte(`{
		"scientificName": {"value": "Bouteloua gracilis", "confidence": 0.92},
		"catalogNumber": "019121",
		"collectorsFavoriteColor": {"value": "ochre", "confidence": 0.3}
	}`)

	res, err := ParsePayload(raw, registry)
	require.NoError(t, err)

	assert.Equal(t, model.FieldValue{Value: "Bouteloua gracilis", Confidence: 0.92},
		res.Fields[model.FieldScientificName])
	// Bare strings get the default confidence.
	assert.Equal(t, model.FieldValue{Value: "019121", Confidence: DefaultConfidence},
		res.Fields[model.FieldCatalogNumber])

	assert.NotContains(t, res.Fields, "collectorsFavoriteColor")
	assert.Equal(t, "ochre", res.Unmapped["collectorsFavoriteColor"].Value)
}

func TestParsePayload_BlankValuesSkipped(t *testing.T) {
	registry := model.NewFieldRegistry(model.DefaultFields())
	res, err := ParsePayload([]byte(`{"locality": "  ", "country": "Canada"}`), registry)
	require.NoError(t, err)
	assert.NotContains(t, res.Fields, model.FieldLocality)
	assert.Contains(t, res.Fields, model.FieldCountry)
}

func TestParsePayload_Malformed(t *testing.T) {
	registry := model.NewFieldRegistry(model.DefaultFields())

	tests := []struct {
		name string
		raw  string
	}{
		{"not an object", `["a","b"]`},
		{"confidence out of range", `{"catalogNumber": {"value": "1", "confidence": 1.5}}`},
		{"numeric value", `{"catalogNumber": 19121}`},
		{"extra keys in pair", `{"catalogNumber": {"value": "1", "reasoning": "saw it"}}`},
		{"invalid json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tt.raw), registry)
			require.Error(t, err)
		})
	}
}

func TestParamSet_HashStable(t *testing.T) {
	a := ParamSet{Provider: "anthropic", Model: "m1", PromptVersion: "v2"}
	b := ParamSet{Model: "m1", PromptVersion: "v2", Provider: "anthropic"}

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	c := a
	c.PromptVersion = "v3"
	hc, err := c.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc, "prompt version bump must open a new dedup key")
}
