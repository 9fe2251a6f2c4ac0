package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	ts := httptest.NewServer(New(st).Router())
	t.Cleanup(ts.Close)
	return ts, st
}

func seed(t *testing.T, st store.Store, id model.Identity, catalog string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.RegisterSpecimen(ctx, id, "scans/"+string(id)+".jpg")
	require.NoError(t, err)

	att := &model.Attempt{
		ID: uuid.New().String(), Specimen: id,
		Provider: "anthropic", Model: "m1",
		ParamsHash: uuid.New().String(), Status: model.AttemptPending,
	}
	require.NoError(t, st.CreateAttempt(ctx, att))
	require.NoError(t, st.CompleteAttempt(ctx, att.ID, map[string]model.FieldValue{
		model.FieldCatalogNumber: {Value: catalog, Confidence: 0.9},
	}, nil))
	require.NoError(t, st.SaveAggregate(ctx, &model.AggregatedRecord{
		Specimen: id,
		Fields: map[string]model.SelectedValue{
			model.FieldCatalogNumber: {Value: catalog, Confidence: 0.9, AttemptID: att.ID, Provider: "anthropic"},
		},
		Confidence: 0.9,
	}))
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	var body map[string]string
	code := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestListSpecimens(t *testing.T) {
	ts, st := newTestServer(t)
	seed(t, st, "aaa", "1073")
	seed(t, st, "bbb", "2000")

	var body struct {
		Specimens []model.Specimen `json:"specimens"`
	}
	code := getJSON(t, ts.URL+"/specimens", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body.Specimens, 2)

	// Cursor pagination.
	code = getJSON(t, ts.URL+"/specimens?after=aaa", &body)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, body.Specimens, 1)
	assert.Equal(t, model.Identity("bbb"), body.Specimens[0].Identity)
}

func TestGetSpecimen(t *testing.T) {
	ts, st := newTestServer(t)
	seed(t, st, "aaa", "1073")

	var body struct {
		Specimen model.Specimen          `json:"specimen"`
		Record   *model.AggregatedRecord `json:"record"`
	}
	code := getJSON(t, ts.URL+"/specimens/aaa", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.Identity("aaa"), body.Specimen.Identity)
	require.NotNil(t, body.Record)
	assert.Equal(t, "1073", body.Record.CatalogNumber())

	code = getJSON(t, ts.URL+"/specimens/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLineage(t *testing.T) {
	ts, st := newTestServer(t)
	seed(t, st, "aaa", "1073")

	var lin model.Lineage
	code := getJSON(t, ts.URL+"/specimens/aaa/lineage", &lin)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.Identity("aaa"), lin.Specimen.Identity)
	assert.Len(t, lin.Attempts, 1)
	require.NotNil(t, lin.Record)
}

func TestSetReview(t *testing.T) {
	ts, st := newTestServer(t)
	seed(t, st, "aaa", "1073")

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/specimens/aaa/review",
		strings.NewReader(`{"review_ref":"curation-batch-7#42"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sp, err := st.GetSpecimen(context.Background(), "aaa")
	require.NoError(t, err)
	assert.Equal(t, "curation-batch-7#42", sp.ReviewRef)

	// Missing ref is rejected.
	req, err = http.NewRequest(http.MethodPut, ts.URL+"/specimens/aaa/review",
		strings.NewReader(`{}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestByCatalog(t *testing.T) {
	ts, st := newTestServer(t)
	seed(t, st, "aaa", "1073")
	seed(t, st, "bbb", "1073")

	var body struct {
		Holders []model.Lineage `json:"holders"`
	}
	code := getJSON(t, ts.URL+"/records/by-catalog/1073", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body.Holders, 2)
}

func TestFlagCounts(t *testing.T) {
	ts, st := newTestServer(t)
	seed(t, st, "aaa", "1073")
	require.NoError(t, st.ReplaceFlags(context.Background(), "aaa", []model.QualityFlag{
		{Specimen: "aaa", Kind: model.FlagMissingCoreField, Severity: model.SeverityMedium, Detail: "scientificName"},
	}))

	var body struct {
		Counts map[model.FlagKind]int `json:"counts"`
	}
	code := getJSON(t, ts.URL+"/flags", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, body.Counts[model.FlagMissingCoreField])
}
