package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetSpecimen_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT identity, review_ref, first_seen_at FROM specimens WHERE identity = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSpecimen(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specimen not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAttempt_UniqueViolation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO extraction_attempts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "extraction_attempts_pkey"})

	err := s.CreateAttempt(context.Background(), &model.Attempt{
		ID:         "att-1",
		Specimen:   "abc123",
		Provider:   "anthropic",
		Model:      "m",
		ParamsHash: "v1",
		Status:     model.AttemptPending,
	})
	require.Error(t, err)
	assert.True(t, resilience.IsIntegrityViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteAttempt_RaceLoser(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE extraction_attempts SET status = \$1, canonical = TRUE, fields = \$2, unmapped = \$3`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_attempts_canonical"})

	err := s.CompleteAttempt(context.Background(), "att-loser",
		map[string]model.FieldValue{model.FieldCatalogNumber: {Value: "1073", Confidence: 0.8}}, nil)
	require.Error(t, err)
	assert.True(t, resilience.IsIntegrityViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SupersedeAttempt_DemotesThenPromotes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT specimen_identity, params_hash FROM extraction_attempts WHERE id = \$1`).
		WithArgs("att-force").
		WillReturnRows(pgxmock.NewRows([]string{"specimen_identity", "params_hash"}).
			AddRow("abc123", "p1"))
	mock.ExpectExec(`UPDATE extraction_attempts SET canonical = FALSE`).
		WithArgs("abc123", "p1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE extraction_attempts SET status = \$1, canonical = TRUE, fields = \$2, unmapped = \$3`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.SupersedeAttempt(context.Background(), "att-force",
		map[string]model.FieldValue{model.FieldCatalogNumber: {Value: "1099", Confidence: 0.9}}, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ShouldExtract_NoExisting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, specimen_identity, provider, model, params_hash`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	ok, existing, err := s.ShouldExtract(context.Background(), model.DedupKey{Specimen: "abc123", ParamsHash: "v1"}, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ShouldExtract_Force(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Force never touches the database.
	ok, existing, err := s.ShouldExtract(context.Background(), model.DedupKey{Specimen: "abc123", ParamsHash: "v1"}, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}
