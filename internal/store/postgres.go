package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// which keeps the Postgres paths unit-testable without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS specimens (
	identity      TEXT PRIMARY KEY,
	review_ref    TEXT NOT NULL DEFAULT '',
	first_seen_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS specimen_sources (
	specimen_identity TEXT NOT NULL REFERENCES specimens(identity),
	source_ref        TEXT NOT NULL,
	added_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (specimen_identity, source_ref)
);

CREATE TABLE IF NOT EXISTS transformations (
	id                TEXT PRIMARY KEY,
	specimen_identity TEXT NOT NULL REFERENCES specimens(identity),
	derived_identity  TEXT NOT NULL,
	kind              TEXT NOT NULL,
	settings          TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_attempts (
	id                TEXT PRIMARY KEY,
	specimen_identity TEXT NOT NULL REFERENCES specimens(identity),
	provider          TEXT NOT NULL,
	model             TEXT NOT NULL,
	params_hash       TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	canonical         BOOLEAN NOT NULL DEFAULT FALSE,
	fields            JSONB,
	unmapped          JSONB,
	errors            JSONB,
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS aggregated_records (
	specimen_identity TEXT PRIMARY KEY REFERENCES specimens(identity),
	catalog_number    TEXT NOT NULL DEFAULT '',
	record            JSONB NOT NULL,
	computed_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quality_flags (
	specimen_identity TEXT NOT NULL REFERENCES specimens(identity),
	kind              TEXT NOT NULL,
	severity          TEXT NOT NULL,
	detail            TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_canonical
	ON extraction_attempts(specimen_identity, params_hash) WHERE canonical;

CREATE INDEX IF NOT EXISTS idx_attempts_specimen ON extraction_attempts(specimen_identity);
CREATE INDEX IF NOT EXISTS idx_transformations_specimen ON transformations(specimen_identity);
CREATE INDEX IF NOT EXISTS idx_flags_specimen ON quality_flags(specimen_identity);
CREATE INDEX IF NOT EXISTS idx_flags_kind ON quality_flags(kind);
CREATE INDEX IF NOT EXISTS idx_records_catalog ON aggregated_records(catalog_number);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) RegisterSpecimen(ctx context.Context, identity model.Identity, sourceRef string) (*model.Specimen, error) {
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO specimens (identity, first_seen_at) VALUES ($1, $2)
		 ON CONFLICT (identity) DO NOTHING`,
		string(identity), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: register specimen")
	}

	if sourceRef != "" {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO specimen_sources (specimen_identity, source_ref, added_at) VALUES ($1, $2, $3)
			 ON CONFLICT (specimen_identity, source_ref) DO NOTHING`,
			string(identity), sourceRef, now,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: add source ref")
		}
	}

	return s.GetSpecimen(ctx, identity)
}

func (s *PostgresStore) GetSpecimen(ctx context.Context, identity model.Identity) (*model.Specimen, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT identity, review_ref, first_seen_at FROM specimens WHERE identity = $1`,
		string(identity),
	)

	var sp model.Specimen
	err := row.Scan(&sp.Identity, &sp.ReviewRef, &sp.FirstSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("specimen not found: %s", identity)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get specimen")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source_ref FROM specimen_sources WHERE specimen_identity = $1 ORDER BY added_at, source_ref`,
		string(identity),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get source refs")
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source ref")
		}
		sp.SourceRefs = append(sp.SourceRefs, ref)
	}
	return &sp, eris.Wrap(rows.Err(), "postgres: iterate source refs")
}

func (s *PostgresStore) ListSpecimens(ctx context.Context, filter SpecimenFilter) ([]model.Specimen, error) {
	query := `SELECT DISTINCT s.identity, s.review_ref, s.first_seen_at FROM specimens s`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if filter.FlagKind != "" {
		query += ` JOIN quality_flags f ON f.specimen_identity = s.identity AND f.kind = ` + arg(string(filter.FlagKind))
	}
	query += ` WHERE true`
	if filter.Reviewed != nil {
		if *filter.Reviewed {
			query += ` AND s.review_ref != ''`
		} else {
			query += ` AND s.review_ref = ''`
		}
	}
	if filter.After != "" {
		query += ` AND s.identity > ` + arg(string(filter.After))
	}
	query += ` ORDER BY s.identity`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list specimens")
	}
	defer rows.Close()

	var out []model.Specimen
	for rows.Next() {
		var sp model.Specimen
		if err := rows.Scan(&sp.Identity, &sp.ReviewRef, &sp.FirstSeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan specimen")
		}
		out = append(out, sp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list specimens iterate")
}

func (s *PostgresStore) SetReviewRef(ctx context.Context, identity model.Identity, ref string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE specimens SET review_ref = $1 WHERE identity = $2`,
		ref, string(identity),
	)
	if err != nil {
		return eris.Wrap(err, "postgres: set review ref")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("specimen not found: %s", identity)
	}
	return nil
}

func (s *PostgresStore) RecordTransformation(ctx context.Context, tr *model.Transformation) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transformations (id, specimen_identity, derived_identity, kind, settings, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.ID, string(tr.Specimen), string(tr.DerivedIdentity), tr.Kind, tr.Settings, tr.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: record transformation")
}

func (s *PostgresStore) ListTransformations(ctx context.Context, identity model.Identity) ([]model.Transformation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, specimen_identity, derived_identity, kind, settings, created_at
		 FROM transformations WHERE specimen_identity = $1 ORDER BY created_at, id`,
		string(identity),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list transformations")
	}
	defer rows.Close()

	var out []model.Transformation
	for rows.Next() {
		var tr model.Transformation
		if err := rows.Scan(&tr.ID, &tr.Specimen, &tr.DerivedIdentity, &tr.Kind, &tr.Settings, &tr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan transformation")
		}
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list transformations iterate")
}

func (s *PostgresStore) CreateAttempt(ctx context.Context, att *model.Attempt) error {
	if att.Status == "" {
		att.Status = model.AttemptPending
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}

	fields, unmapped, errs, err := marshalAttemptPayload(att)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_attempts (id, specimen_identity, provider, model, params_hash, status, canonical, fields, unmapped, errors, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		att.ID, string(att.Specimen), att.Provider, att.Model, att.ParamsHash,
		string(att.Status), att.Canonical, fields, unmapped, errs, att.CreatedAt.UTC(),
	)
	if err != nil {
		if isPgUnique(err) {
			return resilience.NewIntegrityViolation("create attempt "+att.ID, err)
		}
		return eris.Wrap(err, "postgres: create attempt")
	}
	return nil
}

func (s *PostgresStore) CompleteAttempt(ctx context.Context, id string, fields, unmapped map[string]model.FieldValue) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fields")
	}
	unmappedJSON, err := json.Marshal(unmapped)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal unmapped")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_attempts SET status = $1, canonical = TRUE, fields = $2, unmapped = $3
		 WHERE id = $4 AND status = $5`,
		string(model.AttemptComplete), string(fieldsJSON), string(unmappedJSON),
		id, string(model.AttemptPending),
	)
	if err != nil {
		if isPgUnique(err) {
			return resilience.NewIntegrityViolation("complete attempt "+id, err)
		}
		return eris.Wrapf(err, "postgres: complete attempt %s", id)
	}
	return s.checkTransition(ctx, tag, id)
}

// SupersedeAttempt completes a forced re-extraction: demote the current
// canonical attempt for the dedup key and promote this one in a single
// transaction. The demoted attempt keeps its terminal status in the log.
func (s *PostgresStore) SupersedeAttempt(ctx context.Context, id string, fields, unmapped map[string]model.FieldValue) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fields")
	}
	unmappedJSON, err := json.Marshal(unmapped)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal unmapped")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin supersede")
	}
	defer tx.Rollback(ctx)

	var att model.Attempt
	err = tx.QueryRow(ctx,
		`SELECT specimen_identity, params_hash FROM extraction_attempts WHERE id = $1`, id,
	).Scan(&att.Specimen, &att.ParamsHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Errorf("attempt not found: %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: supersede attempt %s", id)
	}

	key := att.DedupKey()
	if _, err := tx.Exec(ctx,
		`UPDATE extraction_attempts SET canonical = FALSE
		 WHERE specimen_identity = $1 AND params_hash = $2 AND canonical`,
		string(key.Specimen), key.ParamsHash,
	); err != nil {
		return eris.Wrap(err, "postgres: demote canonical attempt")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE extraction_attempts SET status = $1, canonical = TRUE, fields = $2, unmapped = $3
		 WHERE id = $4 AND status = $5`,
		string(model.AttemptComplete), string(fieldsJSON), string(unmappedJSON),
		id, string(model.AttemptPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: supersede attempt %s", id)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return s.checkTransition(ctx, tag, id)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit supersede")
}

func (s *PostgresStore) FailAttempt(ctx context.Context, id string, errs []string) error {
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal errors")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_attempts SET status = $1, errors = $2 WHERE id = $3 AND status = $4`,
		string(model.AttemptFailed), string(errsJSON), id, string(model.AttemptPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail attempt %s", id)
	}
	return s.checkTransition(ctx, tag, id)
}

func (s *PostgresStore) checkTransition(ctx context.Context, tag pgconn.CommandTag, id string) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	att, err := s.GetAttempt(ctx, id)
	if err != nil {
		return err
	}
	return resilience.NewIntegrityViolation("attempt "+id+" is "+string(att.Status)+", terminal states are immutable", nil)
}

func (s *PostgresStore) GetAttempt(ctx context.Context, id string) (*model.Attempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, specimen_identity, provider, model, params_hash, status, canonical, fields, unmapped, errors, created_at
		 FROM extraction_attempts WHERE id = $1`,
		id,
	)
	att, err := scanPgAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("attempt not found: %s", id)
	}
	return att, err
}

func (s *PostgresStore) ListAttempts(ctx context.Context, identity model.Identity) ([]model.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, specimen_identity, provider, model, params_hash, status, canonical, fields, unmapped, errors, created_at
		 FROM extraction_attempts WHERE specimen_identity = $1 ORDER BY created_at, id`,
		string(identity),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		att, err := scanPgAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *att)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list attempts iterate")
}

func (s *PostgresStore) ShouldExtract(ctx context.Context, key model.DedupKey, force bool) (bool, *model.Attempt, error) {
	if force {
		return true, nil, nil
	}

	row := s.pool.QueryRow(ctx,
		`SELECT id, specimen_identity, provider, model, params_hash, status, canonical, fields, unmapped, errors, created_at
		 FROM extraction_attempts
		 WHERE specimen_identity = $1 AND params_hash = $2 AND canonical
		 LIMIT 1`,
		string(key.Specimen), key.ParamsHash,
	)
	att, err := scanPgAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return false, att, nil
}

func (s *PostgresStore) SaveAggregate(ctx context.Context, rec *model.AggregatedRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal aggregate")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO aggregated_records (specimen_identity, catalog_number, record, computed_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (specimen_identity) DO UPDATE SET
			catalog_number = EXCLUDED.catalog_number,
			record = EXCLUDED.record,
			computed_at = EXCLUDED.computed_at`,
		string(rec.Specimen), rec.CatalogNumber(), string(recJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save aggregate")
}

func (s *PostgresStore) GetAggregate(ctx context.Context, identity model.Identity) (*model.AggregatedRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT record FROM aggregated_records WHERE specimen_identity = $1`,
		string(identity),
	)

	var recJSON []byte
	err := row.Scan(&recJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get aggregate")
	}

	var rec model.AggregatedRecord
	if err := json.Unmarshal(recJSON, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal aggregate")
	}
	return &rec, nil
}

func (s *PostgresStore) ReplaceFlags(ctx context.Context, identity model.Identity, flags []model.QualityFlag) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace flags")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM quality_flags WHERE specimen_identity = $1`, string(identity),
	); err != nil {
		return eris.Wrap(err, "postgres: clear flags")
	}

	for _, f := range flags {
		createdAt := f.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO quality_flags (specimen_identity, kind, severity, detail, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			string(identity), string(f.Kind), string(f.Severity), f.Detail, createdAt.UTC(),
		); err != nil {
			return eris.Wrap(err, "postgres: insert flag")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace flags")
}

func (s *PostgresStore) ListFlags(ctx context.Context, identity model.Identity) ([]model.QualityFlag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT specimen_identity, kind, severity, detail, created_at
		 FROM quality_flags WHERE specimen_identity = $1 ORDER BY kind, detail`,
		string(identity),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list flags")
	}
	defer rows.Close()

	var out []model.QualityFlag
	for rows.Next() {
		var f model.QualityFlag
		if err := rows.Scan(&f.Specimen, &f.Kind, &f.Severity, &f.Detail, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan flag")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list flags iterate")
}

func (s *PostgresStore) QueryByCatalogNumber(ctx context.Context, value string) ([]model.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT specimen_identity FROM aggregated_records WHERE catalog_number = $1 ORDER BY specimen_identity`,
		value,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query by catalog number")
	}
	defer rows.Close()

	var out []model.Identity
	for rows.Next() {
		var id model.Identity
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan identity")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query by catalog number iterate")
}

func (s *PostgresStore) ListDuplicateCatalogNumbers(ctx context.Context) (map[string][]model.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT catalog_number, specimen_identity FROM aggregated_records
		 WHERE catalog_number != ''
		   AND catalog_number IN (
			SELECT catalog_number FROM aggregated_records
			WHERE catalog_number != ''
			GROUP BY catalog_number HAVING COUNT(*) > 1
		 )
		 ORDER BY catalog_number, specimen_identity`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list duplicate catalog numbers")
	}
	defer rows.Close()

	out := make(map[string][]model.Identity)
	for rows.Next() {
		var num string
		var id model.Identity
		if err := rows.Scan(&num, &id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate")
		}
		out[num] = append(out[num], id)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list duplicates iterate")
}

func (s *PostgresStore) AttemptCounts(ctx context.Context) (map[model.AttemptStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM extraction_attempts GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: attempt counts")
	}
	defer rows.Close()

	out := make(map[model.AttemptStatus]int)
	for rows.Next() {
		var status model.AttemptStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt count")
		}
		out[status] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: attempt counts iterate")
}

func (s *PostgresStore) FlagCounts(ctx context.Context) (map[model.FlagKind]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, COUNT(*) FROM quality_flags GROUP BY kind`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: flag counts")
	}
	defer rows.Close()

	out := make(map[model.FlagKind]int)
	for rows.Next() {
		var kind model.FlagKind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan flag count")
		}
		out[kind] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: flag counts iterate")
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanPgAttempt(row pgx.Row) (*model.Attempt, error) {
	var att model.Attempt
	var fields, unmapped, errs []byte

	err := row.Scan(&att.ID, &att.Specimen, &att.Provider, &att.Model, &att.ParamsHash,
		&att.Status, &att.Canonical, &fields, &unmapped, &errs, &att.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan attempt")
	}

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &att.Fields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attempt fields")
		}
	}
	if len(unmapped) > 0 {
		if err := json.Unmarshal(unmapped, &att.Unmapped); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attempt unmapped")
		}
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &att.Errors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal attempt errors")
		}
	}
	return &att, nil
}
