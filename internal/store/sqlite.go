package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS specimens (
	identity      TEXT PRIMARY KEY,
	review_ref    TEXT NOT NULL DEFAULT '',
	first_seen_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS specimen_sources (
	specimen_identity TEXT NOT NULL REFERENCES specimens(identity),
	source_ref        TEXT NOT NULL,
	added_at          DATETIME NOT NULL,
	PRIMARY KEY (specimen_identity, source_ref)
);

CREATE TABLE IF NOT EXISTS transformations (
	id                TEXT PRIMARY KEY,
	specimen_identity TEXT NOT NULL REFERENCES specimens(identity),
	derived_identity  TEXT NOT NULL,
	kind              TEXT NOT NULL,
	settings          TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS extraction_attempts (
	id                TEXT PRIMARY KEY,
	specimen_identity TEXT NOT NULL REFERENCES specimens(identity),
	provider          TEXT NOT NULL,
	model             TEXT NOT NULL,
	params_hash       TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	canonical         INTEGER NOT NULL DEFAULT 0,
	fields            TEXT,
	unmapped          TEXT,
	errors            TEXT,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS aggregated_records (
	specimen_identity TEXT PRIMARY KEY REFERENCES specimens(identity),
	catalog_number    TEXT NOT NULL DEFAULT '',
	record            TEXT NOT NULL,
	computed_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS quality_flags (
	specimen_identity TEXT NOT NULL REFERENCES specimens(identity),
	kind              TEXT NOT NULL,
	severity          TEXT NOT NULL,
	detail            TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL
);

-- At most one canonical attempt per dedup key. Enforced here, in storage,
-- so the guarantee holds across worker processes. Forced re-extraction
-- demotes the old canonical row inside the supersede transaction.
CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_canonical
	ON extraction_attempts(specimen_identity, params_hash) WHERE canonical = 1;

CREATE INDEX IF NOT EXISTS idx_attempts_specimen ON extraction_attempts(specimen_identity);
CREATE INDEX IF NOT EXISTS idx_transformations_specimen ON transformations(specimen_identity);
CREATE INDEX IF NOT EXISTS idx_flags_specimen ON quality_flags(specimen_identity);
CREATE INDEX IF NOT EXISTS idx_flags_kind ON quality_flags(kind);
CREATE INDEX IF NOT EXISTS idx_records_catalog ON aggregated_records(catalog_number);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RegisterSpecimen(ctx context.Context, identity model.Identity, sourceRef string) (*model.Specimen, error) {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO specimens (identity, first_seen_at) VALUES (?, ?)
		 ON CONFLICT(identity) DO NOTHING`,
		string(identity), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: register specimen")
	}

	if sourceRef != "" {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO specimen_sources (specimen_identity, source_ref, added_at) VALUES (?, ?, ?)
			 ON CONFLICT(specimen_identity, source_ref) DO NOTHING`,
			string(identity), sourceRef, now,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: add source ref")
		}
	}

	return s.GetSpecimen(ctx, identity)
}

func (s *SQLiteStore) GetSpecimen(ctx context.Context, identity model.Identity) (*model.Specimen, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identity, review_ref, first_seen_at FROM specimens WHERE identity = ?`,
		string(identity),
	)

	var sp model.Specimen
	err := row.Scan(&sp.Identity, &sp.ReviewRef, &sp.FirstSeenAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("specimen not found: %s", identity)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get specimen")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_ref FROM specimen_sources WHERE specimen_identity = ? ORDER BY added_at, source_ref`,
		string(identity),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get source refs")
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source ref")
		}
		sp.SourceRefs = append(sp.SourceRefs, ref)
	}
	return &sp, eris.Wrap(rows.Err(), "sqlite: iterate source refs")
}

func (s *SQLiteStore) ListSpecimens(ctx context.Context, filter SpecimenFilter) ([]model.Specimen, error) {
	query := `SELECT DISTINCT s.identity, s.review_ref, s.first_seen_at FROM specimens s`
	var args []any

	if filter.FlagKind != "" {
		query += ` JOIN quality_flags f ON f.specimen_identity = s.identity AND f.kind = ?`
		args = append(args, string(filter.FlagKind))
	}
	query += ` WHERE 1=1`
	if filter.Reviewed != nil {
		if *filter.Reviewed {
			query += ` AND s.review_ref != ''`
		} else {
			query += ` AND s.review_ref = ''`
		}
	}
	if filter.After != "" {
		query += ` AND s.identity > ?`
		args = append(args, string(filter.After))
	}
	query += ` ORDER BY s.identity`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list specimens")
	}
	defer rows.Close()

	var out []model.Specimen
	for rows.Next() {
		var sp model.Specimen
		if err := rows.Scan(&sp.Identity, &sp.ReviewRef, &sp.FirstSeenAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan specimen")
		}
		out = append(out, sp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list specimens iterate")
}

func (s *SQLiteStore) SetReviewRef(ctx context.Context, identity model.Identity, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE specimens SET review_ref = ? WHERE identity = ?`,
		ref, string(identity),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: set review ref")
	}
	return checkRowsAffected(res, "specimen", string(identity))
}

func (s *SQLiteStore) RecordTransformation(ctx context.Context, tr *model.Transformation) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transformations (id, specimen_identity, derived_identity, kind, settings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ID, string(tr.Specimen), string(tr.DerivedIdentity), tr.Kind, tr.Settings, tr.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: record transformation")
}

func (s *SQLiteStore) ListTransformations(ctx context.Context, identity model.Identity) ([]model.Transformation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, specimen_identity, derived_identity, kind, settings, created_at
		 FROM transformations WHERE specimen_identity = ? ORDER BY created_at, id`,
		string(identity),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list transformations")
	}
	defer rows.Close()

	var out []model.Transformation
	for rows.Next() {
		var tr model.Transformation
		if err := rows.Scan(&tr.ID, &tr.Specimen, &tr.DerivedIdentity, &tr.Kind, &tr.Settings, &tr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan transformation")
		}
		out = append(out, tr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list transformations iterate")
}

func (s *SQLiteStore) CreateAttempt(ctx context.Context, att *model.Attempt) error {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_attempts (id, specimen_identity, provider, model, params_hash, status, canonical, fields, unmapped, errors, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		att.ID, string(att.Specimen), att.Provider, att.Model, att.ParamsHash,
		string(att.Status), att.Canonical, fields, unmapped, errs, att.CreatedAt.UTC(),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return resilience.NewIntegrityViolation("create attempt "+att.ID, err)
		}
		return eris.Wrap(err, "sqlite: create attempt")
	}
	return nil
}

func (s *SQLiteStore) CompleteAttempt(ctx context.Context, id string, fields, unmapped map[string]model.FieldValue) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields")
	}
	unmappedJSON, err := json.Marshal(unmapped)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal unmapped")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_attempts SET status = ?, canonical = 1, fields = ?, unmapped = ?
		 WHERE id = ? AND status = ?`,
		string(model.AttemptComplete), string(fieldsJSON), string(unmappedJSON),
		id, string(model.AttemptPending),
	)
	if err != nil {
		// The partial unique index fires here when another worker already
		// completed the same dedup key: this caller lost the race.
		if isSQLiteUnique(err) {
			return resilience.NewIntegrityViolation("complete attempt "+id, err)
		}
		return eris.Wrapf(err, "sqlite: complete attempt %s", id)
	}
	return s.checkTransition(ctx, res, id)
}

// SupersedeAttempt completes a forced re-extraction: the previous canonical
// attempt for the same dedup key loses its canonical mark, this attempt
// gains it, and both stay in the log. Demote and promote commit together so
// no reader ever sees zero or two canonical attempts for the key.
func (s *SQLiteStore) SupersedeAttempt(ctx context.Context, id string, fields, unmapped map[string]model.FieldValue) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields")
	}
	unmappedJSON, err := json.Marshal(unmapped)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal unmapped")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin supersede")
	}
	defer tx.Rollback()

	var att model.Attempt
	err = tx.QueryRowContext(ctx,
		`SELECT specimen_identity, params_hash FROM extraction_attempts WHERE id = ?`, id,
	).Scan(&att.Specimen, &att.ParamsHash)
	if err == sql.ErrNoRows {
		return eris.Errorf("attempt not found: %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: supersede attempt %s", id)
	}

	key := att.DedupKey()
	if _, err := tx.ExecContext(ctx,
		`UPDATE extraction_attempts SET canonical = 0
		 WHERE specimen_identity = ? AND params_hash = ? AND canonical = 1`,
		string(key.Specimen), key.ParamsHash,
	); err != nil {
		return eris.Wrap(err, "sqlite: demote canonical attempt")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE extraction_attempts SET status = ?, canonical = 1, fields = ?, unmapped = ?
		 WHERE id = ? AND status = ?`,
		string(model.AttemptComplete), string(fieldsJSON), string(unmappedJSON),
		id, string(model.AttemptPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: supersede attempt %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		tx.Rollback()
		return s.checkTransition(ctx, res, id)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit supersede")
}

func (s *SQLiteStore) FailAttempt(ctx context.Context, id string, errs []string) error {
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal errors")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_attempts SET status = ?, errors = ? WHERE id = ? AND status = ?`,
		string(model.AttemptFailed), string(errsJSON), id, string(model.AttemptPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail attempt %s", id)
	}
	return s.checkTransition(ctx, res, id)
}

// checkTransition distinguishes "attempt missing" from "attempt already
// terminal" when a status transition matched zero rows.
func (s *SQLiteStore) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n > 0 {
		return nil
	}
	att, err := s.GetAttempt(ctx, id)
	if err != nil {
		return err
	}
	return resilience.NewIntegrityViolation("attempt "+id+" is "+string(att.Status)+", terminal states are immutable", nil)
}

func (s *SQLiteStore) GetAttempt(ctx context.Context, id string) (*model.Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, specimen_identity, provider, model, params_hash, status, canonical, fields, unmapped, errors, created_at
		 FROM extraction_attempts WHERE id = ?`,
		id,
	)
	att, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("attempt not found: %s", id)
	}
	return att, err
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, identity model.Identity) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, specimen_identity, provider, model, params_hash, status, canonical, fields, unmapped, errors, created_at
		 FROM extraction_attempts WHERE specimen_identity = ? ORDER BY created_at, id`,
		string(identity),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		att, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *att)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list attempts iterate")
}

func (s *SQLiteStore) ShouldExtract(ctx context.Context, key model.DedupKey, force bool) (bool, *model.Attempt, error) {
	if force {
		return true, nil, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, specimen_identity, provider, model, params_hash, status, canonical, fields, unmapped, errors, created_at
		 FROM extraction_attempts
		 WHERE specimen_identity = ? AND params_hash = ? AND canonical = 1
		 LIMIT 1`,
		string(key.Specimen), key.ParamsHash,
	)
	att, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return true, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return false, att, nil
}

func (s *SQLiteStore) SaveAggregate(ctx context.Context, rec *model.AggregatedRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal aggregate")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO aggregated_records (specimen_identity, catalog_number, record, computed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(specimen_identity) DO UPDATE SET
			catalog_number = excluded.catalog_number,
			record = excluded.record,
			computed_at = excluded.computed_at`,
		string(rec.Specimen), rec.CatalogNumber(), string(recJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save aggregate")
}

func (s *SQLiteStore) GetAggregate(ctx context.Context, identity model.Identity) (*model.AggregatedRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM aggregated_records WHERE specimen_identity = ?`,
		string(identity),
	)

	var recJSON string
	err := row.Scan(&recJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get aggregate")
	}

	var rec model.AggregatedRecord
	if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal aggregate")
	}
	return &rec, nil
}

func (s *SQLiteStore) ReplaceFlags(ctx context.Context, identity model.Identity, flags []model.QualityFlag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace flags")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM quality_flags WHERE specimen_identity = ?`, string(identity),
	); err != nil {
		return eris.Wrap(err, "sqlite: clear flags")
	}

	for _, f := range flags {
		createdAt := f.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quality_flags (specimen_identity, kind, severity, detail, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			string(identity), string(f.Kind), string(f.Severity), f.Detail, createdAt.UTC(),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert flag")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace flags")
}

func (s *SQLiteStore) ListFlags(ctx context.Context, identity model.Identity) ([]model.QualityFlag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT specimen_identity, kind, severity, detail, created_at
		 FROM quality_flags WHERE specimen_identity = ? ORDER BY kind, detail`,
		string(identity),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list flags")
	}
	defer rows.Close()

	var out []model.QualityFlag
	for rows.Next() {
		var f model.QualityFlag
		if err := rows.Scan(&f.Specimen, &f.Kind, &f.Severity, &f.Detail, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan flag")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list flags iterate")
}

func (s *SQLiteStore) QueryByCatalogNumber(ctx context.Context, value string) ([]model.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT specimen_identity FROM aggregated_records WHERE catalog_number = ? ORDER BY specimen_identity`,
		value,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query by catalog number")
	}
	defer rows.Close()

	var out []model.Identity
	for rows.Next() {
		var id model.Identity
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan identity")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query by catalog number iterate")
}

func (s *SQLiteStore) ListDuplicateCatalogNumbers(ctx context.Context) (map[string][]model.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
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
		return nil, eris.Wrap(err, "sqlite: list duplicate catalog numbers")
	}
	defer rows.Close()

	out := make(map[string][]model.Identity)
	for rows.Next() {
		var num string
		var id model.Identity
		if err := rows.Scan(&num, &id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan duplicate")
		}
		out[num] = append(out[num], id)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list duplicates iterate")
}

func (s *SQLiteStore) AttemptCounts(ctx context.Context) (map[model.AttemptStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM extraction_attempts GROUP BY status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: attempt counts")
	}
	defer rows.Close()

	out := make(map[model.AttemptStatus]int)
	for rows.Next() {
		var status model.AttemptStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt count")
		}
		out[status] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: attempt counts iterate")
}

func (s *SQLiteStore) FlagCounts(ctx context.Context) (map[model.FlagKind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM quality_flags GROUP BY kind`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: flag counts")
	}
	defer rows.Close()

	out := make(map[model.FlagKind]int)
	for rows.Next() {
		var kind model.FlagKind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan flag count")
		}
		out[kind] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: flag counts iterate")
}

// helpers

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func marshalAttemptPayload(att *model.Attempt) (fields, unmapped, errs string, err error) {
	f, err := json.Marshal(att.Fields)
	if err != nil {
		return "", "", "", eris.Wrap(err, "marshal attempt fields")
	}
	u, err := json.Marshal(att.Unmapped)
	if err != nil {
		return "", "", "", eris.Wrap(err, "marshal attempt unmapped")
	}
	e, err := json.Marshal(att.Errors)
	if err != nil {
		return "", "", "", eris.Wrap(err, "marshal attempt errors")
	}
	return string(f), string(u), string(e), nil
}

func scanAttempt(row scannable) (*model.Attempt, error) {
	var att model.Attempt
	var fields, unmapped, errs sql.NullString

	err := row.Scan(&att.ID, &att.Specimen, &att.Provider, &att.Model, &att.ParamsHash,
		&att.Status, &att.Canonical, &fields, &unmapped, &errs, &att.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan attempt")
	}

	if fields.Valid && fields.String != "" {
		if err := json.Unmarshal([]byte(fields.String), &att.Fields); err != nil {
			return nil, eris.Wrap(err, "unmarshal attempt fields")
		}
	}
	if unmapped.Valid && unmapped.String != "" {
		if err := json.Unmarshal([]byte(unmapped.String), &att.Unmapped); err != nil {
			return nil, eris.Wrap(err, "unmarshal attempt unmapped")
		}
	}
	if errs.Valid && errs.String != "" {
		if err := json.Unmarshal([]byte(errs.String), &att.Errors); err != nil {
			return nil, eris.Wrap(err, "unmarshal attempt errors")
		}
	}
	return &att, nil
}
