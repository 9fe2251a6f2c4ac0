// Package store is the specimen index: the persistent, append-only record
// of specimens, extraction attempts, derived aggregates, and quality flags.
// There is exactly one Store contract and every backend passes the same
// contract test suite; the uniqueness discipline that makes concurrent
// extraction safe lives in the storage schema, not in process memory.
package store

import (
	"context"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

// SpecimenFilter selects specimens for listing and export.
type SpecimenFilter struct {
	FlagKind model.FlagKind `json:"flag_kind,omitempty"`
	Reviewed *bool          `json:"reviewed,omitempty"`
	// After is an exclusive identity cursor; listing resumes past it, which
	// makes export streams restartable.
	After model.Identity `json:"after,omitempty"`
	Limit int            `json:"limit,omitempty"`
}

// Store defines the persistence contract for the extraction core.
//
// Write discipline is "append, then derive": attempts are append-only with
// a single pending→terminal transition, aggregates and flags are derived
// state that any recompute pass may overwrite wholesale.
type Store interface {
	// Specimens
	RegisterSpecimen(ctx context.Context, identity model.Identity, sourceRef string) (*model.Specimen, error)
	GetSpecimen(ctx context.Context, identity model.Identity) (*model.Specimen, error)
	ListSpecimens(ctx context.Context, filter SpecimenFilter) ([]model.Specimen, error)
	SetReviewRef(ctx context.Context, identity model.Identity, ref string) error

	// Transformations
	RecordTransformation(ctx context.Context, tr *model.Transformation) error
	ListTransformations(ctx context.Context, identity model.Identity) ([]model.Transformation, error)

	// Attempts. CreateAttempt inserts a pending attempt; CompleteAttempt and
	// FailAttempt perform the one allowed transition. A completion marks the
	// attempt canonical for its dedup key; CompleteAttempt returns an
	// IntegrityViolation when a canonical attempt already exists for the
	// key, and the losing side of a race must treat that as "already
	// handled". SupersedeAttempt is the forced variant: it demotes the
	// current canonical attempt and promotes this one in a single
	// transaction, leaving the demoted attempt in the log untouched.
	CreateAttempt(ctx context.Context, att *model.Attempt) error
	CompleteAttempt(ctx context.Context, id string, fields, unmapped map[string]model.FieldValue) error
	SupersedeAttempt(ctx context.Context, id string, fields, unmapped map[string]model.FieldValue) error
	FailAttempt(ctx context.Context, id string, errs []string) error
	GetAttempt(ctx context.Context, id string) (*model.Attempt, error)
	ListAttempts(ctx context.Context, identity model.Identity) ([]model.Attempt, error)
	ShouldExtract(ctx context.Context, key model.DedupKey, force bool) (bool, *model.Attempt, error)

	// Derived state
	SaveAggregate(ctx context.Context, rec *model.AggregatedRecord) error
	GetAggregate(ctx context.Context, identity model.Identity) (*model.AggregatedRecord, error)
	ReplaceFlags(ctx context.Context, identity model.Identity, flags []model.QualityFlag) error
	ListFlags(ctx context.Context, identity model.Identity) ([]model.QualityFlag, error)

	// Audit read paths
	QueryByCatalogNumber(ctx context.Context, value string) ([]model.Identity, error)
	ListDuplicateCatalogNumbers(ctx context.Context) (map[string][]model.Identity, error)

	// Reporting
	AttemptCounts(ctx context.Context) (map[model.AttemptStatus]int, error)
	FlagCounts(ctx context.Context) (map[model.FlagKind]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
