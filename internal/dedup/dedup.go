// Package dedup pairs the "should we extract" check with attempt recording
// so callers never observe a window between check and commit. The guard is
// the store's uniqueness constraint, not an in-process lock: it holds across
// independent worker processes.
package dedup

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/extract"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

// Outcome reports what one guarded extraction did.
type Outcome struct {
	// Attempt is the attempt that satisfies the dedup key after the run:
	// the pre-existing canonical attempt when Ran is false, otherwise the
	// attempt this run recorded (which may be failed).
	Attempt *model.Attempt
	// Ran is false when a completed attempt already covered the dedup key
	// and no engine call was made.
	Ran bool
	// Duplicate is true when this run lost a concurrent completion race.
	// Its attempt was recorded as failed; the canonical result belongs to
	// the winner.
	Duplicate bool
}

// Runner executes dedup-guarded extractions.
type Runner struct {
	store store.Store
}

// New creates a Runner over the given store.
func New(st store.Store) *Runner {
	return &Runner{store: st}
}

// Run performs one guarded extraction of img with engine under params.
//
// A parameter set that encodes provider, model, and prompt version means a
// version bump opens a new dedup key by itself; re-running an unchanged
// parameter set requires the explicit force flag, never silent invalidation.
// A forced completion supersedes the previous canonical attempt: the old
// result stays in the log but stops feeding aggregation.
//
// Engine failures (transport errors, timeouts, malformed responses) are
// recorded as terminal failed attempts and do not surface as errors here;
// retry policy belongs to the orchestrating caller. Configuration failures
// (missing credentials, unknown prompt version) are recorded the same way
// but then surface as errors, since retrying them is pointless until the
// setup changes.
func (r *Runner) Run(ctx context.Context, img extract.ImageRef, engine extract.Engine, params extract.ParamSet, force bool) (*Outcome, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	key := model.DedupKey{Specimen: img.Identity, ParamsHash: hash}

	ok, existing, err := r.store.ShouldExtract(ctx, key, force)
	if err != nil {
		return nil, err
	}
	if !ok {
		zap.L().Debug("extraction skipped, dedup key already satisfied",
			zap.String("specimen", string(img.Identity)),
			zap.String("params_hash", hash),
			zap.String("attempt_id", existing.ID),
		)
		return &Outcome{Attempt: existing, Ran: false}, nil
	}

	att := &model.Attempt{
		ID:         uuid.New().String(),
		Specimen:   img.Identity,
		Provider:   params.Provider,
		Model:      params.Model,
		ParamsHash: hash,
		Status:     model.AttemptPending,
	}
	if err := r.store.CreateAttempt(ctx, att); err != nil {
		return nil, eris.Wrap(err, "dedup: create attempt")
	}

	outcome := &Outcome{Ran: true}
	res, extractErr := engine.Extract(ctx, img, params)
	switch {
	case extractErr != nil:
		zap.L().Warn("extraction failed",
			zap.String("specimen", string(img.Identity)),
			zap.String("provider", params.Provider),
			zap.Bool("transient", resilience.IsTransient(extractErr)),
			zap.Error(extractErr),
		)
		if err := r.store.FailAttempt(ctx, att.ID, []string{extractErr.Error()}); err != nil {
			return nil, eris.Wrap(err, "dedup: fail attempt")
		}
		if resilience.IsConfiguration(extractErr) {
			return nil, eris.Wrap(extractErr, "dedup: engine configuration")
		}

	default:
		var err error
		if force {
			// Forced rerun: the new result supersedes the previous canonical
			// attempt instead of losing to it.
			err = r.store.SupersedeAttempt(ctx, att.ID, res.Fields, res.Unmapped)
		} else {
			err = r.store.CompleteAttempt(ctx, att.ID, res.Fields, res.Unmapped)
		}
		if resilience.IsIntegrityViolation(err) {
			// Another worker completed the same dedup key first. This
			// result is a duplicate: record the loss and move on.
			zap.L().Info("extraction lost completion race, discarding as duplicate",
				zap.String("specimen", string(img.Identity)),
				zap.String("params_hash", hash),
			)
			outcome.Duplicate = true
			if err := r.store.FailAttempt(ctx, att.ID, []string{"duplicate: canonical attempt already completed for dedup key"}); err != nil {
				return nil, eris.Wrap(err, "dedup: fail duplicate attempt")
			}
		} else if err != nil {
			return nil, eris.Wrap(err, "dedup: complete attempt")
		}
	}

	final, err := r.store.GetAttempt(ctx, att.ID)
	if err != nil {
		return nil, err
	}
	outcome.Attempt = final
	return outcome, nil
}
