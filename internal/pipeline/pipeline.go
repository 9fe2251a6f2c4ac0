// Package pipeline orchestrates batch extraction and recomputation. Workers
// share nothing in process; all coordination happens through the store, so
// concurrent pipelines against the same database stay correct.
package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/aggregate"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/audit"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/dedup"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/extract"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

const (
	defaultConcurrency = 4
	defaultRateLimit   = rate.Limit(2)
	defaultBurst       = 4
)

// Options configures a Pipeline run.
type Options struct {
	// Concurrency caps parallel extraction workers.
	Concurrency int
	// RateLimit throttles provider calls across all workers.
	RateLimit rate.Limit
	Burst     int
	// Force re-runs extraction even when a completed attempt already
	// covers the parameter set.
	Force bool
	// Aggregation settings applied on recompute.
	Aggregate aggregate.Options
}

// Summary reports what one batch run did.
type Summary struct {
	Extracted  int
	Skipped    int
	Failed     int
	Duplicates int
	Recomputed int
}

// Pipeline wires the dedup runner, aggregator, and auditor over one store.
type Pipeline struct {
	store   store.Store
	runner  *dedup.Runner
	auditor *audit.Auditor
	opts    Options
	limiter *rate.Limiter
}

// New creates a Pipeline. Zero-valued options fall back to defaults.
func New(st store.Store, auditor *audit.Auditor, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	return &Pipeline{
		store:   st,
		runner:  dedup.New(st),
		auditor: auditor,
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
	}
}

// Task is one unit of extraction work: one image against one engine under
// one parameter set.
type Task struct {
	Image  extract.ImageRef
	Engine extract.Engine
	Params extract.ParamSet
}

// Run executes all tasks with bounded concurrency, then recomputes the
// aggregated record and flags for every specimen the batch touched.
//
// Individual task failures are recorded as failed attempts and counted in
// the summary; only infrastructure errors (store unreachable, context
// cancelled) abort the batch.
func (p *Pipeline) Run(ctx context.Context, tasks []Task) (*Summary, error) {
	var (
		mu      sync.Mutex
		sum     Summary
		touched = map[model.Identity]struct{}{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for _, task := range tasks {
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}
			out, err := p.runner.Run(gctx, task.Image, task.Engine, task.Params, p.opts.Force)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			touched[task.Image.Identity] = struct{}{}
			switch {
			case !out.Ran:
				sum.Skipped++
			case out.Duplicate:
				sum.Duplicates++
			case out.Attempt.Status == model.AttemptFailed:
				sum.Failed++
			default:
				sum.Extracted++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &sum, eris.Wrap(err, "pipeline: run batch")
	}

	for id := range touched {
		if err := p.Recompute(ctx, id); err != nil {
			return &sum, err
		}
		sum.Recomputed++
	}

	zap.L().Info("batch complete",
		zap.Int("extracted", sum.Extracted),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("recomputed", sum.Recomputed),
	)
	return &sum, nil
}

// Recompute rebuilds the aggregated record and quality flags for one
// specimen from its current attempt set, then refreshes flags on any peer
// specimens sharing its catalog number so duplicate flags stay symmetric
// on both sides as attempts land.
func (p *Pipeline) Recompute(ctx context.Context, identity model.Identity) error {
	prev, err := p.store.GetAggregate(ctx, identity)
	if err != nil {
		return err
	}

	if err := p.recomputeOne(ctx, identity); err != nil {
		return err
	}

	// Catalog peers under the old and new values both need their
	// duplicate flags re-evaluated: the old group may have shrunk to a
	// sole holder, the new group may have gained a second.
	peers := map[model.Identity]struct{}{}
	if err := p.catalogPeers(ctx, prev.CatalogNumber(), identity, peers); err != nil {
		return err
	}
	next, err := p.store.GetAggregate(ctx, identity)
	if err != nil {
		return err
	}
	if err := p.catalogPeers(ctx, next.CatalogNumber(), identity, peers); err != nil {
		return err
	}
	for peer := range peers {
		if err := p.reflag(ctx, peer); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) recomputeOne(ctx context.Context, identity model.Identity) error {
	attempts, err := p.store.ListAttempts(ctx, identity)
	if err != nil {
		return err
	}
	rec := aggregate.Compute(identity, attempts, p.opts.Aggregate)
	if err := p.store.SaveAggregate(ctx, rec); err != nil {
		return err
	}
	return p.reflag(ctx, identity)
}

func (p *Pipeline) reflag(ctx context.Context, identity model.Identity) error {
	rec, err := p.store.GetAggregate(ctx, identity)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	flags, err := p.auditor.Evaluate(ctx, p.store, rec)
	if err != nil {
		return err
	}
	return p.store.ReplaceFlags(ctx, identity, flags)
}

func (p *Pipeline) catalogPeers(ctx context.Context, catalog string, self model.Identity, peers map[model.Identity]struct{}) error {
	if catalog == "" {
		return nil
	}
	holders, err := p.store.QueryByCatalogNumber(ctx, catalog)
	if err != nil {
		return err
	}
	for _, h := range holders {
		if h != self {
			peers[h] = struct{}{}
		}
	}
	return nil
}

// RecomputeAll rebuilds records and flags for every specimen in the store,
// walking the specimen list in cursor pages. Used after aggregation or
// audit settings change.
func (p *Pipeline) RecomputeAll(ctx context.Context) (int, error) {
	const pageSize = 200

	var (
		count  int
		cursor model.Identity
	)
	for {
		specs, err := p.store.ListSpecimens(ctx, store.SpecimenFilter{After: cursor, Limit: pageSize})
		if err != nil {
			return count, eris.Wrap(err, "pipeline: list specimens")
		}
		if len(specs) == 0 {
			return count, nil
		}
		for _, sp := range specs {
			if err := p.recomputeOne(ctx, sp.Identity); err != nil {
				return count, err
			}
			count++
		}
		cursor = specs[len(specs)-1].Identity
	}
}
