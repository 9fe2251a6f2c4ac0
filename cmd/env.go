package main

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/aggregate"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/audit"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/extract"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/pipeline"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/registry"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
	anthropicpkg "github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// env bundles everything the extraction commands share.
type env struct {
	store    store.Store
	registry *model.FieldRegistry
	engines  *extract.Registry
	pipe     *pipeline.Pipeline
}

func (e *env) Close() {
	_ = e.store.Close()
}

func initEnv(ctx context.Context, force bool) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	for _, keys := range [][]string{cfg.Audit.CoreFields, cfg.Audit.DateFields} {
		if err := registry.RequireKeys(reg, keys); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	engines := extract.NewRegistry(cfg.Pipeline.Precedence)
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		engines.Register(extract.NewVisionEngine(client, reg, int64(cfg.Anthropic.MaxTokens)))
	}

	auditor, err := audit.New(cfg.Audit)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	pipe := pipeline.New(st, auditor, pipeline.Options{
		Concurrency: cfg.Pipeline.Concurrency,
		RateLimit:   rate.Limit(cfg.Pipeline.RateLimit),
		Burst:       cfg.Pipeline.Burst,
		Force:       force,
		Aggregate: aggregate.Options{
			Precedence: cfg.Pipeline.Precedence,
		},
	})

	return &env{store: st, registry: reg, engines: engines, pipe: pipe}, nil
}
