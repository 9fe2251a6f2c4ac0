// Package provenance reconstructs lineage chains from the append-only store.
// The chain is derived at read time from the same rows every other component
// writes, so it can never drift from what actually happened.
package provenance

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/store"
)

// Tracker answers lineage queries against a store.
type Tracker struct {
	store store.Store
}

// New creates a Tracker over the given store.
func New(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// Lineage assembles the complete provenance chain for one specimen: its
// registration and source files, every transformation, every extraction
// attempt regardless of outcome, the current aggregated record if one has
// been computed, and the advisory flags attached to it.
func (t *Tracker) Lineage(ctx context.Context, identity model.Identity) (*model.Lineage, error) {
	sp, err := t.store.GetSpecimen(ctx, identity)
	if err != nil {
		return nil, err
	}

	lin := &model.Lineage{Specimen: *sp}

	if lin.Transformations, err = t.store.ListTransformations(ctx, identity); err != nil {
		return nil, eris.Wrap(err, "provenance: list transformations")
	}
	if lin.Attempts, err = t.store.ListAttempts(ctx, identity); err != nil {
		return nil, eris.Wrap(err, "provenance: list attempts")
	}
	if lin.Record, err = t.store.GetAggregate(ctx, identity); err != nil {
		return nil, eris.Wrap(err, "provenance: get aggregate")
	}
	if lin.Flags, err = t.store.ListFlags(ctx, identity); err != nil {
		return nil, eris.Wrap(err, "provenance: list flags")
	}
	return lin, nil
}

// ByCatalogNumber resolves a downstream catalogNumber value back to every
// specimen whose current record carries it, with full lineage for each.
// Multiple results mean the catalog number is contested; an empty slice
// means no current record carries the value.
func (t *Tracker) ByCatalogNumber(ctx context.Context, value string) ([]*model.Lineage, error) {
	identities, err := t.store.QueryByCatalogNumber(ctx, value)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Lineage, 0, len(identities))
	for _, id := range identities {
		lin, err := t.Lineage(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, lin)
	}
	return out, nil
}
