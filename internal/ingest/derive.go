package ingest

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/identity"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

// RegisterDerived records a preprocessed image (deskew, contrast stretch,
// crop) as a transformation of an existing specimen. The derived image gets
// its own content identity but never becomes a specimen; lineage queries
// follow the edge back to the original.
func (in *Ingestor) RegisterDerived(ctx context.Context, orig model.Identity, data []byte, kind, settings string) (model.Identity, error) {
	if _, err := in.store.GetSpecimen(ctx, orig); err != nil {
		return "", eris.Wrapf(err, "ingest: derived image needs a registered original")
	}

	derived := identity.HashImage(data)
	err := in.store.RecordTransformation(ctx, &model.Transformation{
		ID:              uuid.New().String(),
		Specimen:        orig,
		DerivedIdentity: derived,
		Kind:            kind,
		Settings:        settings,
	})
	if err != nil {
		return "", err
	}
	return derived, nil
}
