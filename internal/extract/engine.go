// Package extract defines the contract between the core and external
// text/field-extraction engines. The core never performs recognition itself
// and never retries a failed engine call; it records whatever came back as a
// terminal attempt and leaves retry policy to the orchestrating caller.
package extract

import (
	"context"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/identity"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

// ParamSet identifies one way of running an extraction: provider, model,
// prompt version, and preprocessing settings. Its hash is half of the dedup
// key, so bumping any component automatically yields a fresh key.
type ParamSet struct {
	Provider      string            `json:"provider"`
	Model         string            `json:"model"`
	PromptVersion string            `json:"prompt_version"`
	Preprocess    map[string]string `json:"preprocess,omitempty"`
}

// Hash returns the canonical params hash for dedup.
func (p ParamSet) Hash() (string, error) {
	return identity.HashParams(p)
}

// ImageRef points an engine at one specimen image.
type ImageRef struct {
	Identity  model.Identity
	Path      string
	MediaType string
}

// Result is what an engine returns for one image: per-field values with
// confidences, anything outside the known schema, and non-fatal warnings.
type Result struct {
	Fields   map[string]model.FieldValue
	Unmapped map[string]model.FieldValue
	Errors   []string
}

// Engine is one external extraction provider.
type Engine interface {
	Name() string
	Extract(ctx context.Context, img ImageRef, params ParamSet) (*Result, error)
}

// Registry holds the configured engines in precedence order.
type Registry struct {
	engines    map[string]Engine
	precedence []string
}

// NewRegistry creates an empty engine registry. The precedence order is
// also the aggregation tie-break order.
func NewRegistry(precedence []string) *Registry {
	return &Registry{
		engines:    make(map[string]Engine),
		precedence: precedence,
	}
}

// Register adds an engine under its own name.
func (r *Registry) Register(e Engine) {
	r.engines[e.Name()] = e
}

// Get returns the engine with the given name, or nil.
func (r *Registry) Get(name string) Engine {
	return r.engines[name]
}

// Precedence returns the configured provider precedence order.
func (r *Registry) Precedence() []string {
	return r.precedence
}
