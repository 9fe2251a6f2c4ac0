package model

import "time"

// AttemptStatus is the lifecycle state of an extraction attempt.
type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "pending"
	AttemptComplete AttemptStatus = "complete"
	AttemptFailed   AttemptStatus = "failed"
)

// Terminal reports whether the status is final. Terminal attempts are
// immutable; the store rejects any further edit.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptComplete || s == AttemptFailed
}

// FieldValue is one extracted field value with the provider's confidence.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Attempt is one extraction run of one provider/model against one specimen
// under one parameter set. Attempts are append-only: they start pending and
// move exactly once to complete or failed.
type Attempt struct {
	ID         string        `json:"id"`
	Specimen   Identity      `json:"specimen_identity"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	ParamsHash string        `json:"params_hash"`
	Status     AttemptStatus `json:"status"`
	// Canonical marks the one completed attempt that currently satisfies
	// the dedup key. A forced re-extraction demotes the previous canonical
	// attempt without touching its terminal status, so the full attempt log
	// survives while only the newest result feeds aggregation.
	Canonical bool                  `json:"canonical,omitempty"`
	Fields    map[string]FieldValue `json:"fields,omitempty"`
	Unmapped  map[string]FieldValue `json:"unmapped,omitempty"`
	Errors    []string              `json:"errors,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// DedupKey is the unit of "has this already been tried": one specimen under
// one parameter set.
type DedupKey struct {
	Specimen   Identity `json:"specimen_identity"`
	ParamsHash string   `json:"params_hash"`
}

func (a *Attempt) DedupKey() DedupKey {
	return DedupKey{Specimen: a.Specimen, ParamsHash: a.ParamsHash}
}
