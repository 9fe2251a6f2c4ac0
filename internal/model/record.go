package model

import "time"

// SelectedValue is the winning value for one field of an aggregated record,
// with the attempt it came from.
type SelectedValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	AttemptID  string  `json:"attempt_id"`
	Provider   string  `json:"provider"`
}

// Candidate is one field value offered by one attempt, kept verbatim when
// attempts disagree so reviewers can see every reading.
type Candidate struct {
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	AttemptID  string    `json:"attempt_id"`
	Provider   string    `json:"provider"`
	CreatedAt  time.Time `json:"created_at"`
}

// AggregatedRecord is the fused best-available field set for a specimen
// across all of its completed attempts. It is a pure function of the attempt
// set: recomputed from scratch every time, never patched in place.
type AggregatedRecord struct {
	Specimen   Identity                 `json:"specimen_identity"`
	Fields     map[string]SelectedValue `json:"fields"`
	Conflicts  map[string][]Candidate   `json:"conflicts,omitempty"`
	Confidence float64                  `json:"confidence"`
}

// CatalogNumber returns the selected catalogNumber value, or "".
func (r *AggregatedRecord) CatalogNumber() string {
	if r == nil {
		return ""
	}
	return r.Fields[FieldCatalogNumber].Value
}

// FlagKind identifies a class of data-quality problem.
type FlagKind string

const (
	FlagFieldConflict     FlagKind = "field_conflict"
	FlagDuplicateCatalog  FlagKind = "duplicate_catalog_number"
	FlagMissingCoreField  FlagKind = "missing_core_field"
	FlagImplausibleDate   FlagKind = "implausible_date"
	FlagMalformedCatalog  FlagKind = "malformed_catalog_number"
)

// FlagSeverity ranks how urgently a flag needs human attention.
type FlagSeverity string

const (
	SeverityLow    FlagSeverity = "low"
	SeverityMedium FlagSeverity = "medium"
	SeverityHigh   FlagSeverity = "high"
)

// QualityFlag is an advisory annotation on a specimen record. Flags never
// block or rewrite data; human review is the sole authority for corrections.
type QualityFlag struct {
	Specimen  Identity     `json:"specimen_identity"`
	Kind      FlagKind     `json:"kind"`
	Severity  FlagSeverity `json:"severity"`
	Detail    string       `json:"detail,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
