package model

// Lineage is the full provenance chain for one specimen: source files in,
// transformations and attempts in the middle, the derived aggregated record
// and its flags out, plus the external review decision reference if one has
// been recorded. The record is a computed view, never an edge target of its
// own.
type Lineage struct {
	Specimen        Specimen          `json:"specimen"`
	Transformations []Transformation  `json:"transformations,omitempty"`
	Attempts        []Attempt         `json:"attempts,omitempty"`
	Record          *AggregatedRecord `json:"record,omitempty"`
	Flags           []QualityFlag     `json:"flags,omitempty"`
}
