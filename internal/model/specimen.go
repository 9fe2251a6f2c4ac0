package model

import "time"

// Identity is the content hash of a specimen's original image bytes.
// It is the primary key for everything downstream; filenames are never
// used as identity.
type Identity string

// Specimen is one physical photographed item. Multiple source files that
// hash to the same content attach as additional source refs, never as a
// second specimen.
type Specimen struct {
	Identity    Identity  `json:"identity"`
	SourceRefs  []string  `json:"source_refs,omitempty"`
	ReviewRef   string    `json:"review_ref,omitempty"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// Transformation links a derived (preprocessed) image back to the original
// specimen it came from.
type Transformation struct {
	ID              string    `json:"id"`
	Specimen        Identity  `json:"specimen_identity"`
	DerivedIdentity Identity  `json:"derived_identity"`
	Kind            string    `json:"kind"`
	Settings        string    `json:"settings,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
