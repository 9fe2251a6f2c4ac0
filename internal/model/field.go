package model

// Darwin Core terms the engine maps provider output onto. Anything a
// provider returns outside this enumeration lands in the attempt's Unmapped
// bucket rather than being rejected or silently dropped.
const (
	FieldCatalogNumber    = "catalogNumber"
	FieldScientificName   = "scientificName"
	FieldEventDate        = "eventDate"
	FieldRecordedBy       = "recordedBy"
	FieldRecordNumber     = "recordNumber"
	FieldLocality         = "locality"
	FieldStateProvince    = "stateProvince"
	FieldCountry          = "country"
	FieldHabitat          = "habitat"
	FieldDecimalLatitude  = "decimalLatitude"
	FieldDecimalLongitude = "decimalLongitude"
	FieldMinimumElevation = "minimumElevationInMeters"
	FieldIdentifiedBy     = "identifiedBy"
	FieldVerbatimLabel    = "verbatimLabel"
)

// FieldMapping describes one known field in the schema registry.
type FieldMapping struct {
	Key      string `yaml:"key" json:"key"`
	Term     string `yaml:"term,omitempty" json:"term,omitempty"` // full Darwin Core URI, informational
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// FieldRegistry is an indexed collection of field mappings.
type FieldRegistry struct {
	Fields   []FieldMapping
	byKey    map[string]*FieldMapping
	required []*FieldMapping
}

// NewFieldRegistry creates a FieldRegistry with indexed lookups.
func NewFieldRegistry(fields []FieldMapping) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byKey:  make(map[string]*FieldMapping, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		r.byKey[f.Key] = f
		if f.Required {
			r.required = append(r.required, f)
		}
	}
	return r
}

// ByKey returns the field mapping for the given key, or nil if not found.
func (r *FieldRegistry) ByKey(key string) *FieldMapping {
	return r.byKey[key]
}

// Known reports whether key is part of the enumerated schema.
func (r *FieldRegistry) Known(key string) bool {
	return r.byKey[key] != nil
}

// Required returns all required field mappings.
func (r *FieldRegistry) Required() []*FieldMapping {
	return r.required
}

// DefaultFields is the built-in Darwin Core enumeration used when no
// registry file is configured.
func DefaultFields() []FieldMapping {
	return []FieldMapping{
		{Key: FieldCatalogNumber, Required: true},
		{Key: FieldScientificName, Required: true},
		{Key: FieldEventDate},
		{Key: FieldRecordedBy},
		{Key: FieldRecordNumber},
		{Key: FieldLocality},
		{Key: FieldStateProvince},
		{Key: FieldCountry},
		{Key: FieldHabitat},
		{Key: FieldDecimalLatitude},
		{Key: FieldDecimalLongitude},
		{Key: FieldMinimumElevation},
		{Key: FieldIdentifiedBy},
		{Key: FieldVerbatimLabel},
	}
}
