// Package audit runs consistency rules over aggregated records and emits
// advisory quality flags. Flags annotate, never block: the auditor has no
// authority to remove or rewrite data.
package audit

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

// Rules configures the fixed rule set.
type Rules struct {
	// CoreFields must be present and non-empty in every aggregated record.
	CoreFields []string `yaml:"core_fields" mapstructure:"core_fields"`
	// DateFields are checked against the plausible year range.
	DateFields []string `yaml:"date_fields" mapstructure:"date_fields"`
	YearMin    int      `yaml:"year_min" mapstructure:"year_min"`
	YearMax    int      `yaml:"year_max" mapstructure:"year_max"`
	// CatalogPattern is the expected shape of catalogNumber values.
	CatalogPattern string `yaml:"catalog_pattern" mapstructure:"catalog_pattern"`
}

// DefaultRules returns the rule set used when none is configured.
func DefaultRules() Rules {
	return Rules{
		CoreFields:     []string{model.FieldScientificName, model.FieldCatalogNumber},
		DateFields:     []string{model.FieldEventDate},
		YearMin:        1850,
		YearMax:        2030,
		CatalogPattern: `^[A-Za-z]{0,4}[0-9]{3,8}$`,
	}
}

// CatalogIndex is the store read path the duplicate rule needs.
type CatalogIndex interface {
	QueryByCatalogNumber(ctx context.Context, value string) ([]model.Identity, error)
}

// Auditor evaluates one rule set.
type Auditor struct {
	rules     Rules
	catalogRe *regexp.Regexp
}

var yearRe = regexp.MustCompile(`\b(\d{4})\b`)

// New compiles the rule set. An invalid catalog pattern is a configuration
// problem and fails construction.
func New(rules Rules) (*Auditor, error) {
	a := &Auditor{rules: rules}
	if rules.CatalogPattern != "" {
		re, err := regexp.Compile(rules.CatalogPattern)
		if err != nil {
			return nil, eris.Wrapf(err, "audit: compile catalog pattern %q", rules.CatalogPattern)
		}
		a.catalogRe = re
	}
	return a, nil
}

// Evaluate derives the full flag set for one aggregated record. The result
// replaces any previously stored flags for the specimen, so resolved
// problems disappear on the next recompute.
func (a *Auditor) Evaluate(ctx context.Context, idx CatalogIndex, rec *model.AggregatedRecord) ([]model.QualityFlag, error) {
	var flags []model.QualityFlag
	add := func(kind model.FlagKind, severity model.FlagSeverity, detail string) {
		flags = append(flags, model.QualityFlag{
			Specimen: rec.Specimen,
			Kind:     kind,
			Severity: severity,
			Detail:   detail,
		})
	}

	// Unresolved field conflicts recorded by aggregation.
	for _, field := range sortedKeys(rec.Conflicts) {
		n := len(rec.Conflicts[field]) + 1
		add(model.FlagFieldConflict, model.SeverityMedium,
			fmt.Sprintf("%s: %d attempts disagree, provisional value %q", field, n, rec.Fields[field].Value))
	}

	for _, field := range a.rules.CoreFields {
		if rec.Fields[field].Value == "" {
			add(model.FlagMissingCoreField, model.SeverityMedium, field)
		}
	}

	for _, field := range a.rules.DateFields {
		value := rec.Fields[field].Value
		if value == "" {
			continue
		}
		year, ok := extractYear(value)
		if !ok {
			add(model.FlagImplausibleDate, model.SeverityLow,
				fmt.Sprintf("%s: no parseable year in %q", field, value))
			continue
		}
		if year < a.rules.YearMin || year > a.rules.YearMax {
			add(model.FlagImplausibleDate, model.SeverityMedium,
				fmt.Sprintf("%s: year %d outside plausible range %d-%d", field, year, a.rules.YearMin, a.rules.YearMax))
		}
	}

	if catalog := rec.CatalogNumber(); catalog != "" {
		if a.catalogRe != nil && !a.catalogRe.MatchString(catalog) {
			add(model.FlagMalformedCatalog, model.SeverityLow,
				fmt.Sprintf("catalogNumber %q does not match pattern %s", catalog, a.rules.CatalogPattern))
		}

		holders, err := idx.QueryByCatalogNumber(ctx, catalog)
		if err != nil {
			return nil, eris.Wrap(err, "audit: duplicate catalog lookup")
		}
		others := 0
		for _, h := range holders {
			if h != rec.Specimen {
				others++
			}
		}
		if others > 0 {
			add(model.FlagDuplicateCatalog, model.SeverityHigh,
				fmt.Sprintf("catalogNumber %q shared by %d other specimen(s)", catalog, others))
		}
	}

	sort.Slice(flags, func(i, j int) bool {
		if flags[i].Kind != flags[j].Kind {
			return flags[i].Kind < flags[j].Kind
		}
		return flags[i].Detail < flags[j].Detail
	})
	return flags, nil
}

func extractYear(value string) (int, bool) {
	m := yearRe.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
