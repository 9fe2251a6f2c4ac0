// Package aggregate fuses a specimen's extraction attempts into one
// best-candidate record. Aggregation is a pure recompute over the full
// attempt set: no incremental state survives between runs, so the result is
// reproducible and safe to rerun after partial failures.
package aggregate

import (
	"sort"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
)

// Options configures candidate selection.
type Options struct {
	// Precedence lists providers in tie-break order, most trusted first.
	Precedence []string
	// Boost combines confidences of agreeing attempts. Defaults to NoisyOR.
	Boost BoostPolicy
}

// BoostPolicy combines the confidences of attempts that agree on a value
// into a single aggregate confidence.
type BoostPolicy func(confidences []float64) float64

// NoisyOR treats agreeing attempts as independent evidence:
// 1 − Π(1 − cᵢ), capped at 1.
func NoisyOR(confidences []float64) float64 {
	miss := 1.0
	for _, c := range confidences {
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		miss *= 1 - c
	}
	agg := 1 - miss
	if agg > 1 {
		agg = 1
	}
	return agg
}

type candidate struct {
	model.Candidate
	norm           string
	precedenceRank int
}

// Compute derives the aggregated record for a specimen from its full
// attempt set. Failed, still-pending, and superseded attempts contribute
// nothing, even when their payload carries partial field values: only the
// canonical completion of each dedup key counts.
func Compute(specimen model.Identity, attempts []model.Attempt, opts Options) *model.AggregatedRecord {
	boost := opts.Boost
	if boost == nil {
		boost = NoisyOR
	}
	rank := precedenceRanks(opts.Precedence)

	byField := make(map[string][]candidate)
	for i := range attempts {
		att := &attempts[i]
		if att.Status != model.AttemptComplete || !att.Canonical {
			continue
		}
		for key, fv := range att.Fields {
			if fv.Value == "" {
				continue
			}
			byField[key] = append(byField[key], candidate{
				Candidate: model.Candidate{
					Value:      fv.Value,
					Confidence: fv.Confidence,
					AttemptID:  att.ID,
					Provider:   att.Provider,
					CreatedAt:  att.CreatedAt,
				},
				norm:           NormalizeValue(fv.Value),
				precedenceRank: rank[att.Provider],
			})
		}
	}

	rec := &model.AggregatedRecord{
		Specimen: specimen,
		Fields:   make(map[string]model.SelectedValue),
	}

	var confSum float64
	for key, cands := range byField {
		sortCandidates(cands)
		winner := cands[0]

		var agreeing []float64
		var losers []model.Candidate
		for _, c := range cands {
			if c.norm == winner.norm {
				agreeing = append(agreeing, c.Confidence)
			} else {
				losers = append(losers, c.Candidate)
			}
		}

		selected := model.SelectedValue{
			// The stored value is the winner's verbatim reading;
			// normalization is used for comparison only.
			Value:      winner.Value,
			Confidence: boost(agreeing),
			AttemptID:  winner.AttemptID,
			Provider:   winner.Provider,
		}
		if len(losers) > 0 {
			if rec.Conflicts == nil {
				rec.Conflicts = make(map[string][]model.Candidate)
			}
			rec.Conflicts[key] = losers
		}
		rec.Fields[key] = selected
		confSum += selected.Confidence
	}

	if len(rec.Fields) > 0 {
		rec.Confidence = confSum / float64(len(rec.Fields))
	}
	return rec
}

// sortCandidates orders candidates best-first: confidence, then provider
// precedence, then newest timestamp, then attempt id for a total order.
func sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.precedenceRank != b.precedenceRank {
			return a.precedenceRank < b.precedenceRank
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.AttemptID < b.AttemptID
	})
}

func precedenceRanks(precedence []string) map[string]int {
	ranks := make(map[string]int, len(precedence)+1)
	for i, p := range precedence {
		ranks[p] = i - len(precedence) // negative: configured providers sort first
	}
	return ranks
}
