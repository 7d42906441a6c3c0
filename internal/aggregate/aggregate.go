// Package aggregate implements the deterministic scoring math of the
// maturity index: weighted aggregation with dimension renormalization,
// overall confidence derivation, and freshness/anti-gaming signals.
// Everything here is a pure function of its inputs.
package aggregate

import (
	"math"

	"github.com/agentindex/ami-cli/internal/model"
)

// Aggregation is the result of folding six dimension scores into one
// overall score. ScorePercent and Grade are nil when nothing is scored.
type Aggregation struct {
	ScoredCount         int                             `json:"scored_count"`
	NotScoredCount      int                             `json:"not_scored_count"`
	RenormalizedWeights map[model.DimensionID]float64   `json:"renormalized_weights"`
	RawWeightedSum      float64                         `json:"raw_weighted_sum"`
	MaxPossibleWeighted float64                         `json:"max_possible_weighted"`
	ScorePercent        *int                            `json:"score_percent"`
	Grade               *model.Grade                    `json:"grade"`
}

// Compute aggregates dimension scores into an overall 0-100 score.
//
// Weights of unscored dimensions are redistributed proportionally among
// the scored ones so effective weights still sum to 1, then
// raw = sum(score_i * renorm_weight_i) and percent = round(raw / 5 * 100).
// Order-independent: the result depends only on the multiset of
// (score, weight) pairs for scored dimensions.
func Compute(dimensions []model.DimensionScore) Aggregation {
	var scored []*model.DimensionScore
	for i := range dimensions {
		if dimensions[i].IsScored() {
			scored = append(scored, &dimensions[i])
		}
	}

	if len(scored) == 0 {
		return Aggregation{
			NotScoredCount:      len(dimensions),
			RenormalizedWeights: map[model.DimensionID]float64{},
		}
	}

	var totalWeight float64
	for _, d := range scored {
		totalWeight += model.DimensionWeights[d.DimensionID]
	}

	renormalized := make(map[model.DimensionID]float64, len(scored))
	for _, d := range scored {
		renormalized[d.DimensionID] = model.DimensionWeights[d.DimensionID] / totalWeight
	}

	var raw float64
	for _, d := range scored {
		raw += float64(*d.Score) * renormalized[d.DimensionID]
	}

	// Max score per dimension is 5.
	percent := int(math.Round(raw / 5 * 100))

	return Aggregation{
		ScoredCount:         len(scored),
		NotScoredCount:      len(dimensions) - len(scored),
		RenormalizedWeights: renormalized,
		RawWeightedSum:      raw,
		MaxPossibleWeighted: 5,
		ScorePercent:        &percent,
		Grade:               model.ScoreToGrade(&percent),
	}
}

// OverallConfidence derives the assessment-level confidence from the
// scored dimensions: none scored is low, all verified is high, any
// unverified is low, otherwise medium.
func OverallConfidence(dimensions []model.DimensionScore) model.OverallConfidence {
	var scored []*model.DimensionScore
	for i := range dimensions {
		if dimensions[i].IsScored() {
			scored = append(scored, &dimensions[i])
		}
	}
	if len(scored) == 0 {
		return model.OverallLow
	}

	allVerified := true
	for _, d := range scored {
		switch d.Confidence {
		case model.ConfidenceVerified:
		case model.ConfidenceUnverified:
			return model.OverallLow
		default:
			allVerified = false
		}
	}
	if allVerified {
		return model.OverallHigh
	}
	return model.OverallMedium
}
