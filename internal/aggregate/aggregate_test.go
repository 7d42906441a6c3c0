package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentindex/ami-cli/internal/model"
)

func intPtr(v int) *int { return &v }

func scoredDim(id model.DimensionID, score int, conf model.Confidence) model.DimensionScore {
	return model.DimensionScore{
		DimensionID:   id,
		DimensionName: model.DimensionDisplayNames[id],
		Score:         intPtr(score),
		Confidence:    conf,
		Weight:        model.DimensionWeights[id],
		Scored:        true,
	}
}

func unscoredDim(id model.DimensionID) model.DimensionScore {
	return model.DimensionScore{
		DimensionID:     id,
		DimensionName:   model.DimensionDisplayNames[id],
		Weight:          model.DimensionWeights[id],
		Scored:          false,
		NotScoredReason: "insufficient evidence",
	}
}

func TestCompute_AllScored(t *testing.T) {
	dims := []model.DimensionScore{
		scoredDim(model.DimExecutionReliability, 4, model.ConfidenceVerified),
		scoredDim(model.DimToolingIntegration, 3, model.ConfidenceVerified),
		scoredDim(model.DimSafetyGuardrails, 5, model.ConfidenceVerified),
		scoredDim(model.DimObservability, 2, model.ConfidenceVerified),
		scoredDim(model.DimDeploymentMaturity, 4, model.ConfidenceVerified),
		scoredDim(model.DimRealWorldValidation, 3, model.ConfidenceVerified),
	}

	agg := Compute(dims)

	assert.Equal(t, 6, agg.ScoredCount)
	assert.Equal(t, 0, agg.NotScoredCount)
	assert.InDelta(t, 3.6, agg.RawWeightedSum, 0.0001)
	require.NotNil(t, agg.ScorePercent)
	assert.Equal(t, 72, *agg.ScorePercent)
	require.NotNil(t, agg.Grade)
	assert.Equal(t, model.Grade("B"), *agg.Grade)

	// All dimensions scored: weights pass through unchanged.
	for id, w := range model.DimensionWeights {
		assert.InDelta(t, w, agg.RenormalizedWeights[id], 0.0001)
	}
}

func TestCompute_Renormalization(t *testing.T) {
	// Two unscored dimensions: remaining weights are scaled so the
	// effective weights still sum to 1.
	dims := []model.DimensionScore{
		scoredDim(model.DimExecutionReliability, 4, model.ConfidenceVerified),
		scoredDim(model.DimToolingIntegration, 3, model.ConfidenceVerified),
		scoredDim(model.DimSafetyGuardrails, 5, model.ConfidenceVerified),
		scoredDim(model.DimObservability, 2, model.ConfidenceVerified),
		unscoredDim(model.DimDeploymentMaturity),
		unscoredDim(model.DimRealWorldValidation),
	}

	agg := Compute(dims)

	assert.Equal(t, 4, agg.ScoredCount)
	assert.Equal(t, 2, agg.NotScoredCount)

	var sum float64
	for _, w := range agg.RenormalizedWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 0.0001)

	// Scored weight total is 0.70; ER renormalizes to 0.20/0.70.
	assert.InDelta(t, 0.20/0.70, agg.RenormalizedWeights[model.DimExecutionReliability], 0.0001)

	// raw = (4*.20 + 3*.15 + 5*.20 + 2*.15) / 0.70
	raw := (4*0.20 + 3*0.15 + 5*0.20 + 2*0.15) / 0.70
	assert.InDelta(t, raw, agg.RawWeightedSum, 0.0001)
	require.NotNil(t, agg.ScorePercent)
	assert.Equal(t, 73, *agg.ScorePercent)
}

func TestCompute_NothingScored(t *testing.T) {
	dims := []model.DimensionScore{
		unscoredDim(model.DimExecutionReliability),
		unscoredDim(model.DimToolingIntegration),
	}

	agg := Compute(dims)

	assert.Equal(t, 0, agg.ScoredCount)
	assert.Equal(t, 2, agg.NotScoredCount)
	assert.Nil(t, agg.ScorePercent)
	assert.Nil(t, agg.Grade)
	assert.Empty(t, agg.RenormalizedWeights)
}

func TestCompute_ScoredFlagWithoutScoreIgnored(t *testing.T) {
	dim := scoredDim(model.DimExecutionReliability, 4, model.ConfidenceVerified)
	dim.Score = nil // scored=true but no score: treated as unscored

	agg := Compute([]model.DimensionScore{dim})
	assert.Equal(t, 0, agg.ScoredCount)
	assert.Nil(t, agg.ScorePercent)
}

func TestCompute_OrderIndependent(t *testing.T) {
	forward := []model.DimensionScore{
		scoredDim(model.DimExecutionReliability, 5, model.ConfidenceVerified),
		scoredDim(model.DimSafetyGuardrails, 1, model.ConfidenceVerified),
		scoredDim(model.DimObservability, 3, model.ConfidenceVerified),
	}
	reversed := []model.DimensionScore{forward[2], forward[1], forward[0]}

	a := Compute(forward)
	b := Compute(reversed)

	require.NotNil(t, a.ScorePercent)
	require.NotNil(t, b.ScorePercent)
	assert.Equal(t, *a.ScorePercent, *b.ScorePercent)
	assert.InDelta(t, a.RawWeightedSum, b.RawWeightedSum, 0.0001)
}

func TestOverallConfidence(t *testing.T) {
	tests := []struct {
		name string
		dims []model.DimensionScore
		want model.OverallConfidence
	}{
		{
			name: "none scored",
			dims: []model.DimensionScore{unscoredDim(model.DimExecutionReliability)},
			want: model.OverallLow,
		},
		{
			name: "all verified",
			dims: []model.DimensionScore{
				scoredDim(model.DimExecutionReliability, 4, model.ConfidenceVerified),
				scoredDim(model.DimSafetyGuardrails, 3, model.ConfidenceVerified),
			},
			want: model.OverallHigh,
		},
		{
			name: "any unverified wins",
			dims: []model.DimensionScore{
				scoredDim(model.DimExecutionReliability, 4, model.ConfidenceVerified),
				scoredDim(model.DimSafetyGuardrails, 3, model.ConfidenceUnverified),
			},
			want: model.OverallLow,
		},
		{
			name: "mixed verified and inferred",
			dims: []model.DimensionScore{
				scoredDim(model.DimExecutionReliability, 4, model.ConfidenceVerified),
				scoredDim(model.DimSafetyGuardrails, 3, model.ConfidenceInferred),
			},
			want: model.OverallMedium,
		},
		{
			name: "unverified on unscored dimension ignored",
			dims: []model.DimensionScore{
				scoredDim(model.DimExecutionReliability, 4, model.ConfidenceVerified),
				unscoredDim(model.DimSafetyGuardrails),
			},
			want: model.OverallHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverallConfidence(tt.dims))
		})
	}
}
