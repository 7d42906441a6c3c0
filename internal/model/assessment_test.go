package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestDimensionWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, id := range DimensionIDs {
		w, ok := DimensionWeights[id]
		require.True(t, ok, "missing weight for %s", id)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 0.0001)
}

func TestScoreToGrade(t *testing.T) {
	tests := []struct {
		score int
		want  Grade
	}{
		{100, "A"}, {80, "A"},
		{79, "B"}, {60, "B"},
		{59, "C"}, {40, "C"},
		{39, "D"}, {20, "D"},
		{19, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		got := ScoreToGrade(intPtr(tt.score))
		require.NotNil(t, got, "score %d", tt.score)
		assert.Equal(t, tt.want, *got, "score %d", tt.score)
	}

	assert.Nil(t, ScoreToGrade(nil))
}

func TestEvidence_ResolveSourceIDs(t *testing.T) {
	ev := Evidence{SourceIDs: []string{"src_a", "src_b"}, LegacySourceID: "src_z"}
	assert.Equal(t, []string{"src_a", "src_b"}, ev.ResolveSourceIDs())

	ev = Evidence{LegacySourceID: "src_z"}
	assert.Equal(t, []string{"src_z"}, ev.ResolveSourceIDs())

	ev = Evidence{LegacySourceID: "  "}
	assert.Nil(t, ev.ResolveSourceIDs())
}

func TestDimensionScore_DistinctSourceIDs(t *testing.T) {
	dim := DimensionScore{Evidence: []Evidence{
		{SourceIDs: []string{"src_a", "src_b"}},
		{SourceIDs: []string{"src_b"}},
		{LegacySourceID: "src_c"},
	}}
	assert.Len(t, dim.DistinctSourceIDs(), 3)
}

func TestAssessment_Dimension(t *testing.T) {
	a := Assessment{Dimensions: []DimensionScore{
		{DimensionID: DimObservability},
	}}
	require.NotNil(t, a.Dimension(DimObservability))
	assert.Nil(t, a.Dimension(DimSafetyGuardrails))
}

func TestAssessmentID(t *testing.T) {
	date := time.Date(2026, 1, 15, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "AMI_ASSESS_20260115_test-agent_v2", AssessmentID(date, "test-agent", 2))
}

func TestNewSubmissionID(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	id := NewSubmissionID(date, "test-agent")
	assert.Regexp(t, `^SUB_20260115_test-agent_[0-9a-f]{8}$`, id)

	// Random suffix keeps ids distinct.
	assert.NotEqual(t, id, NewSubmissionID(date, "test-agent"))
}

func TestIsISODate(t *testing.T) {
	assert.True(t, IsISODate("2026-01-15"))
	assert.True(t, IsISODate("2026-01-15T10:30:00"))
	assert.True(t, IsISODate("2026-01-15T10:30:00Z"))
	assert.True(t, IsISODate("2026-01-15T10:30:00.123Z"))
	assert.False(t, IsISODate(""))
	assert.False(t, IsISODate("15/01/2026"))
	assert.False(t, IsISODate("2026-1-15"))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 0, CountWords("   "))
	assert.Equal(t, 3, CountWords("three short words"))
	assert.Equal(t, 3, CountWords("  spaced   out   words  "))
}

func TestExclusionFlags_Any(t *testing.T) {
	assert.False(t, ExclusionFlags{}.Any())
	assert.True(t, ExclusionFlags{WrapperOnly: true}.Any())
}
