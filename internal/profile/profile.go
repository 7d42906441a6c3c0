// Package profile applies named, configurable compliance rule sets to
// already-valid assessments. Evaluation is a pure read of its inputs:
// identical inputs always produce identical pass/reasons/computed, with
// reasons ordered by the fixed rule-check sequence.
package profile

import (
	"fmt"

	"github.com/agentindex/ami-cli/internal/aggregate"
	"github.com/agentindex/ami-cli/internal/model"
)

// Severity grades a profile reason. Only error-severity reasons fail the
// profile; warnings are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Reason codes. Kept stable; external tooling matches on them.
const (
	CodeStatusNotScored     = "PROFILE_STATUS_NOT_SCORED"
	CodeReviewStateFail     = "PROFILE_REVIEW_STATE_FAIL"
	CodeSignatureMissing    = "PROFILE_SIGNATURE_MISSING"
	CodeNotScoredExceeded   = "PROFILE_NOT_SCORED_EXCEEDED"
	CodeOverallScoreFail    = "PROFILE_OVERALL_SCORE_FAIL"
	CodeMinScoreFail        = "PROFILE_MIN_SCORE_FAIL"
	CodeConfidenceFail      = "PROFILE_CONFIDENCE_FAIL"
	CodeSourceDiversityFail = "PROFILE_SOURCE_DIVERSITY_FAIL"
	CodeSourceStalenessFail = "PROFILE_SOURCE_STALENESS_FAIL"
)

// Reason is one itemized rule failure.
type Reason struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Computed exposes the derived signals the evaluator worked from, so
// callers can display why a profile passed or failed.
type Computed struct {
	ScoredCount           int          `json:"scored_count"`
	NotScoredCount        int          `json:"not_scored_count"`
	DistinctSourcesTotal  int          `json:"distinct_sources_total"`
	MaxSourceAgeDays      *int         `json:"max_source_age_days"`
	OverallScore          *int         `json:"overall_score"`
	Status                model.Status `json:"status"`
	ReviewState           string       `json:"review_state,omitempty"`
	HasReviewerSignatures bool         `json:"has_reviewer_signatures"`
}

// Evaluation is the result of applying one profile to one assessment.
type Evaluation struct {
	Pass     bool     `json:"pass"`
	Reasons  []Reason `json:"reasons"`
	Computed Computed `json:"computed"`
}

// Evaluate applies a compliance profile to an assessment. Each configured
// rule is checked independently; failures are appended in rule order.
// Pass is true when no reason has error severity. The catalog may be nil;
// source-reliability rules then find no primary sources.
func Evaluate(a *model.Assessment, catalog model.SourceCatalog, p *model.ComplianceProfile) Evaluation {
	rules := p.Rules
	var reasons []Reason

	scoredCount := 0
	for i := range a.Dimensions {
		if a.Dimensions[i].IsScored() {
			scoredCount++
		}
	}
	notScoredCount := len(a.Dimensions) - scoredCount

	allSourceIDs := a.DistinctSourceIDs()

	dimSourceIDs := make(map[model.DimensionID]map[string]struct{}, len(a.Dimensions))
	for i := range a.Dimensions {
		dimSourceIDs[a.Dimensions[i].DimensionID] = a.Dimensions[i].DistinctSourceIDs()
	}

	maxAgeDays := maxEvidenceAgeDays(a)

	reviewState := ""
	hasSignatures := false
	if a.Review != nil {
		reviewState = string(a.Review.State)
		hasSignatures = len(a.Review.Reviewers) > 0
	}

	computed := Computed{
		ScoredCount:           scoredCount,
		NotScoredCount:        notScoredCount,
		DistinctSourcesTotal:  len(allSourceIDs),
		MaxSourceAgeDays:      maxAgeDays,
		OverallScore:          a.OverallScore,
		Status:                a.Status,
		ReviewState:           reviewState,
		HasReviewerSignatures: hasSignatures,
	}

	// Rule checks, structural first, then dimensional, then sources.

	if rules.RequireScored && a.Status != model.StatusScored {
		reasons = append(reasons, Reason{
			Code:     CodeStatusNotScored,
			Message:  fmt.Sprintf("Assessment status is %q; profile requires \"scored\"", a.Status),
			Severity: SeverityError,
		})
	}

	if rules.RequirePublished && model.ReviewState(reviewState) != model.ReviewPublished {
		state := reviewState
		if state == "" {
			state = "none"
		}
		reasons = append(reasons, Reason{
			Code:     CodeReviewStateFail,
			Message:  fmt.Sprintf("Review state is %q; profile requires \"published\"", state),
			Severity: SeverityError,
		})
	}

	if rules.RequireReviewerSignature && !hasSignatures {
		reasons = append(reasons, Reason{
			Code:     CodeSignatureMissing,
			Message:  "Profile requires at least one reviewer signature",
			Severity: SeverityError,
		})
	}

	if rules.MaxNotScored != nil && notScoredCount > *rules.MaxNotScored {
		reasons = append(reasons, Reason{
			Code:     CodeNotScoredExceeded,
			Message:  fmt.Sprintf("%d dimensions not scored; profile allows max %d", notScoredCount, *rules.MaxNotScored),
			Severity: SeverityError,
		})
	}

	if rules.MinOverallScorePercent != nil {
		if a.OverallScore == nil || *a.OverallScore < *rules.MinOverallScorePercent {
			reasons = append(reasons, Reason{
				Code:     CodeOverallScoreFail,
				Message:  fmt.Sprintf("Overall score is %s; profile requires >= %d", formatNullableInt(a.OverallScore), *rules.MinOverallScorePercent),
				Severity: SeverityError,
			})
		}
	}

	if len(rules.MinScores) > 0 {
		// Canonical dimension order keeps reason ordering deterministic.
		for _, dimID := range model.DimensionIDs {
			minScore, ok := rules.MinScores[dimID]
			if !ok {
				continue
			}
			dim := a.Dimension(dimID)
			if dim == nil || !dim.IsScored() || *dim.Score < minScore {
				actual := "not scored"
				if dim != nil && dim.IsScored() {
					actual = fmt.Sprintf("%d", *dim.Score)
				}
				reasons = append(reasons, Reason{
					Code:     CodeMinScoreFail,
					Message:  fmt.Sprintf("%s score is %s; profile requires >= %d", displayName(dimID), actual, minScore),
					Severity: SeverityError,
				})
			}
		}
	}

	if len(rules.MinConfidence) > 0 {
		for _, dimID := range model.DimensionIDs {
			minConf, ok := rules.MinConfidence[dimID]
			if !ok {
				continue
			}
			dim := a.Dimension(dimID)
			if dim == nil || !dim.Scored {
				continue
			}
			actualRank, okActual := model.ConfidenceRank[dim.Confidence]
			requiredRank, okRequired := model.ConfidenceRank[minConf]
			if !okActual {
				actualRank = -1
			}
			if !okRequired {
				requiredRank = -1
			}
			if actualRank < requiredRank {
				reasons = append(reasons, Reason{
					Code:     CodeConfidenceFail,
					Message:  fmt.Sprintf("%s confidence is %q; profile requires at least %q", displayName(dimID), dim.Confidence, minConf),
					Severity: SeverityError,
				})
			}
		}
	}

	if rules.MinDistinctSourcesTotal != nil && len(allSourceIDs) < *rules.MinDistinctSourcesTotal {
		reasons = append(reasons, Reason{
			Code:     CodeSourceDiversityFail,
			Message:  fmt.Sprintf("%d distinct sources found; profile requires >= %d", len(allSourceIDs), *rules.MinDistinctSourcesTotal),
			Severity: SeverityError,
		})
	}

	if rules.MinDistinctSourcesPerDimensionGE4 != nil {
		for i := range a.Dimensions {
			dim := &a.Dimensions[i]
			if !dim.IsScored() || *dim.Score < 4 {
				continue
			}
			sids := dimSourceIDs[dim.DimensionID]
			if len(sids) < *rules.MinDistinctSourcesPerDimensionGE4 {
				reasons = append(reasons, Reason{
					Code: CodeSourceDiversityFail,
					Message: fmt.Sprintf("%s (score %d) has %d source(s); profile requires >= %d for dimensions scoring >= 4",
						displayName(dim.DimensionID), *dim.Score, len(sids), *rules.MinDistinctSourcesPerDimensionGE4),
					Severity: SeverityError,
				})
			}
		}
	}

	if rules.RequirePrimaryForScore5 {
		for i := range a.Dimensions {
			dim := &a.Dimensions[i]
			if !dim.IsScored() || *dim.Score != 5 {
				continue
			}
			hasPrimary := false
			for sid := range dimSourceIDs[dim.DimensionID] {
				if src, ok := catalog[sid]; ok && src.Reliability == model.ReliabilityPrimary {
					hasPrimary = true
					break
				}
			}
			if !hasPrimary {
				reasons = append(reasons, Reason{
					Code:     CodeSourceDiversityFail,
					Message:  fmt.Sprintf("%s (score 5) has no primary source; profile requires primary source for score 5", displayName(dim.DimensionID)),
					Severity: SeverityError,
				})
			}
		}
	}

	if rules.MaxSourceAgeDays != nil && maxAgeDays != nil && *maxAgeDays > *rules.MaxSourceAgeDays {
		reasons = append(reasons, Reason{
			Code:     CodeSourceStalenessFail,
			Message:  fmt.Sprintf("Oldest source is %d days old; profile allows max %d days", *maxAgeDays, *rules.MaxSourceAgeDays),
			Severity: SeverityWarning,
		})
	}

	pass := true
	for _, r := range reasons {
		if r.Severity == SeverityError {
			pass = false
			break
		}
	}

	return Evaluation{Pass: pass, Reasons: reasons, Computed: computed}
}

// maxEvidenceAgeDays returns the age in days of the oldest evidence item
// relative to assessed_at, or nil when no evidence date parses.
func maxEvidenceAgeDays(a *model.Assessment) *int {
	assessedAt, ok := aggregate.ParseISOTime(a.AssessedAt)
	if !ok {
		return nil
	}
	var max *int
	for i := range a.Dimensions {
		for j := range a.Dimensions[i].Evidence {
			ev := &a.Dimensions[i].Evidence[j]
			ref, refOK := aggregate.ParseISOTime(ev.CapturedAt)
			if !refOK {
				ref, refOK = aggregate.ParseISOTime(ev.PublishedDate)
			}
			if !refOK {
				continue
			}
			age := int(assessedAt.Sub(ref).Hours() / 24)
			if max == nil || age > *max {
				max = &age
			}
		}
	}
	return max
}

func displayName(id model.DimensionID) string {
	if name, ok := model.DimensionDisplayNames[id]; ok {
		return name
	}
	return string(id)
}

func formatNullableInt(v *int) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *v)
}
