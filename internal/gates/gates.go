// Package gates implements the structural and evidentiary rule checker
// for assessments: the eight anti-gaming gates, eligibility cross-checks,
// aggregation consistency, rubric cross-references, and review-state
// checks. All violations are collected into a single error list rather
// than short-circuiting, so one call surfaces every problem; gate
// failures carry the literal "GATE VIOLATION" tag that downstream
// negative-test harnesses match on.
package gates

import (
	"fmt"
	"strings"

	"github.com/agentindex/ami-cli/internal/aggregate"
	"github.com/agentindex/ami-cli/internal/model"
)

// Options supplies the external lookup tables the validator may
// cross-reference. Both are optional; checks that need a missing table
// are skipped.
type Options struct {
	SourceCatalog model.SourceCatalog
	Rubrics       model.Rubrics
}

// Result is the outcome of a validation pass. Valid is true exactly when
// Errors is empty.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// maxNotScoredDimensions is the ceiling of unscored dimensions an
// assessment may carry while keeping status "scored".
const maxNotScoredDimensions = 2

// minDistinctSourcesTotal is the floor of distinct source ids a scored
// assessment must cite across all dimensions.
const minDistinctSourcesTotal = 3

func nonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ValidateAssessment checks a full assessment against the schema and the
// eight gates, re-deriving aggregate values to compare against stored
// ones. Returns every violation found.
func ValidateAssessment(a *model.Assessment, opts Options) Result {
	var errors []string

	if a == nil {
		return Result{Valid: false, Errors: []string{"assessment must not be nil"}}
	}

	// Top-level fields.
	if !nonEmpty(a.AssessmentID) {
		errors = append(errors, "missing assessment_id")
	}
	if !nonEmpty(a.SystemID) {
		errors = append(errors, "missing system_id")
	}
	if a.Version < 1 {
		errors = append(errors, "version must be a positive integer")
	}
	if !model.IsISODate(a.AssessedAt) {
		errors = append(errors, "invalid assessed_at")
	}
	if !nonEmpty(a.MethodologyVersion) {
		errors = append(errors, "missing methodology_version")
	}
	if !nonEmpty(a.AssessedBy) {
		errors = append(errors, "missing assessed_by")
	}

	if !validStatus(a.Status) {
		errors = append(errors, fmt.Sprintf("invalid status %q", a.Status))
		return Result{Valid: false, Errors: errors}
	}

	if !validCategory(a.Category) {
		errors = append(errors, fmt.Sprintf("invalid category %q", a.Category))
	}

	errors = append(errors, validateEligibility(a.Eligibility, a.Status)...)

	if len(a.Dimensions) != len(model.DimensionIDs) {
		errors = append(errors, fmt.Sprintf(
			"dimensions must be an array of exactly %d items (got %d)",
			len(model.DimensionIDs), len(a.Dimensions)))
		return Result{Valid: false, Errors: errors}
	}

	present := make(map[model.DimensionID]struct{}, len(a.Dimensions))
	for i := range a.Dimensions {
		present[a.Dimensions[i].DimensionID] = struct{}{}
	}
	for _, id := range model.DimensionIDs {
		if _, ok := present[id]; !ok {
			errors = append(errors, fmt.Sprintf("missing dimension: %s", id))
		}
	}

	for i := range a.Dimensions {
		errors = append(errors, validateDimension(&a.Dimensions[i])...)
	}

	if a.Status == model.StatusScored {
		errors = append(errors, validateScoredAggregation(a)...)
	} else if a.OverallScore != nil {
		errors = append(errors, fmt.Sprintf(
			"status is %q but overall_score is not null", a.Status))
	}

	errors = append(errors, validateScore5HardEvidence(a, opts.SourceCatalog)...)
	errors = append(errors, validateTotalSourceDiversity(a)...)
	errors = append(errors, validateRubricRefs(a, opts.Rubrics)...)
	errors = append(errors, validateReview(a.Review)...)

	// Integrity block shape; hash value verification is the hasher's job.
	if a.Integrity != nil && a.Integrity.HashAlgorithm != "sha256" {
		errors = append(errors, fmt.Sprintf(
			"unsupported integrity hash_algorithm %q", a.Integrity.HashAlgorithm))
	}

	return Result{Valid: len(errors) == 0, Errors: errors}
}

func validStatus(s model.Status) bool {
	for _, v := range model.Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func validCategory(c model.Category) bool {
	for _, v := range model.Categories {
		if c == v {
			return true
		}
	}
	return false
}

func validConfidence(c model.Confidence) bool {
	for _, v := range model.ConfidenceLevels {
		if c == v {
			return true
		}
	}
	return false
}

func validOverallConfidence(c model.OverallConfidence) bool {
	for _, v := range model.OverallConfidenceLevels {
		if c == v {
			return true
		}
	}
	return false
}

func validEvidenceType(t model.EvidenceType) bool {
	for _, v := range model.EvidenceTypes {
		if t == v {
			return true
		}
	}
	return false
}

// validateEligibility checks eligibility flags, strictly when the
// assessment claims "scored" status.
func validateEligibility(elig *model.EligibilityFlags, status model.Status) []string {
	if elig == nil {
		return []string{"missing eligibility object"}
	}

	var errors []string
	if status == model.StatusScored {
		if !elig.AgentSystem {
			errors = append(errors, "SCORED status requires agent_system=true")
		}
		if !elig.PublicArtifact {
			errors = append(errors, "SCORED status requires public_artifact=true")
		}
		if !elig.ActiveDevelopment {
			errors = append(errors, "SCORED status requires active_development=true")
		}
		if !elig.MaintainerIdentifiable {
			errors = append(errors, "SCORED status requires maintainer_identifiable=true")
		}
		if elig.VerifiedSourcesCount < minDistinctSourcesTotal {
			errors = append(errors, fmt.Sprintf(
				"SCORED status requires verified_sources_count >= %d (got %d)",
				minDistinctSourcesTotal, elig.VerifiedSourcesCount))
		}

		flags := elig.ExclusionFlags
		if flags.BaseLLMOnly {
			errors = append(errors, "SCORED but exclusion_flags.base_llm_only is true")
		}
		if flags.PromptLibraryOnly {
			errors = append(errors, "SCORED but exclusion_flags.prompt_library_only is true")
		}
		if flags.ResearchPrototypeOnly {
			errors = append(errors, "SCORED but exclusion_flags.research_prototype_only is true")
		}
		if flags.WrapperOnly {
			errors = append(errors, "SCORED but exclusion_flags.wrapper_only is true")
		}
	}
	return errors
}

// validateDimension applies the per-dimension checks: gates 1, 2, 3, 5,
// and 8 for scored dimensions, and the score/reason invariants for
// unscored ones.
func validateDimension(dim *model.DimensionScore) []string {
	var errors []string
	prefix := fmt.Sprintf("dimension %q", dim.DimensionID)

	if _, ok := model.DimensionWeights[dim.DimensionID]; !ok {
		// Unknown id; nothing further can be checked against the tables.
		return []string{prefix + ": invalid dimension_id"}
	}

	if dim.DimensionName != model.DimensionDisplayNames[dim.DimensionID] {
		errors = append(errors, fmt.Sprintf("%s: dimension_name should be %q",
			prefix, model.DimensionDisplayNames[dim.DimensionID]))
	}

	expectedWeight := model.DimensionWeights[dim.DimensionID]
	if diff := dim.Weight - expectedWeight; diff > 0.001 || diff < -0.001 {
		errors = append(errors, fmt.Sprintf("%s: weight should be %g, got %g",
			prefix, expectedWeight, dim.Weight))
	}

	if dim.Scored {
		if dim.Score == nil || *dim.Score < 0 || *dim.Score > 5 {
			errors = append(errors, fmt.Sprintf(
				"%s: scored=true but score is not integer 0-5 (got %s)",
				prefix, formatScore(dim.Score)))
		}

		// GATE 1: no dimension score without evidence.
		if len(dim.Evidence) == 0 {
			errors = append(errors, prefix+": GATE VIOLATION — scored dimension has no evidence items")
		}

		// GATE 2: every evidence item must resolve at least one source id.
		for i := range dim.Evidence {
			if len(dim.Evidence[i].ResolveSourceIDs()) == 0 {
				errors = append(errors, fmt.Sprintf(
					"%s: GATE VIOLATION — evidence[%d] has no source_ids", prefix, i))
			}
		}

		// GATE 5: score >= 4 requires >= 2 distinct source ids.
		if dim.Score != nil && *dim.Score >= 4 {
			distinct := len(dim.DistinctSourceIDs())
			if distinct < 2 {
				errors = append(errors, fmt.Sprintf(
					"%s: GATE VIOLATION — score %d requires >= 2 distinct sources (found %d)",
					prefix, *dim.Score, distinct))
			}
		}

		// GATE 3: valid confidence required on scored dimensions.
		if !validConfidence(dim.Confidence) {
			errors = append(errors, prefix+": GATE VIOLATION — scored dimension missing valid confidence")
		}

		if !nonEmpty(dim.Rationale) {
			errors = append(errors, prefix+": scored dimension missing rationale")
		}

		// GATE 8: scored dimensions must cite the rubric.
		if len(dim.RubricRefs) == 0 {
			errors = append(errors, prefix+": GATE VIOLATION — scored dimension missing rubric_refs")
		}

		for i := range dim.Evidence {
			errors = append(errors, validateEvidenceItem(&dim.Evidence[i], i)...)
		}
	} else {
		if dim.Score != nil {
			errors = append(errors, prefix+": scored=false but score is not null")
		}
		if !nonEmpty(dim.NotScoredReason) {
			errors = append(errors, prefix+": not_scored dimension missing not_scored_reason")
		}
	}

	return errors
}

func formatScore(s *int) string {
	if s == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *s)
}

// validateEvidenceItem checks one evidence item's fields: required
// strings, date formats, the 25-word excerpt cap, valid enums, and the
// relevance weight range.
func validateEvidenceItem(ev *model.Evidence, idx int) []string {
	var errors []string
	id := ev.ID
	if id == "" {
		id = "unknown"
	}
	prefix := fmt.Sprintf("evidence[%d] (%s)", idx, id)

	if !nonEmpty(ev.ID) {
		errors = append(errors, prefix+": missing or empty id")
	}
	sids := ev.ResolveSourceIDs()
	if len(sids) == 0 {
		errors = append(errors, prefix+": missing source_ids (or legacy source_id)")
	} else {
		for _, sid := range sids {
			if !nonEmpty(sid) {
				errors = append(errors, prefix+": source_ids contains empty value")
			}
		}
	}
	if !nonEmpty(ev.URL) {
		errors = append(errors, prefix+": missing url")
	}
	if !nonEmpty(ev.Title) {
		errors = append(errors, prefix+": missing title")
	}
	if !nonEmpty(ev.Publisher) {
		errors = append(errors, prefix+": missing publisher")
	}
	if !model.IsISODate(ev.PublishedDate) {
		errors = append(errors, prefix+": invalid published_date")
	}
	if !nonEmpty(ev.Excerpt) {
		errors = append(errors, prefix+": missing excerpt")
	} else if words := model.CountWords(ev.Excerpt); words > 25 {
		errors = append(errors, fmt.Sprintf("%s: excerpt exceeds 25 words (%d)", prefix, words))
	}
	if !nonEmpty(ev.ClaimSupported) {
		errors = append(errors, prefix+": missing claim_supported")
	}
	if !validEvidenceType(ev.EvidenceType) {
		errors = append(errors, fmt.Sprintf("%s: invalid evidence_type %q", prefix, ev.EvidenceType))
	}
	if !validConfidence(ev.ConfidenceContribution) {
		errors = append(errors, fmt.Sprintf("%s: invalid confidence_contribution %q", prefix, ev.ConfidenceContribution))
	}
	if ev.RelevanceWeight < 0 || ev.RelevanceWeight > 1 {
		errors = append(errors, prefix+": relevance_weight must be 0.0-1.0")
	}
	if !model.IsISODate(ev.CapturedAt) {
		errors = append(errors, prefix+": invalid captured_at")
	}

	return errors
}

// validateScoredAggregation re-derives aggregate values for a scored
// assessment and compares them to the stored ones (gates 3 overall and
// 4), plus the not-scored-count ceiling.
func validateScoredAggregation(a *model.Assessment) []string {
	var errors []string

	notScored := 0
	for i := range a.Dimensions {
		if !a.Dimensions[i].IsScored() {
			notScored++
		}
	}
	if notScored > maxNotScoredDimensions {
		errors = append(errors, fmt.Sprintf(
			"GATE VIOLATION — %d dimensions not scored; status cannot be \"scored\" (max %d allowed)",
			notScored, maxNotScoredDimensions))
	}

	computed := aggregate.Compute(a.Dimensions)

	// GATE 4: stored overall_score/grade must match the derivation.
	if a.OverallScore == nil {
		errors = append(errors, "status is \"scored\" but overall_score is null")
	} else if computed.ScorePercent != nil && *a.OverallScore != *computed.ScorePercent {
		errors = append(errors, fmt.Sprintf(
			"GATE VIOLATION — stored overall_score (%d) does not match computed (%d). Raw weighted sum: %.4f",
			*a.OverallScore, *computed.ScorePercent, computed.RawWeightedSum))
	}

	if a.Grade != nil && computed.Grade != nil && *a.Grade != *computed.Grade {
		errors = append(errors, fmt.Sprintf(
			"grade mismatch: stored %q vs computed %q", *a.Grade, *computed.Grade))
	}

	if derived := aggregate.OverallConfidence(a.Dimensions); a.OverallConfidence != derived {
		errors = append(errors, fmt.Sprintf(
			"overall_confidence mismatch: stored %q vs computed %q",
			a.OverallConfidence, derived))
	}

	// GATE 3 (overall): scored assessments need a valid overall confidence.
	if !validOverallConfidence(a.OverallConfidence) {
		errors = append(errors, "GATE VIOLATION — SCORED assessment missing valid overall_confidence")
	}

	return errors
}

// validateScore5HardEvidence applies GATE 6: a dimension scored exactly 5
// needs at least one source that is primary or hard evidence
// (commit/log/metric), resolved through the source catalog. Skipped when
// no catalog is supplied.
func validateScore5HardEvidence(a *model.Assessment, catalog model.SourceCatalog) []string {
	if catalog == nil || a.Status != model.StatusScored {
		return nil
	}

	var errors []string
	for i := range a.Dimensions {
		dim := &a.Dimensions[i]
		if !dim.IsScored() || *dim.Score != 5 {
			continue
		}
		found := false
		for sid := range dim.DistinctSourceIDs() {
			if src, ok := catalog[sid]; ok && src.IsHardEvidence() {
				found = true
				break
			}
		}
		if !found {
			errors = append(errors, fmt.Sprintf(
				"dimension %q: GATE VIOLATION — score 5 requires >= 1 primary or hard-evidence source",
				dim.DimensionID))
		}
	}
	return errors
}

// validateTotalSourceDiversity applies GATE 7: a scored assessment must
// cite at least three distinct source ids in total.
func validateTotalSourceDiversity(a *model.Assessment) []string {
	if a.Status != model.StatusScored {
		return nil
	}
	total := len(a.DistinctSourceIDs())
	if total < minDistinctSourcesTotal {
		return []string{fmt.Sprintf(
			"GATE VIOLATION — SCORED assessment requires >= %d distinct sources (found %d)",
			minDistinctSourcesTotal, total)}
	}
	return nil
}

// validateRubricRefs cross-references rubric_refs against the rubric
// table when one is supplied.
func validateRubricRefs(a *model.Assessment, rubrics model.Rubrics) []string {
	if rubrics == nil || a.Status != model.StatusScored {
		return nil
	}

	var errors []string
	for i := range a.Dimensions {
		dim := &a.Dimensions[i]
		if !dim.Scored {
			continue
		}
		valid := rubrics.ValidRefs(dim.DimensionID)
		if valid == nil {
			continue
		}
		for _, ref := range dim.RubricRefs {
			if _, ok := valid[ref]; !ok {
				errors = append(errors, fmt.Sprintf(
					"dimension %q: rubric_ref %q not found in meta rubric table",
					dim.DimensionID, ref))
			}
		}
	}
	return errors
}

// validateReview checks the review block; published assessments require
// at least one well-formed reviewer signature.
func validateReview(review *model.Review) []string {
	if review == nil {
		return nil
	}

	var errors []string
	valid := false
	for _, s := range model.ReviewStates {
		if review.State == s {
			valid = true
			break
		}
	}
	if !valid {
		errors = append(errors, fmt.Sprintf("invalid review.state %q", review.State))
	}

	if review.State == model.ReviewPublished {
		if len(review.Reviewers) == 0 {
			errors = append(errors, "published assessment requires >= 1 reviewer signature")
		}
		for i, r := range review.Reviewers {
			prefix := fmt.Sprintf("review.reviewers[%d]", i)
			if !nonEmpty(r.Name) {
				errors = append(errors, prefix+": missing name")
			}
			if !nonEmpty(r.Handle) {
				errors = append(errors, prefix+": missing handle")
			}
			if !model.IsISODate(r.SignedAt) {
				errors = append(errors, prefix+": invalid signed_at")
			}
			if !nonEmpty(r.SignatureHash) {
				errors = append(errors, prefix+": missing signature_hash")
			}
		}
	}

	return errors
}
