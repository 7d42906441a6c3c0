// Package model defines the record types and closed enumerations of the
// Agent Maturity Index: assessments, dimension scores, evidence items,
// eligibility flags, source catalog entries, compliance profiles, and
// submissions. Pure structure; behavior lives in the sibling packages.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MethodologyVersion is the AMI methodology this module implements.
const MethodologyVersion = "1.0"

// DimensionID identifies one of the six fixed maturity axes.
type DimensionID string

const (
	DimExecutionReliability DimensionID = "execution_reliability"
	DimToolingIntegration   DimensionID = "tooling_integration"
	DimSafetyGuardrails     DimensionID = "safety_guardrails"
	DimObservability        DimensionID = "observability"
	DimDeploymentMaturity   DimensionID = "deployment_maturity"
	DimRealWorldValidation  DimensionID = "real_world_validation"
)

// DimensionIDs lists all six dimension ids in canonical order.
var DimensionIDs = []DimensionID{
	DimExecutionReliability,
	DimToolingIntegration,
	DimSafetyGuardrails,
	DimObservability,
	DimDeploymentMaturity,
	DimRealWorldValidation,
}

// DimensionDisplayNames maps dimension ids to their canonical display names.
// A DimensionScore's dimension_name must match exactly.
var DimensionDisplayNames = map[DimensionID]string{
	DimExecutionReliability: "Execution Reliability",
	DimToolingIntegration:   "Tooling & Integration Breadth",
	DimSafetyGuardrails:     "Safety & Guardrails",
	DimObservability:        "Observability",
	DimDeploymentMaturity:   "Deployment Maturity",
	DimRealWorldValidation:  "Real-World Validation",
}

// DimensionWeights is the fixed canonical weight table. Weights sum to 1.0.
var DimensionWeights = map[DimensionID]float64{
	DimExecutionReliability: 0.20,
	DimSafetyGuardrails:     0.20,
	DimToolingIntegration:   0.15,
	DimObservability:        0.15,
	DimDeploymentMaturity:   0.15,
	DimRealWorldValidation:  0.15,
}

// Confidence is a per-dimension or per-evidence confidence level.
type Confidence string

const (
	ConfidenceVerified   Confidence = "verified"
	ConfidenceInferred   Confidence = "inferred"
	ConfidenceUnverified Confidence = "unverified"
)

// ConfidenceLevels lists valid per-dimension confidence values.
var ConfidenceLevels = []Confidence{ConfidenceVerified, ConfidenceInferred, ConfidenceUnverified}

// ConfidenceRank orders confidence levels for profile threshold checks.
// Higher rank means stricter.
var ConfidenceRank = map[Confidence]int{
	ConfidenceUnverified: 0,
	ConfidenceInferred:   1,
	ConfidenceVerified:   2,
}

// OverallConfidence is the assessment-level confidence.
type OverallConfidence string

const (
	OverallHigh   OverallConfidence = "high"
	OverallMedium OverallConfidence = "medium"
	OverallLow    OverallConfidence = "low"
)

// OverallConfidenceLevels lists valid assessment-level confidence values.
var OverallConfidenceLevels = []OverallConfidence{OverallHigh, OverallMedium, OverallLow}

// Status is the assessment lifecycle status.
type Status string

const (
	StatusScored               Status = "scored"
	StatusInsufficientEvidence Status = "insufficient_evidence"
	StatusInactive             Status = "inactive"
	StatusExcluded             Status = "excluded"
	StatusUnderReview          Status = "under_review"
)

// Statuses lists valid assessment statuses.
var Statuses = []Status{
	StatusScored,
	StatusInsufficientEvidence,
	StatusInactive,
	StatusExcluded,
	StatusUnderReview,
}

// Category classifies the assessed system.
type Category string

const (
	CategoryCloudAutonomous Category = "cloud_autonomous"
	CategoryCloudWorkflow   Category = "cloud_workflow"
	CategoryLocalAutonomous Category = "local_autonomous"
	CategoryEnterprise      Category = "enterprise"
	CategoryVerticalAgent   Category = "vertical_agent"
)

// Categories lists valid system categories.
var Categories = []Category{
	CategoryCloudAutonomous,
	CategoryCloudWorkflow,
	CategoryLocalAutonomous,
	CategoryEnterprise,
	CategoryVerticalAgent,
}

// EvidenceType classifies an evidence item.
type EvidenceType string

// EvidenceTypes lists the valid evidence_type values.
var EvidenceTypes = []EvidenceType{
	"official_docs",
	"source_code",
	"security_audit",
	"incident_report",
	"changelog",
	"independent_analysis",
	"case_study",
	"compliance",
	"community_metrics",
	"news_report",
}

// ReviewState is the editorial state of an assessment's review block.
type ReviewState string

const (
	ReviewDraft     ReviewState = "draft"
	ReviewReviewed  ReviewState = "reviewed"
	ReviewPublished ReviewState = "published"
)

// ReviewStates lists valid review states.
var ReviewStates = []ReviewState{ReviewDraft, ReviewReviewed, ReviewPublished}

// Grade is the letter grade derived from the overall score.
type Grade string

// Grades lists valid letter grades.
var Grades = []Grade{"A", "B", "C", "D", "F"}

// ScoreToGrade maps a 0-100 percent score to a letter grade.
// Returns nil when the score is nil.
func ScoreToGrade(score *int) *Grade {
	if score == nil {
		return nil
	}
	var g Grade
	switch {
	case *score >= 80:
		g = "A"
	case *score >= 60:
		g = "B"
	case *score >= 40:
		g = "C"
	case *score >= 20:
		g = "D"
	default:
		g = "F"
	}
	return &g
}

// Evidence is a single cited piece of evidence backing a dimension score.
type Evidence struct {
	ID string `json:"id"`

	// SourceIDs is canonical; LegacySourceID is accepted and normalized
	// by ResolveSourceIDs for records written before the migration.
	SourceIDs      []string `json:"source_ids,omitempty"`
	LegacySourceID string   `json:"source_id,omitempty"`

	URL                    string       `json:"url"`
	Title                  string       `json:"title"`
	Publisher              string       `json:"publisher"`
	PublishedDate          string       `json:"published_date"`
	Excerpt                string       `json:"excerpt"`
	ClaimSupported         string       `json:"claim_supported"`
	EvidenceType           EvidenceType `json:"evidence_type"`
	ConfidenceContribution Confidence   `json:"confidence_contribution"`
	RelevanceWeight        float64      `json:"relevance_weight"`
	CapturedAt             string       `json:"captured_at"`
	ArchivedURL            string       `json:"archived_url,omitempty"`
}

// ResolveSourceIDs returns the evidence item's source ids, falling back to
// the legacy singular source_id when the plural form is absent.
func (e *Evidence) ResolveSourceIDs() []string {
	if len(e.SourceIDs) > 0 {
		return e.SourceIDs
	}
	if strings.TrimSpace(e.LegacySourceID) != "" {
		return []string{e.LegacySourceID}
	}
	return nil
}

// DimensionScore is the score for a single maturity dimension.
type DimensionScore struct {
	DimensionID     DimensionID `json:"dimension_id"`
	DimensionName   string      `json:"dimension_name"`
	Score           *int        `json:"score"`
	Confidence      Confidence  `json:"confidence,omitempty"`
	Weight          float64     `json:"weight"`
	Rationale       string      `json:"rationale,omitempty"`
	Scored          bool        `json:"scored"`
	NotScoredReason string      `json:"not_scored_reason,omitempty"`
	RubricRefs      []string    `json:"rubric_refs,omitempty"`
	Evidence        []Evidence  `json:"evidence,omitempty"`
}

// IsScored reports whether the dimension carries a usable score.
func (d *DimensionScore) IsScored() bool {
	return d.Scored && d.Score != nil
}

// DistinctSourceIDs returns the set of distinct source ids cited across
// the dimension's evidence items.
func (d *DimensionScore) DistinctSourceIDs() map[string]struct{} {
	set := make(map[string]struct{})
	for i := range d.Evidence {
		for _, sid := range d.Evidence[i].ResolveSourceIDs() {
			set[sid] = struct{}{}
		}
	}
	return set
}

// ExclusionFlags marks reasons a system falls outside the index's scope.
type ExclusionFlags struct {
	BaseLLMOnly           bool `json:"base_llm_only"`
	PromptLibraryOnly     bool `json:"prompt_library_only"`
	ResearchPrototypeOnly bool `json:"research_prototype_only"`
	WrapperOnly           bool `json:"wrapper_only"`
}

// Any reports whether any exclusion flag is set.
func (f ExclusionFlags) Any() bool {
	return f.BaseLLMOnly || f.PromptLibraryOnly || f.ResearchPrototypeOnly || f.WrapperOnly
}

// EligibilityFlags records inclusion criteria. All four booleans must be
// true, all exclusion flags false, and VerifiedSourcesCount >= 3 for an
// assessment to carry status "scored".
type EligibilityFlags struct {
	AgentSystem            bool           `json:"agent_system"`
	PublicArtifact         bool           `json:"public_artifact"`
	ActiveDevelopment      bool           `json:"active_development"`
	MaintainerIdentifiable bool           `json:"maintainer_identifiable"`
	VerifiedSourcesCount   int            `json:"verified_sources_count"`
	ExclusionFlags         ExclusionFlags `json:"exclusion_flags"`
}

// Reviewer is one signed reviewer entry on a published assessment.
type Reviewer struct {
	Name          string `json:"name"`
	Handle        string `json:"handle"`
	SignedAt      string `json:"signed_at"`
	SignatureHash string `json:"signature_hash"`
}

// Review is the editorial review block of an assessment.
type Review struct {
	State     ReviewState `json:"state"`
	Reviewers []Reviewer  `json:"reviewers"`
}

// Integrity is the tamper-evidence block stamped onto an assessment.
type Integrity struct {
	AssessmentHash string `json:"assessment_hash"`
	HashAlgorithm  string `json:"hash_algorithm"`
	HashedAt       string `json:"hashed_at"`
}

// Assessment is one versioned evaluation of one system.
type Assessment struct {
	AssessmentID         string            `json:"assessment_id"`
	SystemID             string            `json:"system_id"`
	Version              int               `json:"version"`
	AssessedAt           string            `json:"assessed_at"`
	OverallScore         *int              `json:"overall_score"`
	Grade                *Grade            `json:"grade"`
	OverallConfidence    OverallConfidence `json:"overall_confidence,omitempty"`
	Status               Status            `json:"status"`
	Category             Category          `json:"category"`
	Eligibility          *EligibilityFlags `json:"eligibility"`
	Dimensions           []DimensionScore  `json:"dimensions"`
	MethodologyVersion   string            `json:"methodology_version"`
	AssessedBy           string            `json:"assessed_by"`
	Notes                string            `json:"notes,omitempty"`
	Review               *Review           `json:"review,omitempty"`
	Integrity            *Integrity        `json:"integrity,omitempty"`
	PreviousAssessmentID string            `json:"previous_assessment_id,omitempty"`
}

// Dimension returns the dimension score with the given id, or nil.
func (a *Assessment) Dimension(id DimensionID) *DimensionScore {
	for i := range a.Dimensions {
		if a.Dimensions[i].DimensionID == id {
			return &a.Dimensions[i]
		}
	}
	return nil
}

// DistinctSourceIDs returns all distinct source ids cited across every
// dimension's evidence.
func (a *Assessment) DistinctSourceIDs() map[string]struct{} {
	set := make(map[string]struct{})
	for i := range a.Dimensions {
		for sid := range a.Dimensions[i].DistinctSourceIDs() {
			set[sid] = struct{}{}
		}
	}
	return set
}

// AssessmentID builds the canonical assessment id for a system version on
// a given date: AMI_ASSESS_<YYYYMMDD>_<system_id>_v<version>.
func AssessmentID(date time.Time, systemID string, version int) string {
	return fmt.Sprintf("AMI_ASSESS_%s_%s_v%d", date.UTC().Format("20060102"), systemID, version)
}

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d+)?Z?)?$`)

// IsISODate reports whether s is an ISO-8601 date or timestamp.
func IsISODate(s string) bool {
	return isoDateRe.MatchString(s)
}

// CountWords counts whitespace-separated words, for the excerpt cap.
func CountWords(s string) int {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0
	}
	return len(strings.Fields(trimmed))
}
