package model

// SourceReliability classifies how trustworthy a catalog source is.
type SourceReliability string

const (
	ReliabilityPrimary      SourceReliability = "primary"
	ReliabilitySecondary    SourceReliability = "secondary"
	ReliabilitySelfReported SourceReliability = "self_reported"
)

// SourceReliabilities lists valid source reliability values.
var SourceReliabilities = []SourceReliability{
	ReliabilityPrimary,
	ReliabilitySecondary,
	ReliabilitySelfReported,
}

// SourceType classifies the artifact a catalog source points at. The
// commit/log/metric types count as hard evidence for the score-5 gate.
type SourceType string

// SourceTypes lists valid source types.
var SourceTypes = []SourceType{
	"url", "doc", "commit", "issue", "log", "metric",
	"screenshot", "video", "dataset", "other",
}

// HardEvidenceTypes are source types accepted as an alternative to primary
// reliability when a dimension scores 5. This asymmetry with the plain
// distinct-source-count rule for score >= 4 is a deliberate anti-gaming
// policy choice.
var HardEvidenceTypes = map[SourceType]struct{}{
	"commit": {},
	"log":    {},
	"metric": {},
}

// SourceTiers lists the catalog source tiers.
var SourceTiers = []string{"T1", "T2", "T3"}

// SourceEntry is one entry of the external source catalog.
type SourceEntry struct {
	SourceID    string            `json:"source_id"`
	URL         string            `json:"url"`
	Title       string            `json:"title,omitempty"`
	Publisher   string            `json:"publisher,omitempty"`
	Tier        string            `json:"tier,omitempty"`
	Access      string            `json:"access,omitempty"`
	Type        SourceType        `json:"type"`
	Reliability SourceReliability `json:"reliability"`
}

// SourceCatalog maps source_id to its catalog entry.
type SourceCatalog map[string]SourceEntry

// IsHardEvidence reports whether the entry satisfies the score-5 gate:
// primary reliability or a commit/log/metric artifact.
func (s SourceEntry) IsHardEvidence() bool {
	if s.Reliability == ReliabilityPrimary {
		return true
	}
	_, ok := HardEvidenceTypes[s.Type]
	return ok
}

// RubricBullet is one id-bearing bullet of a rubric level.
type RubricBullet struct {
	ID   string `json:"id"`
	Text string `json:"text,omitempty"`
}

// Rubrics maps dimension_id -> level -> bullets. Dimension scores cite
// bullet ids via rubric_refs.
type Rubrics map[DimensionID]map[string][]RubricBullet

// ValidRefs returns the set of valid rubric_ref ids for a dimension, or
// nil when the dimension has no rubric table.
func (r Rubrics) ValidRefs(id DimensionID) map[string]struct{} {
	levels, ok := r[id]
	if !ok {
		return nil
	}
	valid := make(map[string]struct{})
	for _, bullets := range levels {
		for _, b := range bullets {
			valid[b.ID] = struct{}{}
		}
	}
	return valid
}

// ProfileRules is the sparse set of named constraints a compliance profile
// may carry. Nil pointer / empty map means the rule is not configured.
type ProfileRules struct {
	RequireScored                    bool                       `json:"requireScored,omitempty"`
	RequirePublished                 bool                       `json:"requirePublished,omitempty"`
	RequireReviewerSignature         bool                       `json:"requireReviewerSignature,omitempty"`
	MaxNotScored                     *int                       `json:"maxNotScored,omitempty"`
	MinOverallScorePercent           *int                       `json:"minOverallScorePercent,omitempty"`
	MinScores                        map[DimensionID]int        `json:"minScores,omitempty"`
	MinConfidence                    map[DimensionID]Confidence `json:"minConfidence,omitempty"`
	MinDistinctSourcesTotal          *int                       `json:"minDistinctSourcesTotal,omitempty"`
	MinDistinctSourcesPerDimensionGE4 *int                      `json:"minDistinctSourcesPerDimensionGE4,omitempty"`
	RequirePrimaryForScore5          bool                       `json:"requirePrimaryForScore5,omitempty"`
	MaxSourceAgeDays                 *int                       `json:"maxSourceAgeDays,omitempty"`
}

// ComplianceProfile is a named, configurable bundle of pass/fail rules
// applied to already-valid assessments.
type ComplianceProfile struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Description string       `json:"description,omitempty"`
	AMIVersion  string       `json:"amiVersion,omitempty"`
	Default     bool         `json:"default,omitempty"`
	Rules       ProfileRules `json:"rules"`
}
