package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agentindex/ami-cli/internal/aggregate"
	"github.com/agentindex/ami-cli/internal/gates"
	"github.com/agentindex/ami-cli/internal/integrity"
	"github.com/agentindex/ami-cli/internal/model"
	"github.com/agentindex/ami-cli/internal/store"
)

// DimensionUpdate is a sparse override applied to one dimension of the
// cloned assessment. Nil/empty fields leave the original value in place.
type DimensionUpdate struct {
	DimensionID model.DimensionID `json:"dimension_id"`
	Score       *int              `json:"score,omitempty"`
	Confidence  model.Confidence  `json:"confidence,omitempty"`
	Rationale   string            `json:"rationale,omitempty"`
	RubricRefs  []string          `json:"rubric_refs,omitempty"`
	Evidence    []model.Evidence  `json:"evidence,omitempty"`
}

// Versioner creates new assessment versions from accepted submissions.
// The clone is re-aggregated, re-hashed, and gate-validated before it is
// persisted; an invalid result is discarded and never linked.
type Versioner struct {
	store   store.Store
	catalog model.SourceCatalog
	rubrics model.Rubrics
	now     func() time.Time
}

// NewVersioner creates a Versioner. Catalog and rubrics may be nil, in
// which case the corresponding validation checks are skipped.
func NewVersioner(st store.Store, catalog model.SourceCatalog, rubrics model.Rubrics) *Versioner {
	return &Versioner{store: st, catalog: catalog, rubrics: rubrics, now: time.Now}
}

// CreateNewVersion clones the assessment a submission targets, applies
// the dimension updates, and persists the result as the next version of
// the system's assessment line. The new version starts in review state
// draft with no reviewers and its previous_assessment_id pointing at the
// original.
func (v *Versioner) CreateNewVersion(ctx context.Context, sub *model.Submission, updates []DimensionUpdate) (*model.Assessment, error) {
	if sub.Status != model.SubmissionAccepted {
		return nil, eris.Errorf("versioner: submission %s is %s, only accepted submissions create versions", sub.SubmissionID, sub.Status)
	}
	if sub.AssessmentID == "" {
		return nil, eris.Errorf("versioner: submission %s has no assessment_id", sub.SubmissionID)
	}

	original, err := v.store.GetAssessment(ctx, sub.AssessmentID)
	if err != nil {
		return nil, eris.Wrap(err, "versioner: load original assessment")
	}
	if original == nil {
		return nil, eris.Errorf("versioner: assessment %s not found", sub.AssessmentID)
	}

	next, err := cloneAssessment(original)
	if err != nil {
		return nil, err
	}

	existing, err := v.store.ListAssessments(ctx, original.SystemID)
	if err != nil {
		return nil, eris.Wrap(err, "versioner: list existing versions")
	}
	maxVersion := original.Version
	for i := range existing {
		if existing[i].Version > maxVersion {
			maxVersion = existing[i].Version
		}
	}

	now := v.now().UTC()
	next.Version = maxVersion + 1
	next.AssessmentID = model.AssessmentID(now, original.SystemID, next.Version)
	next.AssessedAt = now.Format(time.RFC3339)
	next.PreviousAssessmentID = original.AssessmentID
	next.Review = &model.Review{State: model.ReviewDraft, Reviewers: []model.Reviewer{}}
	next.Notes = appendNote(next.Notes, fmt.Sprintf("Created from %s submission %s", sub.Type, sub.SubmissionID))

	for i := range updates {
		if err := applyUpdate(next, &updates[i]); err != nil {
			return nil, err
		}
	}

	if next.Status == model.StatusScored {
		agg := aggregate.Compute(next.Dimensions)
		next.OverallScore = agg.ScorePercent
		next.Grade = agg.Grade
		next.OverallConfidence = aggregate.OverallConfidence(next.Dimensions)
	}

	integ, err := integrity.ComputeHash(next)
	if err != nil {
		return nil, eris.Wrap(err, "versioner: hash new version")
	}
	next.Integrity = integ

	result := gates.ValidateAssessment(next, gates.Options{SourceCatalog: v.catalog, Rubrics: v.rubrics})
	if !result.Valid {
		return nil, eris.Errorf("versioner: new version failed validation, discarding: %s", strings.Join(result.Errors, "; "))
	}

	if err := v.store.UpsertAssessment(ctx, next); err != nil {
		return nil, eris.Wrap(err, "versioner: persist new version")
	}
	if err := v.store.LinkResultingAssessment(ctx, sub.SubmissionID, next.AssessmentID); err != nil {
		return nil, eris.Wrap(err, "versioner: link resulting assessment")
	}

	zap.L().Info("versioner: new assessment version",
		zap.String("system_id", next.SystemID),
		zap.String("assessment_id", next.AssessmentID),
		zap.Int("version", next.Version),
		zap.String("submission_id", sub.SubmissionID),
	)
	return next, nil
}

// cloneAssessment deep-copies via a JSON round trip so evidence slices
// and pointers are not shared with the original.
func cloneAssessment(a *model.Assessment) (*model.Assessment, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, eris.Wrap(err, "versioner: marshal original")
	}
	var out model.Assessment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "versioner: clone original")
	}
	return &out, nil
}

func applyUpdate(a *model.Assessment, u *DimensionUpdate) error {
	dim := a.Dimension(u.DimensionID)
	if dim == nil {
		return eris.Errorf("versioner: unknown dimension %q in update", u.DimensionID)
	}
	if u.Score != nil {
		dim.Score = u.Score
		dim.Scored = true
		dim.NotScoredReason = ""
	}
	if u.Confidence != "" {
		dim.Confidence = u.Confidence
	}
	if u.Rationale != "" {
		dim.Rationale = u.Rationale
	}
	if len(u.RubricRefs) > 0 {
		dim.RubricRefs = u.RubricRefs
	}
	if len(u.Evidence) > 0 {
		dim.Evidence = u.Evidence
	}
	return nil
}

func appendNote(existing, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + " | " + note
}
