package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubmissionType classifies what a submitter is asking for.
type SubmissionType string

const (
	SubmissionAssessmentRequest   SubmissionType = "assessment_request"
	SubmissionCorrection          SubmissionType = "correction"
	SubmissionChallenge           SubmissionType = "challenge"
	SubmissionSelfAssessmentDraft SubmissionType = "self_assessment_draft"
)

// SubmissionTypes lists valid submission types.
var SubmissionTypes = []SubmissionType{
	SubmissionAssessmentRequest,
	SubmissionCorrection,
	SubmissionChallenge,
	SubmissionSelfAssessmentDraft,
}

// SubmissionStatus is the review lifecycle status of a submission.
type SubmissionStatus string

const (
	SubmissionReceived    SubmissionStatus = "received"
	SubmissionUnderReview SubmissionStatus = "under_review"
	SubmissionAccepted    SubmissionStatus = "accepted"
	SubmissionRejected    SubmissionStatus = "rejected"
)

// SubmissionStatuses lists valid submission statuses.
var SubmissionStatuses = []SubmissionStatus{
	SubmissionReceived,
	SubmissionUnderReview,
	SubmissionAccepted,
	SubmissionRejected,
}

// Claim is one assertion a submission makes about a system or assessment.
type Claim struct {
	Summary     string      `json:"summary"`
	DimensionID DimensionID `json:"dimension_id,omitempty"`
	Detail      string      `json:"detail,omitempty"`
}

// SubmissionEvidence is a lightweight evidence pointer attached to a
// submission; it is not the full Evidence record of an assessment.
type SubmissionEvidence struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Contact identifies the requester.
type Contact struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Organization string `json:"organization,omitempty"`
}

// SubmissionReview is the signed review decision applied to a submission.
type SubmissionReview struct {
	Status         SubmissionStatus `json:"status"`
	ReviewerName   string           `json:"reviewer_name"`
	ReviewerHandle string           `json:"reviewer_handle"`
	Reasoning      string           `json:"reasoning,omitempty"`
	ReviewedAt     string           `json:"reviewed_at"`
	SignatureHash  string           `json:"signature_hash"`
}

// Submission is a correction/challenge/request record moving through the
// review state machine. Terminal once accepted or rejected.
type Submission struct {
	SubmissionID          string               `json:"submission_id"`
	Type                  SubmissionType       `json:"type"`
	SystemID              string               `json:"system_id"`
	AssessmentID          string               `json:"assessment_id,omitempty"`
	Status                SubmissionStatus     `json:"status"`
	Claims                []Claim              `json:"claims"`
	Evidence              []SubmissionEvidence `json:"evidence"`
	Contact               *Contact             `json:"contact"`
	Notes                 string               `json:"notes,omitempty"`
	Review                *SubmissionReview    `json:"review"`
	ResultingAssessmentID string               `json:"resulting_assessment_id,omitempty"`
	SubmittedAt           string               `json:"submitted_at"`
	UpdatedAt             string               `json:"updated_at"`
}

// NewSubmissionID builds a submission id: SUB_<YYYYMMDD>_<system_id>_<rand>.
func NewSubmissionID(date time.Time, systemID string) string {
	rand := uuid.New().String()[:8]
	return fmt.Sprintf("SUB_%s_%s_%s", date.UTC().Format("20060102"), systemID, rand)
}
