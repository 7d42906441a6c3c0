// Package store persists assessments and submissions. Assessments are
// individually addressable by assessment_id and grouped by system_id,
// with a materialized "latest" projection per system mirroring the
// highest version. Backends: SQLite (embedded) and Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/agentindex/ami-cli/internal/model"
)

// ErrStaleSubmission is returned when a review update loses the
// compare-and-swap on updated_at, meaning another transition landed
// first.
var ErrStaleSubmission = eris.New("store: submission was modified concurrently")

// SubmissionFilter specifies criteria for listing submissions.
type SubmissionFilter struct {
	SystemID     string                 `json:"system_id,omitempty"`
	Status       model.SubmissionStatus `json:"status,omitempty"`
	AssessmentID string                 `json:"assessment_id,omitempty"`
}

// Store defines the persistence interface for the maturity index.
// Get methods return (nil, nil) when the record does not exist.
type Store interface {
	// Assessments
	UpsertAssessment(ctx context.Context, a *model.Assessment) error
	GetAssessment(ctx context.Context, assessmentID string) (*model.Assessment, error)
	ListAssessments(ctx context.Context, systemID string) ([]model.Assessment, error)
	GetLatestAssessment(ctx context.Context, systemID string) (*model.Assessment, error)
	ListSystemIDs(ctx context.Context) ([]string, error)

	// Submissions
	CreateSubmission(ctx context.Context, s *model.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error)
	// UpdateSubmissionReview persists a review transition. prevUpdatedAt
	// must match the stored updated_at or ErrStaleSubmission is returned.
	UpdateSubmissionReview(ctx context.Context, s *model.Submission, prevUpdatedAt string) error
	LinkResultingAssessment(ctx context.Context, submissionID, assessmentID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
