// Package submission implements the review workflow for correction,
// challenge, and assessment-request submissions: a strict state machine
// over received/under_review/accepted/rejected, signed review decisions,
// and the creation of new assessment versions from accepted corrections.
package submission

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agentindex/ami-cli/internal/gates"
	"github.com/agentindex/ami-cli/internal/integrity"
	"github.com/agentindex/ami-cli/internal/model"
	"github.com/agentindex/ami-cli/internal/store"
)

// ErrorCode identifies why a review decision was refused. These are
// domain outcomes, not failures; callers map them to external statuses
// without inspecting messages.
type ErrorCode string

const (
	ErrSubmissionNotFound        ErrorCode = "submission_not_found"
	ErrInvalidStatus             ErrorCode = "invalid_status"
	ErrInvalidTransition         ErrorCode = "invalid_transition"
	ErrReviewerSignatureRequired ErrorCode = "reviewer_signature_required"
)

// validTransitions is the full state machine. Accepted and rejected are
// terminal: they appear as targets only.
var validTransitions = map[model.SubmissionStatus][]model.SubmissionStatus{
	model.SubmissionReceived:    {model.SubmissionUnderReview, model.SubmissionRejected},
	model.SubmissionUnderReview: {model.SubmissionAccepted, model.SubmissionRejected},
}

// IsValidTransition reports whether the state machine allows moving from
// current to next.
func IsValidTransition(current, next model.SubmissionStatus) bool {
	for _, allowed := range validTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReviewRequest is a reviewer's decision on a submission.
type ReviewRequest struct {
	Status         model.SubmissionStatus `json:"status"`
	ReviewerName   string                 `json:"reviewer_name"`
	ReviewerHandle string                 `json:"reviewer_handle"`
	Reasoning      string                 `json:"reasoning,omitempty"`
}

// ReviewResult is the typed outcome of a review decision.
type ReviewResult struct {
	Success    bool              `json:"success"`
	Submission *model.Submission `json:"submission,omitempty"`
	Error      ErrorCode         `json:"error,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// CreatePayload carries the fields a requester supplies for a new
// submission.
type CreatePayload struct {
	Type         model.SubmissionType       `json:"type"`
	SystemID     string                     `json:"system_id"`
	AssessmentID string                     `json:"assessment_id,omitempty"`
	Claims       []model.Claim              `json:"claims"`
	Evidence     []model.SubmissionEvidence `json:"evidence"`
	Contact      *model.Contact             `json:"contact"`
	Notes        string                     `json:"notes,omitempty"`
}

// Service runs the submission workflow over a Store. Review decisions
// are serialized by a per-service mutex plus the store's updated_at
// guard, satisfying the at-most-one-in-flight-transition contract.
type Service struct {
	store store.Store

	mu  sync.Mutex
	now func() time.Time
}

// NewService creates a submission Service.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Create validates and persists a new submission in the received state.
func (s *Service) Create(ctx context.Context, payload CreatePayload) (*model.Submission, error) {
	now := s.now().UTC()
	sub := &model.Submission{
		SubmissionID: model.NewSubmissionID(now, payload.SystemID),
		Type:         payload.Type,
		SystemID:     payload.SystemID,
		AssessmentID: payload.AssessmentID,
		Status:       model.SubmissionReceived,
		Claims:       payload.Claims,
		Evidence:     payload.Evidence,
		Contact:      payload.Contact,
		Notes:        payload.Notes,
		SubmittedAt:  now.Format(time.RFC3339),
		UpdatedAt:    now.Format(time.RFC3339),
	}

	if result := gates.ValidateSubmission(sub); !result.Valid {
		return nil, eris.Errorf("submission: invalid payload: %s", strings.Join(result.Errors, "; "))
	}

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, eris.Wrap(err, "submission: create")
	}

	zap.L().Info("submission: created",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("type", string(sub.Type)),
		zap.String("system_id", sub.SystemID),
	)
	return sub, nil
}

// Get loads one submission, or nil when unknown.
func (s *Service) Get(ctx context.Context, submissionID string) (*model.Submission, error) {
	return s.store.GetSubmission(ctx, submissionID)
}

// List returns submissions matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter store.SubmissionFilter) ([]model.Submission, error) {
	return s.store.ListSubmissions(ctx, filter)
}

// Review applies a review decision to a submission. Domain refusals come
// back as a typed ReviewResult; the error return is reserved for storage
// failures.
func (s *Service) Review(ctx context.Context, submissionID string, req ReviewRequest) (ReviewResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return ReviewResult{}, eris.Wrap(err, "submission: load for review")
	}
	if sub == nil {
		return ReviewResult{Error: ErrSubmissionNotFound}, nil
	}

	if !validSubmissionStatus(req.Status) {
		return ReviewResult{Error: ErrInvalidStatus}, nil
	}

	if !IsValidTransition(sub.Status, req.Status) {
		return ReviewResult{
			Error:   ErrInvalidTransition,
			Message: fmt.Sprintf("Cannot transition from '%s' to '%s'", sub.Status, req.Status),
		}, nil
	}

	if req.ReviewerName == "" || req.ReviewerHandle == "" {
		return ReviewResult{Error: ErrReviewerSignatureRequired}, nil
	}

	now := s.now().UTC().Format(time.RFC3339)
	prevUpdatedAt := sub.UpdatedAt

	sub.Status = req.Status
	sub.UpdatedAt = now
	sub.Review = &model.SubmissionReview{
		Status:         req.Status,
		ReviewerName:   req.ReviewerName,
		ReviewerHandle: req.ReviewerHandle,
		Reasoning:      req.Reasoning,
		ReviewedAt:     now,
		SignatureHash:  integrity.ComputeSubmissionSignature(req.ReviewerHandle, now, sub.SubmissionID),
	}

	if err := s.store.UpdateSubmissionReview(ctx, sub, prevUpdatedAt); err != nil {
		return ReviewResult{}, eris.Wrap(err, "submission: persist review")
	}

	zap.L().Info("submission: reviewed",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("status", string(sub.Status)),
		zap.String("reviewer", req.ReviewerHandle),
	)
	return ReviewResult{Success: true, Submission: sub}, nil
}

func validSubmissionStatus(status model.SubmissionStatus) bool {
	for _, v := range model.SubmissionStatuses {
		if status == v {
			return true
		}
	}
	return false
}
