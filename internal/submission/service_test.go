package submission

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentindex/ami-cli/internal/model"
	"github.com/agentindex/ami-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testPayload(systemID string) CreatePayload {
	return CreatePayload{
		Type:         model.SubmissionCorrection,
		SystemID:     systemID,
		AssessmentID: "AMI_ASSESS_20260115_" + systemID + "_v1",
		Claims: []model.Claim{
			{Summary: "Observability evidence is stale", DimensionID: model.DimObservability},
		},
		Evidence: []model.SubmissionEvidence{
			{URL: "https://example.com/changelog", Description: "v2.0 added tracing"},
		},
		Contact: &model.Contact{Name: "Sam Smith", Email: "sam@example.com"},
	}
}

func TestService_Create(t *testing.T) {
	svc := NewService(newTestStore(t))
	svc.now = func() time.Time { return time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	sub, err := svc.Create(ctx, testPayload("test-agent"))
	require.NoError(t, err)

	assert.Regexp(t, `^SUB_20260120_test-agent_[0-9a-f]{8}$`, sub.SubmissionID)
	assert.Equal(t, model.SubmissionReceived, sub.Status)
	assert.Equal(t, "2026-01-20T12:00:00Z", sub.SubmittedAt)
	assert.Equal(t, sub.SubmittedAt, sub.UpdatedAt)

	stored, err := svc.Get(ctx, sub.SubmissionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, sub.SubmissionID, stored.SubmissionID)
}

func TestService_Create_InvalidPayload(t *testing.T) {
	svc := NewService(newTestStore(t))

	payload := testPayload("test-agent")
	payload.Contact = nil

	_, err := svc.Create(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact is required")
}

func TestService_Review_NotFound(t *testing.T) {
	svc := NewService(newTestStore(t))

	result, err := svc.Review(context.Background(), "SUB_unknown", ReviewRequest{
		Status:         model.SubmissionUnderReview,
		ReviewerName:   "Dana",
		ReviewerHandle: "dana",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrSubmissionNotFound, result.Error)
}

func TestService_Review_InvalidStatus(t *testing.T) {
	svc := NewService(newTestStore(t))
	ctx := context.Background()
	sub, err := svc.Create(ctx, testPayload("test-agent"))
	require.NoError(t, err)

	result, err := svc.Review(ctx, sub.SubmissionID, ReviewRequest{
		Status:         "approved",
		ReviewerName:   "Dana",
		ReviewerHandle: "dana",
	})
	require.NoError(t, err)
	assert.Equal(t, ErrInvalidStatus, result.Error)
}

func TestService_Review_SkippingUnderReviewRefused(t *testing.T) {
	svc := NewService(newTestStore(t))
	ctx := context.Background()
	sub, err := svc.Create(ctx, testPayload("test-agent"))
	require.NoError(t, err)

	result, err := svc.Review(ctx, sub.SubmissionID, ReviewRequest{
		Status:         model.SubmissionAccepted,
		ReviewerName:   "Dana",
		ReviewerHandle: "dana",
	})
	require.NoError(t, err)
	assert.Equal(t, ErrInvalidTransition, result.Error)
	assert.Contains(t, result.Message, "Cannot transition from 'received' to 'accepted'")

	// The submission is untouched.
	stored, err := svc.Get(ctx, sub.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionReceived, stored.Status)
}

func TestService_Review_SignatureRequired(t *testing.T) {
	svc := NewService(newTestStore(t))
	ctx := context.Background()
	sub, err := svc.Create(ctx, testPayload("test-agent"))
	require.NoError(t, err)

	result, err := svc.Review(ctx, sub.SubmissionID, ReviewRequest{
		Status:       model.SubmissionUnderReview,
		ReviewerName: "Dana", // handle missing
	})
	require.NoError(t, err)
	assert.Equal(t, ErrReviewerSignatureRequired, result.Error)
}

func TestService_Review_FullLifecycle(t *testing.T) {
	svc := NewService(newTestStore(t))
	ctx := context.Background()

	svc.now = func() time.Time { return time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC) }
	sub, err := svc.Create(ctx, testPayload("test-agent"))
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 1, 21, 9, 0, 0, 0, time.UTC) }

	result, err := svc.Review(ctx, sub.SubmissionID, ReviewRequest{
		Status:         model.SubmissionUnderReview,
		ReviewerName:   "Dana Reviewer",
		ReviewerHandle: "dana",
		Reasoning:      "triaged",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, model.SubmissionUnderReview, result.Submission.Status)

	result, err = svc.Review(ctx, sub.SubmissionID, ReviewRequest{
		Status:         model.SubmissionAccepted,
		ReviewerName:   "Dana Reviewer",
		ReviewerHandle: "dana",
		Reasoning:      "evidence checks out",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	accepted := result.Submission
	assert.Equal(t, model.SubmissionAccepted, accepted.Status)
	require.NotNil(t, accepted.Review)
	assert.Equal(t, "dana", accepted.Review.ReviewerHandle)
	assert.Len(t, accepted.Review.SignatureHash, 64)
	assert.NotEqual(t, sub.UpdatedAt, accepted.UpdatedAt)
}

func TestService_Review_TerminalStates(t *testing.T) {
	svc := NewService(newTestStore(t))
	ctx := context.Background()

	for _, terminal := range []model.SubmissionStatus{model.SubmissionAccepted, model.SubmissionRejected} {
		sub, err := svc.Create(ctx, testPayload("test-agent"))
		require.NoError(t, err)

		_, err = svc.Review(ctx, sub.SubmissionID, ReviewRequest{
			Status: model.SubmissionUnderReview, ReviewerName: "Dana", ReviewerHandle: "dana",
		})
		require.NoError(t, err)
		_, err = svc.Review(ctx, sub.SubmissionID, ReviewRequest{
			Status: terminal, ReviewerName: "Dana", ReviewerHandle: "dana",
		})
		require.NoError(t, err)

		// No transition leaves a terminal state.
		for _, next := range model.SubmissionStatuses {
			result, err := svc.Review(ctx, sub.SubmissionID, ReviewRequest{
				Status: next, ReviewerName: "Dana", ReviewerHandle: "dana",
			})
			require.NoError(t, err)
			assert.Equal(t, ErrInvalidTransition, result.Error, "%s -> %s", terminal, next)
		}
	}
}

func TestService_Review_DirectRejectFromReceived(t *testing.T) {
	svc := NewService(newTestStore(t))
	ctx := context.Background()
	sub, err := svc.Create(ctx, testPayload("test-agent"))
	require.NoError(t, err)

	result, err := svc.Review(ctx, sub.SubmissionID, ReviewRequest{
		Status: model.SubmissionRejected, ReviewerName: "Dana", ReviewerHandle: "dana",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, model.SubmissionRejected, result.Submission.Status)
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from, to model.SubmissionStatus
		want     bool
	}{
		{model.SubmissionReceived, model.SubmissionUnderReview, true},
		{model.SubmissionReceived, model.SubmissionRejected, true},
		{model.SubmissionReceived, model.SubmissionAccepted, false},
		{model.SubmissionReceived, model.SubmissionReceived, false},
		{model.SubmissionUnderReview, model.SubmissionAccepted, true},
		{model.SubmissionUnderReview, model.SubmissionRejected, true},
		{model.SubmissionUnderReview, model.SubmissionReceived, false},
		{model.SubmissionAccepted, model.SubmissionRejected, false},
		{model.SubmissionRejected, model.SubmissionUnderReview, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
