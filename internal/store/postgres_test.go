package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentindex/ami-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestPostgresStore_GetAssessment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data::text FROM assessments WHERE assessment_id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetAssessment(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAssessment_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	a := testAssessment("test-agent", 1)

	mock.ExpectQuery(`SELECT data::text FROM assessments WHERE assessment_id = \$1`).
		WithArgs(a.AssessmentID).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(mustJSON(t, a)))

	got, err := s.GetAssessment(context.Background(), a.AssessmentID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.SystemID, got.SystemID)
	assert.Equal(t, 72, *got.OverallScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertAssessment(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	a := testAssessment("test-agent", 2)

	mock.ExpectExec(`INSERT INTO assessments`).
		WithArgs(a.AssessmentID, a.SystemID, a.Version, string(a.Status), a.AssessedAt, mustJSON(t, a)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO latest_assessments`).
		WithArgs(a.SystemID, a.AssessmentID, a.Version, mustJSON(t, a)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertAssessment(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAssessments(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	v2 := testAssessment("test-agent", 2)
	v1 := testAssessment("test-agent", 1)

	mock.ExpectQuery(`SELECT data::text FROM assessments WHERE system_id = \$1 ORDER BY version DESC`).
		WithArgs("test-agent").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow(mustJSON(t, v2)).
			AddRow(mustJSON(t, v1)))

	list, err := s.ListAssessments(context.Background(), "test-agent")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Version)
	assert.Equal(t, 1, list[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLatestAssessment_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data::text FROM latest_assessments WHERE system_id = \$1`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetLatestAssessment(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSystemIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT DISTINCT system_id FROM assessments ORDER BY system_id`).
		WillReturnRows(pgxmock.NewRows([]string{"system_id"}).
			AddRow("alpha-agent").
			AddRow("beta-agent"))

	ids, err := s.ListSystemIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha-agent", "beta-agent"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateSubmission(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sub := testSubmission("SUB_20260120_test-agent_aaaa0001", "test-agent")

	mock.ExpectExec(`INSERT INTO submissions`).
		WithArgs(sub.SubmissionID, string(sub.Type), sub.SystemID, sub.AssessmentID,
			string(sub.Status), mustJSON(t, sub), nil, sub.SubmittedAt, sub.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateSubmission(context.Background(), sub))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSubmission_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data::text FROM submissions WHERE submission_id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetSubmission(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSubmissions_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sub := testSubmission("SUB_20260120_test-agent_aaaa0001", "test-agent")

	mock.ExpectQuery(`SELECT data::text FROM submissions WHERE system_id = \$1 AND status = \$2 ORDER BY submitted_at DESC`).
		WithArgs("test-agent", "received").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(mustJSON(t, sub)))

	list, err := s.ListSubmissions(context.Background(), SubmissionFilter{
		SystemID: "test-agent",
		Status:   model.SubmissionReceived,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sub.SubmissionID, list[0].SubmissionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSubmissionReview(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sub := testSubmission("SUB_20260120_test-agent_aaaa0001", "test-agent")
	sub.Status = model.SubmissionUnderReview
	prev := sub.UpdatedAt
	sub.UpdatedAt = "2026-01-21T00:00:00Z"

	mock.ExpectExec(`UPDATE submissions SET status = \$1, data = \$2, updated_at = \$3`).
		WithArgs(string(sub.Status), mustJSON(t, sub), sub.UpdatedAt, sub.SubmissionID, prev).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateSubmissionReview(context.Background(), sub, prev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSubmissionReview_Stale(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	sub := testSubmission("SUB_20260120_test-agent_aaaa0001", "test-agent")
	sub.Status = model.SubmissionUnderReview
	sub.UpdatedAt = "2026-01-21T00:00:00Z"

	mock.ExpectExec(`UPDATE submissions SET status = \$1, data = \$2, updated_at = \$3`).
		WithArgs(string(sub.Status), mustJSON(t, sub), sub.UpdatedAt, sub.SubmissionID, "2026-01-19T00:00:00Z").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateSubmissionReview(context.Background(), sub, "2026-01-19T00:00:00Z")
	assert.ErrorIs(t, err, ErrStaleSubmission)
	assert.NoError(t, mock.ExpectationsWereMet())
}
