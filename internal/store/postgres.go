package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/agentindex/ami-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS assessments (
	assessment_id TEXT PRIMARY KEY,
	system_id     TEXT NOT NULL,
	version       INTEGER NOT NULL,
	status        TEXT NOT NULL,
	assessed_at   TEXT NOT NULL,
	data          JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS latest_assessments (
	system_id     TEXT PRIMARY KEY,
	assessment_id TEXT NOT NULL,
	version       INTEGER NOT NULL,
	data          JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	submission_id           TEXT PRIMARY KEY,
	type                    TEXT NOT NULL,
	system_id               TEXT NOT NULL,
	assessment_id           TEXT,
	status                  TEXT NOT NULL DEFAULT 'received',
	data                    JSONB NOT NULL,
	resulting_assessment_id TEXT,
	submitted_at            TEXT NOT NULL,
	updated_at              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_system ON assessments(system_id, version);
CREATE INDEX IF NOT EXISTS idx_submissions_system ON submissions(system_id);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submissions_assessment ON submissions(assessment_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertAssessment(ctx context.Context, a *model.Assessment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal assessment")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO assessments (assessment_id, system_id, version, status, assessed_at, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (assessment_id) DO UPDATE SET
		   system_id = EXCLUDED.system_id,
		   version = EXCLUDED.version,
		   status = EXCLUDED.status,
		   assessed_at = EXCLUDED.assessed_at,
		   data = EXCLUDED.data`,
		a.AssessmentID, a.SystemID, a.Version, string(a.Status), a.AssessedAt, string(data),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert assessment %s", a.AssessmentID)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO latest_assessments (system_id, assessment_id, version, data)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (system_id) DO UPDATE SET
		   assessment_id = EXCLUDED.assessment_id,
		   version = EXCLUDED.version,
		   data = EXCLUDED.data
		 WHERE EXCLUDED.version >= latest_assessments.version`,
		a.SystemID, a.AssessmentID, a.Version, string(data),
	)
	return eris.Wrapf(err, "postgres: update latest for %s", a.SystemID)
}

func (s *PostgresStore) GetAssessment(ctx context.Context, assessmentID string) (*model.Assessment, error) {
	var data string
	err := s.pool.QueryRow(ctx,
		`SELECT data::text FROM assessments WHERE assessment_id = $1`, assessmentID,
	).Scan(&data)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get assessment %s", assessmentID)
	}
	return unmarshalAssessment(data)
}

func (s *PostgresStore) ListAssessments(ctx context.Context, systemID string) ([]model.Assessment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data::text FROM assessments WHERE system_id = $1 ORDER BY version DESC`, systemID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list assessments for %s", systemID)
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assessment")
		}
		a, err := unmarshalAssessment(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate assessments")
}

func (s *PostgresStore) GetLatestAssessment(ctx context.Context, systemID string) (*model.Assessment, error) {
	var data string
	err := s.pool.QueryRow(ctx,
		`SELECT data::text FROM latest_assessments WHERE system_id = $1`, systemID,
	).Scan(&data)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get latest for %s", systemID)
	}
	return unmarshalAssessment(data)
}

func (s *PostgresStore) ListSystemIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT system_id FROM assessments ORDER BY system_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list system ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan system id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate system ids")
}

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal submission")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO submissions (submission_id, type, system_id, assessment_id, status, data, resulting_assessment_id, submitted_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.SubmissionID, string(sub.Type), sub.SystemID, nullable(sub.AssessmentID),
		string(sub.Status), string(data), nullable(sub.ResultingAssessmentID),
		sub.SubmittedAt, sub.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert submission %s", sub.SubmissionID)
}

func (s *PostgresStore) GetSubmission(ctx context.Context, submissionID string) (*model.Submission, error) {
	var data string
	err := s.pool.QueryRow(ctx,
		`SELECT data::text FROM submissions WHERE submission_id = $1`, submissionID,
	).Scan(&data)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get submission %s", submissionID)
	}
	return unmarshalSubmission(data)
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT data::text FROM submissions`
	var args []any
	var clauses []string
	if filter.SystemID != "" {
		args = append(args, filter.SystemID)
		clauses = append(clauses, "system_id = $1")
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, placeholderEq("status", len(args)))
	}
	if filter.AssessmentID != "" {
		args = append(args, filter.AssessmentID)
		clauses = append(clauses, placeholderEq("assessment_id", len(args)))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY submitted_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list submissions")
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan submission")
		}
		sub, err := unmarshalSubmission(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate submissions")
}

func (s *PostgresStore) UpdateSubmissionReview(ctx context.Context, sub *model.Submission, prevUpdatedAt string) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal submission")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $1, data = $2, updated_at = $3
		 WHERE submission_id = $4 AND updated_at = $5`,
		string(sub.Status), string(data), sub.UpdatedAt, sub.SubmissionID, prevUpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update submission %s", sub.SubmissionID)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleSubmission
	}
	return nil
}

func (s *PostgresStore) LinkResultingAssessment(ctx context.Context, submissionID, assessmentID string) error {
	sub, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return eris.Errorf("postgres: submission %s not found", submissionID)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	sub.ResultingAssessmentID = assessmentID
	prevUpdatedAt := sub.UpdatedAt
	sub.UpdatedAt = now

	data, err := json.Marshal(sub)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal submission")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE submissions SET data = $1, resulting_assessment_id = $2, updated_at = $3
		 WHERE submission_id = $4 AND updated_at = $5`,
		string(data), assessmentID, now, submissionID, prevUpdatedAt,
	)
	return eris.Wrapf(err, "postgres: link assessment to %s", submissionID)
}

func placeholderEq(column string, n int) string {
	return fmt.Sprintf("%s = $%d", column, n)
}
