package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/agentindex/ami-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS assessments (
	assessment_id TEXT PRIMARY KEY,
	system_id     TEXT NOT NULL,
	version       INTEGER NOT NULL,
	status        TEXT NOT NULL,
	assessed_at   TEXT NOT NULL,
	data          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS latest_assessments (
	system_id     TEXT PRIMARY KEY,
	assessment_id TEXT NOT NULL,
	version       INTEGER NOT NULL,
	data          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	submission_id           TEXT PRIMARY KEY,
	type                    TEXT NOT NULL,
	system_id               TEXT NOT NULL,
	assessment_id           TEXT,
	status                  TEXT NOT NULL DEFAULT 'received',
	data                    TEXT NOT NULL,
	resulting_assessment_id TEXT,
	submitted_at            TEXT NOT NULL,
	updated_at              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_system ON assessments(system_id, version);
CREATE INDEX IF NOT EXISTS idx_submissions_system ON submissions(system_id);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
CREATE INDEX IF NOT EXISTS idx_submissions_assessment ON submissions(assessment_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertAssessment(ctx context.Context, a *model.Assessment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal assessment")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO assessments (assessment_id, system_id, version, status, assessed_at, data)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(assessment_id) DO UPDATE SET
		   system_id = excluded.system_id,
		   version = excluded.version,
		   status = excluded.status,
		   assessed_at = excluded.assessed_at,
		   data = excluded.data`,
		a.AssessmentID, a.SystemID, a.Version, string(a.Status), a.AssessedAt, string(data),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert assessment %s", a.AssessmentID)
	}

	// Mirror the latest projection when this is the newest version.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO latest_assessments (system_id, assessment_id, version, data)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(system_id) DO UPDATE SET
		   assessment_id = excluded.assessment_id,
		   version = excluded.version,
		   data = excluded.data
		 WHERE excluded.version >= latest_assessments.version`,
		a.SystemID, a.AssessmentID, a.Version, string(data),
	)
	return eris.Wrapf(err, "sqlite: update latest for %s", a.SystemID)
}

func (s *SQLiteStore) GetAssessment(ctx context.Context, assessmentID string) (*model.Assessment, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM assessments WHERE assessment_id = ?`, assessmentID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get assessment %s", assessmentID)
	}
	return unmarshalAssessment(data)
}

func (s *SQLiteStore) ListAssessments(ctx context.Context, systemID string) ([]model.Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM assessments WHERE system_id = ? ORDER BY version DESC`, systemID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list assessments for %s", systemID)
	}
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assessment")
		}
		a, err := unmarshalAssessment(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate assessments")
}

func (s *SQLiteStore) GetLatestAssessment(ctx context.Context, systemID string) (*model.Assessment, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM latest_assessments WHERE system_id = ?`, systemID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get latest for %s", systemID)
	}
	return unmarshalAssessment(data)
}

func (s *SQLiteStore) ListSystemIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT system_id FROM assessments ORDER BY system_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list system ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan system id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate system ids")
}

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal submission")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (submission_id, type, system_id, assessment_id, status, data, resulting_assessment_id, submitted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.SubmissionID, string(sub.Type), sub.SystemID, nullable(sub.AssessmentID),
		string(sub.Status), string(data), nullable(sub.ResultingAssessmentID),
		sub.SubmittedAt, sub.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert submission %s", sub.SubmissionID)
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, submissionID string) (*model.Submission, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM submissions WHERE submission_id = ?`, submissionID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get submission %s", submissionID)
	}
	return unmarshalSubmission(data)
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT data FROM submissions`
	var clauses []string
	var args []any
	if filter.SystemID != "" {
		clauses = append(clauses, "system_id = ?")
		args = append(args, filter.SystemID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssessmentID != "" {
		clauses = append(clauses, "assessment_id = ?")
		args = append(args, filter.AssessmentID)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY submitted_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list submissions")
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan submission")
		}
		sub, err := unmarshalSubmission(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate submissions")
}

func (s *SQLiteStore) UpdateSubmissionReview(ctx context.Context, sub *model.Submission, prevUpdatedAt string) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal submission")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, data = ?, updated_at = ?
		 WHERE submission_id = ? AND updated_at = ?`,
		string(sub.Status), string(data), sub.UpdatedAt, sub.SubmissionID, prevUpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update submission %s", sub.SubmissionID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrStaleSubmission
	}
	return nil
}

func (s *SQLiteStore) LinkResultingAssessment(ctx context.Context, submissionID, assessmentID string) error {
	sub, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return eris.Errorf("sqlite: submission %s not found", submissionID)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	sub.ResultingAssessmentID = assessmentID
	prevUpdatedAt := sub.UpdatedAt
	sub.UpdatedAt = now

	data, err := json.Marshal(sub)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal submission")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE submissions SET data = ?, resulting_assessment_id = ?, updated_at = ?
		 WHERE submission_id = ? AND updated_at = ?`,
		string(data), assessmentID, now, submissionID, prevUpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: link assessment to %s", submissionID)
}

func unmarshalAssessment(data string) (*model.Assessment, error) {
	var a model.Assessment
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal assessment")
	}
	return &a, nil
}

func unmarshalSubmission(data string) (*model.Submission, error) {
	var s model.Submission
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal submission")
	}
	return &s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
