package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalysisRun represents a single sideslip fit over a recording
// session. Sideslip statistics may be NaN when a fit did not converge;
// they are stored as NULL.
type AnalysisRun struct {
	RunID          string `json:"run_id"`
	SessionPath    string `json:"session_path"`
	Frames         int    `json:"frames"`
	StartTimestamp int64  `json:"start_timestamp"`
	EndTimestamp   int64  `json:"end_timestamp"`

	// Fit options.
	LockHeading bool `json:"lock_heading"`
	StartIndex  int  `json:"start_index"`

	// Fit results.
	Converged        bool       `json:"converged"`
	FittedRotation   [3]float64 `json:"fitted_rotation"`
	PreSideslipMean  float64    `json:"pre_sideslip_mean"`
	PreSideslipRMS   float64    `json:"pre_sideslip_rms"`
	PostSideslipMean float64    `json:"post_sideslip_mean"`
	PostSideslipRMS  float64    `json:"post_sideslip_rms"`

	CreatedAt int64 `json:"created_at"`
}

// RunStore provides persistence for analysis runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db.DB}
}

// Insert persists a new analysis run. If RunID is empty, a UUID is generated.
func (s *RunStore) Insert(run *AnalysisRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO analysis_runs (
				run_id, session_path, frames, start_timestamp, end_timestamp,
				lock_heading, start_index, converged,
				fitted_rotation_0, fitted_rotation_1, fitted_rotation_2,
				pre_sideslip_mean, pre_sideslip_rms,
				post_sideslip_mean, post_sideslip_rms,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.SessionPath, run.Frames, run.StartTimestamp, run.EndTimestamp,
			run.LockHeading, run.StartIndex, run.Converged,
			run.FittedRotation[0], run.FittedRotation[1], run.FittedRotation[2],
			nullIfNaN(run.PreSideslipMean), nullIfNaN(run.PreSideslipRMS),
			nullIfNaN(run.PostSideslipMean), nullIfNaN(run.PostSideslipRMS),
			run.CreatedAt,
		)
		return err
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*AnalysisRun, error) {
	row := s.db.QueryRow(runSelect+` WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("analysis run %s not found", runID)
		}
		return nil, fmt.Errorf("scan analysis run: %w", err)
	}
	return run, nil
}

// ListBySession returns all runs recorded for a session path, newest first.
func (s *RunStore) ListBySession(sessionPath string) ([]*AnalysisRun, error) {
	rows, err := s.db.Query(runSelect+`
		WHERE session_path = ?
		ORDER BY created_at DESC`, sessionPath)
	if err != nil {
		return nil, fmt.Errorf("query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run by ID.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("analysis run %s not found", runID)
		}
		return nil
	})
}

const runSelect = `
	SELECT run_id, session_path, frames, start_timestamp, end_timestamp,
	       lock_heading, start_index, converged,
	       fitted_rotation_0, fitted_rotation_1, fitted_rotation_2,
	       pre_sideslip_mean, pre_sideslip_rms,
	       post_sideslip_mean, post_sideslip_rms,
	       created_at
	FROM analysis_runs`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*AnalysisRun, error) {
	var run AnalysisRun
	var preMean, preRMS, postMean, postRMS sql.NullFloat64
	err := row.Scan(
		&run.RunID, &run.SessionPath, &run.Frames, &run.StartTimestamp, &run.EndTimestamp,
		&run.LockHeading, &run.StartIndex, &run.Converged,
		&run.FittedRotation[0], &run.FittedRotation[1], &run.FittedRotation[2],
		&preMean, &preRMS, &postMean, &postRMS,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.PreSideslipMean = floatOrNaN(preMean)
	run.PreSideslipRMS = floatOrNaN(preRMS)
	run.PostSideslipMean = floatOrNaN(postMean)
	run.PostSideslipRMS = floatOrNaN(postRMS)
	return &run, nil
}

// nullIfNaN maps NaN statistics to NULL; SQLite has no NaN literal.
func nullIfNaN(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// isSQLiteBusy reports whether err is a transient SQLITE_BUSY failure.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries fn with short backoff while it fails with
// SQLITE_BUSY. WAL mode keeps these windows small; a handful of
// retries is enough in practice.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if !isSQLiteBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return err
}
