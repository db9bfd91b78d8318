package store

import (
	"database/sql"
	"fmt"
	"time"
)

// WorkflowRun is the persisted record of one workflow execution.
type WorkflowRun struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s *Store) SaveWorkflowRun(r *WorkflowRun) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_runs (id, name, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		r.ID, r.Name, r.Status, r.Error, r.StartedAt, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("save workflow run: %w", err)
	}
	return nil
}

func (s *Store) GetWorkflowRun(id string) (*WorkflowRun, error) {
	row := s.db.QueryRow(`
		SELECT id, name, status, error, started_at, completed_at
		FROM workflow_runs WHERE id = ?`, id)
	r := &WorkflowRun{}
	var wfErr *string
	err := row.Scan(&r.ID, &r.Name, &r.Status, &wfErr, &r.StartedAt, &r.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow run: %w", err)
	}
	if wfErr != nil {
		r.Error = *wfErr
	}
	return r, nil
}

func (s *Store) ListWorkflowRuns(limit int) ([]WorkflowRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, name, status, error, started_at, completed_at
		FROM workflow_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []WorkflowRun
	for rows.Next() {
		r := WorkflowRun{}
		var wfErr *string
		if err := rows.Scan(&r.ID, &r.Name, &r.Status, &wfErr, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan workflow run: %w", err)
		}
		if wfErr != nil {
			r.Error = *wfErr
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
