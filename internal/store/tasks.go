package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mtzanidakis/taskhive/internal/orchestrator"
)

// TaskRun is the persisted record of one task's lifecycle.
type TaskRun struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Status      string         `json:"status"`
	AgentID     string         `json:"agent_id,omitempty"`
	Priority    string         `json:"priority"`
	Retries     int            `json:"retries"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TaskRunFrom flattens an orchestrator snapshot into its persisted form.
func TaskRunFrom(t orchestrator.TaskInstance) *TaskRun {
	return &TaskRun{
		ID:          t.Definition.ID,
		Name:        t.Definition.Name,
		Status:      string(t.Status),
		AgentID:     t.AssignedAgent,
		Priority:    string(t.Definition.Priority),
		Retries:     t.Retries,
		Input:       t.Definition.Input,
		Output:      t.Output,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

func (s *Store) SaveTaskRun(r *TaskRun) error {
	input, err := marshalMap(r.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	output, err := marshalMap(r.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO task_runs (id, name, status, agent_id, priority, retries, input, output, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			agent_id = excluded.agent_id,
			retries = excluded.retries,
			output = excluded.output,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		r.ID, r.Name, r.Status, r.AgentID, r.Priority, r.Retries, input, output, r.Error,
		r.CreatedAt, r.StartedAt, r.CompletedAt)
	if err != nil {
		return fmt.Errorf("save task run: %w", err)
	}
	return nil
}

func (s *Store) GetTaskRun(id string) (*TaskRun, error) {
	row := s.db.QueryRow(`
		SELECT id, name, status, agent_id, priority, retries, input, output, error,
		       created_at, started_at, completed_at
		FROM task_runs WHERE id = ?`, id)
	r, err := scanTaskRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task run: %w", err)
	}
	return r, nil
}

func (s *Store) ListTaskRuns(limit int) ([]TaskRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, name, status, agent_id, priority, retries, input, output, error,
		       created_at, started_at, completed_at
		FROM task_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list task runs: %w", err)
	}
	defer rows.Close()

	var runs []TaskRun
	for rows.Next() {
		r, err := scanTaskRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanTaskRun(scanner interface {
	Scan(dest ...any) error
}) (*TaskRun, error) {
	r := &TaskRun{}
	var agentID, input, output, taskErr *string
	err := scanner.Scan(&r.ID, &r.Name, &r.Status, &agentID, &r.Priority, &r.Retries,
		&input, &output, &taskErr, &r.CreatedAt, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if agentID != nil {
		r.AgentID = *agentID
	}
	if taskErr != nil {
		r.Error = *taskErr
	}
	if r.Input, err = unmarshalMap(input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	if r.Output, err = unmarshalMap(output); err != nil {
		return nil, fmt.Errorf("unmarshal output: %w", err)
	}
	return r, nil
}

func marshalMap(m map[string]any) (*string, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func unmarshalMap(s *string) (map[string]any, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(*s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
