package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mtzanidakis/taskhive/internal/orchestrator"
)

// RecurringTask is a stored task definition materialized into the
// orchestrator every time its cron schedule fires.
type RecurringTask struct {
	ID        string                      `json:"id"`
	Name      string                      `json:"name"`
	Schedule  string                      `json:"schedule"`
	Task      orchestrator.TaskDefinition `json:"task"`
	Status    string                      `json:"status"`
	NextRunAt *time.Time                  `json:"next_run_at,omitempty"`
	LastRunAt *time.Time                  `json:"last_run_at,omitempty"`
	LastError string                      `json:"last_error,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
}

func (s *Store) SaveRecurring(t *RecurringTask) error {
	task, err := json.Marshal(t.Task)
	if err != nil {
		return fmt.Errorf("marshal task definition: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO recurring_tasks (id, name, schedule, task, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			task = excluded.task,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		t.ID, t.Name, t.Schedule, string(task), t.Status, t.NextRunAt)
	if err != nil {
		return fmt.Errorf("save recurring task: %w", err)
	}
	return nil
}

func (s *Store) GetRecurring(id string) (*RecurringTask, error) {
	row := s.db.QueryRow(`
		SELECT id, name, schedule, task, status, next_run_at, last_run_at, last_error, created_at
		FROM recurring_tasks WHERE id = ?`, id)
	t, err := scanRecurring(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring task: %w", err)
	}
	return t, nil
}

func (s *Store) ListRecurring() ([]RecurringTask, error) {
	return s.queryRecurring(`
		SELECT id, name, schedule, task, status, next_run_at, last_run_at, last_error, created_at
		FROM recurring_tasks ORDER BY created_at`)
}

// DueRecurring returns active recurring tasks whose next run is at or
// before now.
func (s *Store) DueRecurring(now time.Time) ([]RecurringTask, error) {
	return s.queryRecurring(`
		SELECT id, name, schedule, task, status, next_run_at, last_run_at, last_error, created_at
		FROM recurring_tasks
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at`, now)
}

// MarkRecurringRun records a firing and advances the schedule.
func (s *Store) MarkRecurringRun(id string, ranAt time.Time, nextRun *time.Time, runErr string) error {
	_, err := s.db.Exec(`
		UPDATE recurring_tasks
		SET last_run_at = ?, next_run_at = ?, last_error = ?
		WHERE id = ?`, ranAt, nextRun, runErr, id)
	if err != nil {
		return fmt.Errorf("mark recurring run: %w", err)
	}
	return nil
}

func (s *Store) DeleteRecurring(id string) error {
	if _, err := s.db.Exec(`DELETE FROM recurring_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recurring task: %w", err)
	}
	return nil
}

func (s *Store) queryRecurring(query string, args ...any) ([]RecurringTask, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recurring tasks: %w", err)
	}
	defer rows.Close()

	var tasks []RecurringTask
	for rows.Next() {
		t, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanRecurring(scanner interface {
	Scan(dest ...any) error
}) (*RecurringTask, error) {
	t := &RecurringTask{}
	var task string
	var lastError *string
	err := scanner.Scan(&t.ID, &t.Name, &t.Schedule, &task, &t.Status,
		&t.NextRunAt, &t.LastRunAt, &lastError, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastError != nil {
		t.LastError = *lastError
	}
	if err := json.Unmarshal([]byte(task), &t.Task); err != nil {
		return nil, fmt.Errorf("unmarshal task definition: %w", err)
	}
	return t, nil
}
