package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/taskhive/internal/orchestrator"
	"github.com/mtzanidakis/taskhive/internal/recurring"
	"github.com/mtzanidakis/taskhive/internal/store"
	"github.com/mtzanidakis/taskhive/internal/workflow"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Agents
	mux.HandleFunc("GET /api/agents", s.listAgents)
	mux.HandleFunc("POST /api/agents", s.registerAgent)
	mux.HandleFunc("GET /api/agents/{id}", s.getAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.unregisterAgent)
	mux.HandleFunc("GET /api/agents/{id}/messages", s.getAgentMessages)

	// Tasks
	mux.HandleFunc("GET /api/tasks", s.listTasks)
	mux.HandleFunc("POST /api/tasks", s.createTask)
	mux.HandleFunc("GET /api/tasks/history", s.listTaskHistory)
	mux.HandleFunc("GET /api/tasks/{id}", s.getTask)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.completeTask)
	mux.HandleFunc("POST /api/tasks/{id}/fail", s.failTask)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", s.cancelTask)

	// Workflows
	mux.HandleFunc("GET /api/workflows", s.listWorkflows)
	mux.HandleFunc("POST /api/workflows", s.startWorkflow)
	mux.HandleFunc("GET /api/workflows/history", s.listWorkflowHistory)
	mux.HandleFunc("GET /api/workflows/{id}", s.getWorkflow)

	// Messages
	mux.HandleFunc("GET /api/messages", s.listMessages)
	mux.HandleFunc("POST /api/messages", s.sendMessage)

	// Recurring tasks
	mux.HandleFunc("GET /api/recurring", s.listRecurring)
	mux.HandleFunc("POST /api/recurring", s.createRecurring)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.deleteRecurring)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.orch.Agents())
}

func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	var def orchestrator.AgentDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if def.ID == "" || def.Name == "" {
		jsonError(w, "id and name are required", http.StatusBadRequest)
		return
	}

	if err := s.orch.RegisterAgent(def); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	jsonResponse(w, map[string]string{"id": def.ID})
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.orch.Agent(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, agent)
}

func (s *Server) unregisterAgent(w http.ResponseWriter, r *http.Request) {
	removed, err := s.orch.UnregisterAgent(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, map[string]bool{"removed": removed})
}

func (s *Server) getAgentMessages(w http.ResponseWriter, r *http.Request) {
	messages := s.orch.MessagesForAgent(r.PathValue("id"))
	if messages == nil {
		messages = []orchestrator.Message{}
	}
	jsonResponse(w, messages)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.orch.Tasks())
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var def orchestrator.TaskDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if def.Name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	id, err := s.orch.CreateTask(def)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	if err := s.orch.QueueTask(id); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
	jsonResponse(w, map[string]string{"id": id})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.orch.Task(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, task)
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Output map[string]any `json:"output"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	if err := s.orch.CompleteTask(r.PathValue("id"), body.Output); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) failTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Error string `json:"error"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	if err := s.orch.FailTask(r.PathValue("id"), body.Error); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.CancelTask(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) listTaskHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListTaskRuns(queryLimit(r))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.TaskRun{}
	}
	jsonResponse(w, runs)
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.engine.Instances())
}

func (s *Server) startWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		workflow.Definition
		Input map[string]any `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || len(body.Steps) == 0 {
		jsonError(w, "name and steps are required", http.StatusBadRequest)
		return
	}

	// The workflow outlives the request; its context must not be cancelled
	// when the 202 response is written.
	inst := s.engine.Start(context.WithoutCancel(r.Context()), body.Definition, body.Input)
	w.WriteHeader(http.StatusAccepted)
	jsonResponse(w, map[string]string{"id": inst.ID})
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	inst, err := s.engine.Instance(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	jsonResponse(w, inst)
}

func (s *Server) listWorkflowHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListWorkflowRuns(queryLimit(r))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.WorkflowRun{}
	}
	jsonResponse(w, runs)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ListMessages(queryLimit(r))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []store.MessageRecord{}
	}
	jsonResponse(w, messages)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.From == "" || body.Content == "" {
		jsonError(w, "from and content are required", http.StatusBadRequest)
		return
	}

	msg := s.orch.SendMessage(body.From, body.To, body.Content)
	w.WriteHeader(http.StatusCreated)
	jsonResponse(w, msg)
}

func (s *Server) listRecurring(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListRecurring()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []store.RecurringTask{}
	}
	jsonResponse(w, tasks)
}

func (s *Server) createRecurring(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string                      `json:"name"`
		Schedule string                      `json:"schedule"`
		Task     orchestrator.TaskDefinition `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Schedule == "" || body.Task.Name == "" {
		jsonError(w, "name, schedule, and task are required", http.StatusBadRequest)
		return
	}

	normalized, err := recurring.NormalizeSchedule(body.Schedule)
	if err != nil {
		jsonError(w, fmt.Sprintf("invalid schedule: %v", err), http.StatusBadRequest)
		return
	}

	rt := &store.RecurringTask{
		ID:        uuid.New().String(),
		Name:      body.Name,
		Schedule:  normalized,
		Task:      body.Task,
		Status:    "active",
		NextRunAt: recurring.CalculateNextRun(normalized),
	}
	if err := s.store.SaveRecurring(rt); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	jsonResponse(w, map[string]string{"id": rt.ID})
}

func (s *Server) deleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRecurring(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
		"running": s.orch.Running(),
		"stats":   s.orch.Stats(),
		"queued":  s.orch.QueuedTasks(),
	})
}

// statusFor maps orchestrator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrInvalidState),
		errors.Is(err, orchestrator.ErrDuplicateAgent),
		errors.Is(err, orchestrator.ErrAgentBusy),
		errors.Is(err, orchestrator.ErrCapacityExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
