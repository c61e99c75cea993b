// Package api provides the HTTP API for starting and inspecting workflow runs.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abdulachik/linkrunner/internal/apperrors"
	"github.com/abdulachik/linkrunner/internal/db"
	"github.com/abdulachik/linkrunner/internal/health"
	"github.com/abdulachik/linkrunner/internal/request"
	"github.com/abdulachik/linkrunner/internal/workflow"
)

// maxRequestBodySize limits request body to 1MB
const maxRequestBodySize = 1 << 20

// Handler contains HTTP handlers for the runs API
type Handler struct {
	runner *workflow.Runner
	health *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(runner *workflow.Runner, healthChecker *health.Checker) *Handler {
	return &Handler{
		runner: runner,
		health: healthChecker,
	}
}

// RunResponse is the JSON view of a run.
type RunResponse struct {
	ID         string          `json:"id"`
	Workflow   string          `json:"workflow"`
	Status     string          `json:"status"`
	Input      json.RawMessage `json:"input"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Permanent  *bool           `json:"permanent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func newRunResponse(run db.Run) RunResponse {
	resp := RunResponse{
		ID:        run.ID,
		Workflow:  run.Workflow,
		Status:    run.Status,
		Input:     json.RawMessage(run.Input),
		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
	if run.Result.Valid {
		resp.Result = json.RawMessage(run.Result.String)
	}
	if run.Status == db.RunStatusFailed {
		resp.Error = run.Error.String
		permanent := run.Permanent
		resp.Permanent = &permanent
	}
	if run.FinishedAt.Valid {
		finished := run.FinishedAt.Time
		resp.FinishedAt = &finished
	}
	return resp
}

// ListRunsResponse is returned by GET /v1/runs.
type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

// FieldResponse describes one input field of a workflow.
type FieldResponse struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	MaxLength int    `json:"max_length,omitempty"`
}

// WorkflowResponse describes a registered workflow.
type WorkflowResponse struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Timeout     string          `json:"timeout"`
	Input       []FieldResponse `json:"input"`
}

// CreateRun handles POST /v1/workflows/{name}/runs. The body is the workflow
// input. With ?wait=true the run is executed before responding.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.handleError(w, r, fmt.Errorf("read request body: %w", err))
		return
	}

	raw, err := request.Decode(body)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	name := chi.URLParam(r, "name")

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		run, err := h.runner.Execute(r.Context(), name, raw)
		if err != nil {
			h.handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newRunResponse(run))
		return
	}

	run, err := h.runner.Start(r.Context(), name, raw)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, newRunResponse(run))
}

// GetRun handles GET /v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRunResponse(run))
}

// ListRuns handles GET /v1/runs
// Query params: workflow, status, limit (all optional)
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := db.ListRunsParams{
		Workflow: q.Get("workflow"),
		Status:   q.Get("status"),
	}

	switch params.Status {
	case "", db.RunStatusRunning, db.RunStatusSucceeded, db.RunStatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "status must be one of running, succeeded, failed")
		return
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = limit
	}

	runs, err := h.runner.List(r.Context(), params)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := ListRunsResponse{Runs: make([]RunResponse, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, newRunResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListWorkflows handles GET /v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs := h.runner.Registry().List()

	resp := make([]WorkflowResponse, 0, len(defs))
	for _, d := range defs {
		wf := WorkflowResponse{
			Name:        d.Name,
			Description: d.Description,
			Timeout:     d.Timeout.String(),
			Input:       make([]FieldResponse, 0, len(d.Schema.Fields)),
		}
		for _, f := range d.Schema.Fields {
			wf.Input = append(wf.Input, FieldResponse{Name: f.Name, Kind: f.Kind.String(), MaxLength: f.MaxLen})
		}
		resp = append(resp, wf)
	}

	writeJSON(w, http.StatusOK, map[string]any{"workflows": resp})
}

// Livez handles GET /livez - liveness probe.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 when the run store is unreachable or the service is shutting
// down. A failing workflow only degrades the response.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

// handleError maps service errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	writeError(w, status, err.Error())
}

func httpStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrUnknownWorkflow), errors.Is(err, workflow.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrRunnerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
