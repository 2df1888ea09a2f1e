package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/application/service"
	"github.com/garyjia/forms-workflow/internal/application/workflow"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	queries  service.QueryService
	intake   service.IntakeService
	engine   workflow.WorkflowEngine
	notifier port.ProcessNotifier
	health   HealthFunc
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps ServerDeps) *Handlers {
	return &Handlers{
		queries:  deps.Queries,
		intake:   deps.Intake,
		engine:   deps.Engine,
		notifier: deps.Notifier,
		health:   deps.Health,
		logger:   deps.Logger,
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// WorkflowHealthResponse reports orchestrator connectivity
type WorkflowHealthResponse struct {
	Status  string `json:"status"`
	Gateway string `json:"gateway"`
}

// CompleteStepRequest is the body of a step completion
type CompleteStepRequest struct {
	Action   string `json:"action"`
	Comments string `json:"comments"`
}

// CompleteStepResponse confirms a step completion
type CompleteStepResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	WorkflowStatus string `json:"workflow_status"`
	CurrentStep    string `json:"current_step,omitempty"`
}

// CreateSubmissionRequest is the body of a new submission
type CreateSubmissionRequest struct {
	Data map[string]interface{} `json:"data"`
}

// FormSummary describes a form in the catalog listing
type FormSummary struct {
	ID              string   `json:"id"`
	Slug            string   `json:"slug"`
	Title           string   `json:"title"`
	WorkflowEnabled bool     `json:"workflow_enabled"`
	AllowAnonymous  bool     `json:"allow_anonymous"`
	Steps           []string `json:"steps"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.health != nil {
		ok, components := h.health(c.Request.Context())
		resp.Components = components
		if !ok {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, resp)
}

// WorkflowHealth handles GET /workflow/health
func (h *Handlers) WorkflowHealth(c *gin.Context) {
	resp := WorkflowHealthResponse{Status: "disconnected", Gateway: h.notifier.Gateway()}
	if h.notifier.HealthCheck(c.Request.Context()) {
		resp.Status = "connected"
	}
	c.JSON(http.StatusOK, resp)
}

// Me handles GET /workflow/me
func (h *Handlers) Me(c *gin.Context) {
	actorID := ActorID(c)
	if actorID == "" {
		abortUnauthorized(c, "authentication required")
		return
	}

	profile, err := h.queries.Profile(c.Request.Context(), actorID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

// MyTasks handles GET /workflow/my-tasks
func (h *Handlers) MyTasks(c *gin.Context) {
	tasks, err := h.queries.MyTasks(c.Request.Context(), ActorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// MySubmissions handles GET /workflow/my-submissions
func (h *Handlers) MySubmissions(c *gin.Context) {
	subs, err := h.queries.MySubmissions(c.Request.Context(), ActorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

// MyHistory handles GET /workflow/my-history
func (h *Handlers) MyHistory(c *gin.Context) {
	history, err := h.queries.MyHistory(c.Request.Context(), ActorID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": history})
}

// GetSubmission handles GET /workflow/submissions/:id
func (h *Handlers) GetSubmission(c *gin.Context) {
	detail, err := h.queries.SubmissionDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": detail})
}

// CompleteStep handles POST /workflow/submissions/:id/steps/:stepName/complete
func (h *Handlers) CompleteStep(c *gin.Context) {
	actorID := ActorID(c)
	if actorID == "" {
		abortUnauthorized(c, "authentication required")
		return
	}

	var req CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid request body"})
		return
	}

	decision, err := domainwf.ParseDecision(req.Action, req.Comments)
	if err != nil {
		h.writeError(c, err)
		return
	}

	submissionID, stepName := c.Param("id"), c.Param("stepName")
	update, err := h.engine.CompleteStep(c.Request.Context(), submissionID, stepName, decision, actorID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CompleteStepResponse{
		Success:        true,
		Message:        completionMessage(stepName, decision, update),
		WorkflowStatus: update.WorkflowStatus,
		CurrentStep:    update.CurrentStep,
	})
}

// ListForms handles GET /forms
func (h *Handlers) ListForms(c *gin.Context) {
	forms := h.intake.ListForms()
	out := make([]FormSummary, 0, len(forms))
	for _, f := range forms {
		out = append(out, toFormSummary(f))
	}
	c.JSON(http.StatusOK, gin.H{"forms": out})
}

// CreateSubmission handles POST /forms/:slug/submissions
func (h *Handlers) CreateSubmission(c *gin.Context) {
	var req CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: "invalid request body"})
		return
	}

	sub, err := h.intake.CreateSubmission(c.Request.Context(), c.Param("slug"), ActorID(c), req.Data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"submission": sub})
}

// writeError maps the error taxonomy onto HTTP status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	resp := ErrorResponse{Success: false, Error: err.Error()}

	var fieldErr *domainwf.FieldError
	if errors.As(err, &fieldErr) {
		resp.Field = fieldErr.Field
		resp.Error = fieldErr.Message
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		resp.Error = "internal error"
	}

	c.JSON(status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrPrecondition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func completionMessage(stepName string, decision domainwf.Decision, update *workflow.StatusUpdate) string {
	verb := "approved"
	if decision.Action() == domainwf.ActionReject {
		verb = "rejected"
	}
	if update.Resolved() {
		return fmt.Sprintf("Step %s %s; submission %s", stepName, verb, update.WorkflowStatus)
	}
	return fmt.Sprintf("Step %s %s; next step %s", stepName, verb, update.CurrentStep)
}

func toFormSummary(f *entity.FormConfig) FormSummary {
	steps := make([]string, 0, len(f.Process.Steps))
	for _, s := range f.Process.Steps {
		steps = append(steps, s.Name)
	}
	return FormSummary{
		ID:              f.ID,
		Slug:            f.Slug,
		Title:           f.Title,
		WorkflowEnabled: f.WorkflowEnabled,
		AllowAnonymous:  f.AllowAnonymous,
		Steps:           steps,
	}
}
