package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/forms-workflow/internal/application/service"
	"github.com/garyjia/forms-workflow/internal/application/workflow"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

const testSecret = "test-secret"

type fakeQueries struct {
	tasksFor string
	detail   *service.SubmissionDetail
	err      error
}

func (f *fakeQueries) MyTasks(ctx context.Context, actorID string) ([]*service.Task, error) {
	f.tasksFor = actorID
	if actorID == "" {
		return []*service.Task{}, nil
	}
	return []*service.Task{{SubmissionID: "S1", StepName: "manager_review"}}, f.err
}

func (f *fakeQueries) MySubmissions(ctx context.Context, actorID string) ([]*service.SubmissionSummary, error) {
	return []*service.SubmissionSummary{}, f.err
}

func (f *fakeQueries) MyHistory(ctx context.Context, actorID string) ([]*service.CompletedTask, error) {
	return []*service.CompletedTask{}, f.err
}

func (f *fakeQueries) SubmissionDetail(ctx context.Context, submissionID string) (*service.SubmissionDetail, error) {
	if f.detail == nil {
		return nil, fmt.Errorf("%w: submission %s", domainwf.ErrNotFound, submissionID)
	}
	return f.detail, nil
}

func (f *fakeQueries) Profile(ctx context.Context, actorID string) (*service.Profile, error) {
	return &service.Profile{Actor: &entity.Actor{ID: actorID}, DirectReports: []*entity.Actor{}}, nil
}

type fakeIntake struct {
	gotBy   string
	gotData map[string]interface{}
	err     error
}

func (f *fakeIntake) CreateSubmission(ctx context.Context, formSlug, submittedBy string, payload map[string]interface{}) (*entity.Submission, error) {
	f.gotBy, f.gotData = submittedBy, payload
	if f.err != nil {
		return nil, f.err
	}
	return &entity.Submission{ID: "S1", FormSlug: formSlug, SubmittedBy: submittedBy, WorkflowStatus: entity.WorkflowStatusInProgress, CurrentStep: "manager_review"}, nil
}

func (f *fakeIntake) ListForms() []*entity.FormConfig {
	return []*entity.FormConfig{{ID: "f-leave", Slug: "leave-request", Title: "Leave request", WorkflowEnabled: true,
		Process: entity.ProcessDefinition{Steps: []entity.StepDefinition{{Name: "manager_review"}, {Name: "director_review"}}}}}
}

type fakeEngine struct {
	calls    int
	decision domainwf.Decision
	actedBy  string
	update   *workflow.StatusUpdate
	err      error
}

func (f *fakeEngine) SeedApprovalChain(ctx context.Context, submissionID string, def entity.ProcessDefinition) error {
	return nil
}

func (f *fakeEngine) ResolveActionableSteps(ctx context.Context, actor *entity.Actor) ([]*entity.ActionableStep, error) {
	return nil, nil
}

func (f *fakeEngine) CompleteStep(ctx context.Context, submissionID, stepName string, decision domainwf.Decision, actedBy string) (*workflow.StatusUpdate, error) {
	f.calls++
	f.decision, f.actedBy = decision, actedBy
	return f.update, f.err
}

type fakeNotifier struct{ healthy bool }

func (f *fakeNotifier) NotifyStarted(ctx context.Context, msg entity.ProcessStarted) {}
func (f *fakeNotifier) HealthCheck(ctx context.Context) bool                         { return f.healthy }
func (f *fakeNotifier) Gateway() string                                              { return "http://orchestrator:8080" }

type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

type fixture struct {
	server   *Server
	queries  *fakeQueries
	intake   *fakeIntake
	engine   *fakeEngine
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		queries:  &fakeQueries{},
		intake:   &fakeIntake{},
		engine:   &fakeEngine{update: &workflow.StatusUpdate{WorkflowStatus: entity.WorkflowStatusInProgress, CurrentStep: "director_review"}},
		notifier: &fakeNotifier{},
	}
	cfg := DefaultServerConfig()
	cfg.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Auth = AuthConfig{JWTSecret: testSecret, Issuer: "forms", AllowIdentityHeader: true}
	f.server = NewServer(cfg, ServerDeps{
		Queries:  f.queries,
		Intake:   f.intake,
		Engine:   f.engine,
		Notifier: f.notifier,
		Health:   func(ctx context.Context) (bool, interface{}) { return true, map[string]string{"database": "ok"} },
		Logger:   testLogger{},
	})
	return f
}

func token(t *testing.T, subject, issuer, secret string) string {
	t.Helper()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	f.server = NewServer(f.server.config, ServerDeps{
		Queries: f.queries, Intake: f.intake, Engine: f.engine, Notifier: f.notifier, Logger: testLogger{},
		Health: func(ctx context.Context) (bool, interface{}) { return false, nil },
	})
	w = f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWorkflowHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/workflow/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "disconnected", body["status"])
	assert.Equal(t, "http://orchestrator:8080", body["gateway"])

	f.notifier.healthy = true
	w = f.do(http.MethodGet, "/workflow/health", nil, nil)
	assert.Equal(t, "connected", decode(t, w)["status"])
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantActor  string
	}{
		{"anonymous", nil, http.StatusOK, ""},
		{"bearer token", map[string]string{"Authorization": "Bearer " + token(t, "mia", "forms", testSecret)}, http.StatusOK, "mia"},
		{"identity header", map[string]string{identityHeader: "dan"}, http.StatusOK, "dan"},
		{"wrong secret", map[string]string{"Authorization": "Bearer " + token(t, "mia", "forms", "other")}, http.StatusUnauthorized, ""},
		{"wrong issuer", map[string]string{"Authorization": "Bearer " + token(t, "mia", "elsewhere", testSecret)}, http.StatusUnauthorized, ""},
		{"missing subject", map[string]string{"Authorization": "Bearer " + token(t, "", "forms", testSecret)}, http.StatusUnauthorized, ""},
		{"malformed header", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(http.MethodGet, "/workflow/my-tasks", nil, tt.headers)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantActor, f.queries.tasksFor)
			}
		})
	}
}

func TestIdentityHeaderDisabled(t *testing.T) {
	f := newFixture(t)
	cfg := f.server.config
	cfg.Auth.AllowIdentityHeader = false
	f.server = NewServer(cfg, f.server.deps)

	f.do(http.MethodGet, "/workflow/my-tasks", nil, map[string]string{identityHeader: "dan"})
	assert.Equal(t, "", f.queries.tasksFor)
}

func TestMyTasks(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/workflow/my-tasks", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["tasks"])

	w = f.do(http.MethodGet, "/workflow/my-tasks", nil, map[string]string{identityHeader: "mia"})
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode(t, w)["tasks"].([]interface{})
	require.Len(t, tasks, 1)
	assert.Equal(t, "manager_review", tasks[0].(map[string]interface{})["step_name"])
}

func TestQueryErrors(t *testing.T) {
	f := newFixture(t)
	f.queries.err = domainwf.Unavailable("list submissions", fmt.Errorf("disk I/O error"))

	for _, path := range []string{"/workflow/my-submissions", "/workflow/my-history", "/workflow/my-tasks"} {
		w := f.do(http.MethodGet, path, nil, map[string]string{identityHeader: "mia"})
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.Equal(t, "internal error", decode(t, w)["error"], path)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/workflow/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/workflow/me", nil, map[string]string{identityHeader: "mia"})
	require.Equal(t, http.StatusOK, w.Code)
	user := decode(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "mia", user["id"])
}

func TestGetSubmission(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/workflow/submissions/S404", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	f.queries.detail = &service.SubmissionDetail{
		Submission: &entity.Submission{ID: "S1", WorkflowStatus: entity.WorkflowStatusInProgress, CurrentStep: "manager_review"},
		FormTitle:  "Leave request",
		Steps:      []*entity.ApprovalStep{{StepName: "manager_review", Status: entity.StepStatusPending}},
	}
	w = f.do(http.MethodGet, "/workflow/submissions/S1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sub := decode(t, w)["submission"].(map[string]interface{})
	assert.Equal(t, "S1", sub["id"])
	assert.Equal(t, "manager_review", sub["current_step"])
	assert.Len(t, sub["steps"], 1)
}

func TestCompleteStep(t *testing.T) {
	const path = "/workflow/submissions/S1/steps/manager_review/complete"
	mia := map[string]string{identityHeader: "mia"}

	t.Run("approve", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, path, CompleteStepRequest{Action: "approve", Comments: "ok"}, mia)
		require.Equal(t, http.StatusOK, w.Code)

		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Step manager_review approved; next step director_review", body["message"])
		assert.Equal(t, domainwf.Approve{Note: "ok"}, f.engine.decision)
		assert.Equal(t, "mia", f.engine.actedBy)
	})

	t.Run("reject resolves", func(t *testing.T) {
		f := newFixture(t)
		f.engine.update = &workflow.StatusUpdate{WorkflowStatus: entity.WorkflowStatusRejected}
		w := f.do(http.MethodPost, path, CompleteStepRequest{Action: "reject", Comments: "budget"}, mia)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Step manager_review rejected; submission rejected", decode(t, w)["message"])
	})

	tests := []struct {
		name       string
		headers    map[string]string
		body       interface{}
		engineErr  error
		wantStatus int
		wantField  string
		wantCalls  int
	}{
		{"anonymous", nil, CompleteStepRequest{Action: "approve"}, nil, http.StatusUnauthorized, "", 0},
		{"invalid body", mia, "not an object", nil, http.StatusBadRequest, "", 0},
		{"invalid action", mia, CompleteStepRequest{Action: "escalate"}, nil, http.StatusBadRequest, "action", 0},
		{"reject without comments", mia, CompleteStepRequest{Action: "reject", Comments: "  "}, nil, http.StatusBadRequest, "comments", 0},
		{"not found", mia, CompleteStepRequest{Action: "approve"}, fmt.Errorf("%w: step", domainwf.ErrNotFound), http.StatusNotFound, "", 1},
		{"not current", mia, CompleteStepRequest{Action: "approve"}, fmt.Errorf("%w: step is not current", domainwf.ErrPrecondition), http.StatusConflict, "", 1},
		{"store down", mia, CompleteStepRequest{Action: "approve"}, domainwf.Unavailable("load submission", fmt.Errorf("locked")), http.StatusInternalServerError, "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.engine.err = tt.engineErr
			if tt.engineErr != nil {
				f.engine.update = nil
			}

			w := f.do(http.MethodPost, path, tt.body, tt.headers)
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, body["field"])
			}
			assert.Equal(t, tt.wantCalls, f.engine.calls)
		})
	}
}

func TestForms(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/forms", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	forms := decode(t, w)["forms"].([]interface{})
	require.Len(t, forms, 1)
	form := forms[0].(map[string]interface{})
	assert.Equal(t, "leave-request", form["slug"])
	assert.Equal(t, []interface{}{"manager_review", "director_review"}, form["steps"])

	w = f.do(http.MethodPost, "/forms/leave-request/submissions",
		CreateSubmissionRequest{Data: map[string]interface{}{"days": 2}},
		map[string]string{identityHeader: "erin"})
	require.Equal(t, http.StatusCreated, w.Code)
	sub := decode(t, w)["submission"].(map[string]interface{})
	assert.Equal(t, "S1", sub["id"])
	assert.Equal(t, "in_progress", sub["workflow_status"])
	assert.Equal(t, "erin", f.intake.gotBy)
	assert.Equal(t, float64(2), f.intake.gotData["days"])

	f.intake.err = domainwf.NewFieldError("submitted_by", "this form requires a signed-in submitter")
	w = f.do(http.MethodPost, "/forms/leave-request/submissions", CreateSubmissionRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "submitted_by", decode(t, w)["field"])
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodOptions, "/workflow/my-tasks", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "GET",
	})
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
