package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/garyjia/forms-workflow/internal/application/workflow"
	"github.com/garyjia/forms-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/forms-workflow/internal/domain/workflow"
)

var errDisk = errors.New("disk I/O error")

type mockEngine struct {
	resolveFunc func(ctx context.Context, actor *entity.Actor) ([]*entity.ActionableStep, error)
	seedFunc    func(ctx context.Context, submissionID string, def entity.ProcessDefinition) error
	seeded      []string
}

func (m *mockEngine) SeedApprovalChain(ctx context.Context, submissionID string, def entity.ProcessDefinition) error {
	m.seeded = append(m.seeded, submissionID)
	if m.seedFunc != nil {
		return m.seedFunc(ctx, submissionID, def)
	}
	return nil
}

func (m *mockEngine) ResolveActionableSteps(ctx context.Context, actor *entity.Actor) ([]*entity.ActionableStep, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, actor)
	}
	return []*entity.ActionableStep{}, nil
}

func (m *mockEngine) CompleteStep(ctx context.Context, submissionID, stepName string, decision domainwf.Decision, actedBy string) (*workflow.StatusUpdate, error) {
	return nil, errors.New("not implemented")
}

// mockTxManager restores the submission map when fn fails
type mockTxManager struct {
	subs    *mockSubmissionRepo
	hooks   []func(ctx context.Context)
	commits int
}

type txMarker struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	snapshot := make(map[string]*entity.Submission, len(m.subs.subs))
	for id, s := range m.subs.subs {
		cp := *s
		snapshot[id] = &cp
	}

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		m.subs.subs = snapshot
		m.hooks = nil
		return err
	}

	m.commits++
	hooks := m.hooks
	m.hooks = nil
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

func (m *mockTxManager) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if ctx.Value(txMarker{}) == nil {
		fn(ctx)
		return
	}
	m.hooks = append(m.hooks, fn)
}

type mockSubmissionRepo struct {
	subs      map[string]*entity.Submission
	createErr error
	listErr   error
}

func newMockSubmissionRepo(subs ...*entity.Submission) *mockSubmissionRepo {
	m := &mockSubmissionRepo{subs: map[string]*entity.Submission{}}
	for _, s := range subs {
		m.subs[s.ID] = s
	}
	return m
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *entity.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	cp := *submission
	m.subs[submission.ID] = &cp
	return nil
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id string) (*entity.Submission, error) {
	s, ok := m.subs[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSubmissionRepo) ListBySubmitter(ctx context.Context, submittedBy string) ([]*entity.Submission, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*entity.Submission{}
	for _, s := range m.subs {
		if s.SubmittedBy == submittedBy {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (m *mockSubmissionRepo) UpdateWorkflow(ctx context.Context, id, status, currentStep, expectedStep string) (bool, error) {
	s, ok := m.subs[id]
	if !ok || s.CurrentStep != expectedStep {
		return false, nil
	}
	s.WorkflowStatus, s.CurrentStep = status, currentStep
	return true, nil
}

type mockStepRepo struct {
	steps   []*entity.ApprovalStep
	history []*entity.CompletedStep
	err     error
}

func (m *mockStepRepo) CreateBatch(ctx context.Context, steps []*entity.ApprovalStep) error {
	m.steps = append(m.steps, steps...)
	return nil
}

func (m *mockStepRepo) GetByName(ctx context.Context, submissionID, stepName string) (*entity.ApprovalStep, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, s := range m.steps {
		if s.SubmissionID == submissionID && s.StepName == stepName {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockStepRepo) GetBySubmissionID(ctx context.Context, submissionID string) ([]*entity.ApprovalStep, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.ApprovalStep
	for _, s := range m.steps {
		if s.SubmissionID == submissionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStepRepo) Resolve(ctx context.Context, stepID, status, actedBy string, actedAt time.Time, comments string) (bool, error) {
	return false, errors.New("not implemented")
}

func (m *mockStepRepo) ListCurrentPending(ctx context.Context) ([]*entity.ActionableStep, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStepRepo) ListActedBy(ctx context.Context, actor string) ([]*entity.CompletedStep, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []*entity.CompletedStep{}
	for _, h := range m.history {
		if h.Step.ActedBy == actor {
			out = append(out, h)
		}
	}
	return out, nil
}

type mockDirectory struct {
	users map[string]*entity.Actor
}

func newMockDirectory(users ...*entity.Actor) *mockDirectory {
	m := &mockDirectory{users: map[string]*entity.Actor{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockDirectory) GetUserByIdentity(id string) (*entity.Actor, bool) {
	u, ok := m.users[id]
	return u, ok
}

func (m *mockDirectory) GetManagerOf(id string) (*entity.Actor, bool) {
	u, ok := m.users[id]
	if !ok {
		return nil, false
	}
	mgr, ok := m.users[u.ManagerID]
	return mgr, ok
}

func (m *mockDirectory) GetDirectReports(managerID string) []*entity.Actor {
	var out []*entity.Actor
	for _, u := range m.users {
		if u.ManagerID == managerID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type mockCatalog struct {
	forms []*entity.FormConfig
}

func (m *mockCatalog) GetBySlug(slug string) (*entity.FormConfig, bool) {
	for _, f := range m.forms {
		if f.Slug == slug {
			return f, true
		}
	}
	return nil, false
}

func (m *mockCatalog) GetByID(id string) (*entity.FormConfig, bool) {
	for _, f := range m.forms {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

func (m *mockCatalog) List() []*entity.FormConfig {
	return m.forms
}

type mockEvaluator struct {
	result bool
	err    error
	env    map[string]interface{}
}

func (m *mockEvaluator) Evaluate(expression string, env map[string]interface{}) (bool, error) {
	m.env = env
	return m.result, m.err
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

var (
	erin = &entity.Actor{ID: "erin", Name: "Erin Ng", Roles: []string{entity.RoleEmployee}, Department: "engineering", ManagerID: "mia"}
	eli  = &entity.Actor{ID: "eli", Name: "Eli Park", Roles: []string{entity.RoleEmployee}, ManagerID: "mia"}
	mia  = &entity.Actor{ID: "mia", Name: "Mia Lopez", Roles: []string{entity.RoleEmployee, entity.RoleManager}, ManagerID: "dan"}
	dan  = &entity.Actor{ID: "dan", Name: "Dan Cole", Roles: []string{entity.RoleDirector}}
)

var leaveForm = &entity.FormConfig{
	ID:              "f-leave",
	Slug:            "leave-request",
	Title:           "Leave request",
	WorkflowEnabled: true,
	Process: entity.ProcessDefinition{Steps: []entity.StepDefinition{
		{Name: "manager_review", Assign: entity.AssignmentRule{Kind: entity.AssignManager}},
		{Name: "director_review", Assign: entity.AssignmentRule{Kind: entity.AssignRole, Role: entity.RoleDirector}},
	}},
}

var feedbackForm = &entity.FormConfig{
	ID:             "f-feedback",
	Slug:           "feedback",
	Title:          "Feedback",
	AllowAnonymous: true,
}

var purchaseForm = &entity.FormConfig{
	ID:              "f-purchase",
	Slug:            "purchase",
	Title:           "Purchase order",
	WorkflowEnabled: true,
	Condition:       "payload.amount > 500",
	Process: entity.ProcessDefinition{Steps: []entity.StepDefinition{
		{Name: "finance", Assign: entity.AssignmentRule{Kind: entity.AssignUser, User: "dan"}},
	}},
}

func newCatalog() *mockCatalog {
	return &mockCatalog{forms: []*entity.FormConfig{feedbackForm, leaveForm, purchaseForm}}
}

func at(minute int) time.Time {
	return time.Date(2026, 3, 2, 9, minute, 0, 0, time.UTC)
}
