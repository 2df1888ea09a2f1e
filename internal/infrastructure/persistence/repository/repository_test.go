package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/domain/entity"
	"github.com/garyjia/forms-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/forms-workflow/migrations"
	"github.com/garyjia/forms-workflow/pkg/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, database.Config{Path: filepath.Join(t.TempDir(), "workflow.db"), MaxOpenConns: 4}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, zap.NewNop()).Run(ctx, migrations.FS)
	require.NoError(t, err)
	return db.DB
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func insertSubmission(t *testing.T, repo *SubmissionRepository, id, submitter, status, current string, at time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &entity.Submission{
		ID:             id,
		FormID:         "form-leave",
		FormSlug:       "leave-request",
		Payload:        map[string]interface{}{"days": 2.0, "reason": "trip"},
		SubmittedBy:    submitter,
		SubmittedAt:    at,
		WorkflowStatus: status,
		CurrentStep:    current,
	}))
}

func pendingSubmission(id string) *entity.Submission {
	return &entity.Submission{
		ID:             id,
		FormID:         "form-leave",
		FormSlug:       "leave-request",
		SubmittedBy:    "erin",
		SubmittedAt:    t0,
		WorkflowStatus: entity.WorkflowStatusPending,
	}
}

func chain(submissionID string) []*entity.ApprovalStep {
	return []*entity.ApprovalStep{
		{ID: submissionID + "-1", SubmissionID: submissionID, StepOrder: 0, StepName: "manager_review", AssignedTo: "mia", Status: entity.StepStatusPending, CreatedAt: t0},
		{ID: submissionID + "-2", SubmissionID: submissionID, StepOrder: 1, StepName: "director_review", Role: entity.RoleDirector, Status: entity.StepStatusPending, CreatedAt: t0},
	}
}

func TestSubmissionRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	ctx := context.Background()

	insertSubmission(t, repo, "S1", "erin", entity.WorkflowStatusPending, "", t0)

	got, err := repo.GetByID(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "leave-request", got.FormSlug)
	assert.Equal(t, "erin", got.SubmittedBy)
	assert.Equal(t, entity.WorkflowStatusPending, got.WorkflowStatus)
	assert.Empty(t, got.CurrentStep)
	assert.True(t, t0.Equal(got.SubmittedAt))
	assert.Equal(t, map[string]interface{}{"days": 2.0, "reason": "trip"}, got.Payload)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSubmissionRepository_AnonymousAndNilPayload(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Submission{
		ID: "A1", FormID: "form-feedback", FormSlug: "feedback",
		SubmittedAt: t0, WorkflowStatus: entity.WorkflowStatusNone,
	}))

	got, err := repo.GetByID(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, got.IsAnonymous())
	assert.Empty(t, got.Payload)
}

func TestSubmissionRepository_RejectsUnknownStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db, zap.NewNop())

	err := repo.Create(context.Background(), &entity.Submission{
		ID: "X", FormID: "f", FormSlug: "f", SubmittedAt: t0, WorkflowStatus: "COMPLETED",
	})
	assert.Error(t, err)
}

func TestSubmissionRepository_ListBySubmitter(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)

	insertSubmission(t, repo, "S1", "erin", entity.WorkflowStatusPending, "", t0)
	insertSubmission(t, repo, "S2", "erin", entity.WorkflowStatusNone, "", t0.Add(time.Hour))
	insertSubmission(t, repo, "S3", "olga", entity.WorkflowStatusPending, "", t0.Add(2*time.Hour))
	insertSubmission(t, repo, "S0", "erin", entity.WorkflowStatusPending, "", t0)

	got, err := repo.ListBySubmitter(context.Background(), "erin")
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, s := range got {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"S2", "S0", "S1"}, ids)

	none, err := repo.ListBySubmitter(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSubmissionRepository_UpdateWorkflowGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	ctx := context.Background()

	insertSubmission(t, repo, "S1", "erin", entity.WorkflowStatusPending, "", t0)

	ok, err := repo.UpdateWorkflow(ctx, "S1", entity.WorkflowStatusInProgress, "manager_review", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateWorkflow(ctx, "S1", entity.WorkflowStatusInProgress, "manager_review", "")
	require.NoError(t, err)
	assert.False(t, ok, "stale expected step must not update")

	ok, err = repo.UpdateWorkflow(ctx, "S1", entity.WorkflowStatusApproved, "", "manager_review")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, entity.WorkflowStatusApproved, got.WorkflowStatus)
	assert.Empty(t, got.CurrentStep)
}

func TestApprovalStepRepository_CreateAndRead(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	steps := NewApprovalStepRepository(db, zap.NewNop())
	ctx := context.Background()

	insertSubmission(t, subs, "S1", "erin", entity.WorkflowStatusPending, "", t0)
	require.NoError(t, steps.CreateBatch(ctx, chain("S1")))

	all, err := steps.GetBySubmissionID(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "manager_review", all[0].StepName)
	assert.Equal(t, "mia", all[0].AssignedTo)
	assert.Empty(t, all[0].Role)
	assert.Equal(t, "director_review", all[1].StepName)
	assert.Empty(t, all[1].AssignedTo)
	assert.Equal(t, entity.RoleDirector, all[1].Role)
	assert.Nil(t, all[1].ActedAt)

	one, err := steps.GetByName(ctx, "S1", "director_review")
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, 1, one.StepOrder)

	missing, err := steps.GetByName(ctx, "S1", "legal_review")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestApprovalStepRepository_DuplicateNamesRejected(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	steps := NewApprovalStepRepository(db, zap.NewNop())

	insertSubmission(t, subs, "S1", "erin", entity.WorkflowStatusPending, "", t0)
	dup := chain("S1")
	dup[1].StepName = dup[0].StepName

	assert.Error(t, steps.CreateBatch(context.Background(), dup))
}

func TestApprovalStepRepository_CreateBatchRollsBackInTransaction(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	steps := NewApprovalStepRepository(db, zap.NewNop())
	tx := sqlite.NewTxManager(db, zap.NewNop())
	ctx := context.Background()

	insertSubmission(t, subs, "S1", "erin", entity.WorkflowStatusPending, "", t0)
	dup := chain("S1")
	dup[1].StepOrder = 0

	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		return steps.CreateBatch(txCtx, dup)
	})
	require.Error(t, err)

	all, err := steps.GetBySubmissionID(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, all, "partial chain must not survive a failed transaction")
}

func TestTxManager_NestedRollbackDropsSubmissionAndHooks(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	steps := NewApprovalStepRepository(db, zap.NewNop())
	tx := sqlite.NewTxManager(db, zap.NewNop())
	ctx := context.Background()
	var fired []string

	err := tx.WithTransaction(ctx, func(outer context.Context) error {
		require.NoError(t, subs.Create(outer, pendingSubmission("S1")))
		return tx.WithTransaction(outer, func(inner context.Context) error {
			require.NoError(t, steps.CreateBatch(inner, chain("S1")))
			tx.AfterCommit(inner, func(context.Context) { fired = append(fired, "seeded") })
			return errors.New("assignee missing")
		})
	})
	require.EqualError(t, err, "assignee missing")
	assert.Empty(t, fired, "hooks must not run on rollback")

	got, err := subs.GetByID(ctx, "S1")
	require.NoError(t, err)
	assert.Nil(t, got)
	all, err := steps.GetBySubmissionID(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTxManager_AfterCommitRunsOnOutermostCommit(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	tx := sqlite.NewTxManager(db, zap.NewNop())
	ctx := context.Background()
	var fired []string

	err := tx.WithTransaction(ctx, func(outer context.Context) error {
		err := tx.WithTransaction(outer, func(inner context.Context) error {
			require.NoError(t, subs.Create(inner, pendingSubmission("S1")))
			tx.AfterCommit(inner, func(hookCtx context.Context) {
				assert.Nil(t, sqlite.ExtractTx(hookCtx), "hooks must not see the committed transaction")
				fired = append(fired, "inner")
			})
			return nil
		})
		assert.Empty(t, fired, "inner commit is not the real commit")
		tx.AfterCommit(outer, func(context.Context) { fired = append(fired, "outer") })
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inner", "outer"}, fired)

	tx.AfterCommit(ctx, func(context.Context) { fired = append(fired, "immediate") })
	assert.Equal(t, []string{"inner", "outer", "immediate"}, fired)

	got, err := subs.GetByID(ctx, "S1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestApprovalStepRepository_ResolveOnce(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	steps := NewApprovalStepRepository(db, zap.NewNop())
	ctx := context.Background()

	insertSubmission(t, subs, "S1", "erin", entity.WorkflowStatusInProgress, "manager_review", t0)
	require.NoError(t, steps.CreateBatch(ctx, chain("S1")))

	actedAt := t0.Add(30 * time.Minute)
	ok, err := steps.Resolve(ctx, "S1-1", entity.StepStatusApproved, "mia", actedAt, "ok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = steps.Resolve(ctx, "S1-1", entity.StepStatusRejected, "mia", actedAt, "again")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := steps.GetByName(ctx, "S1", "manager_review")
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusApproved, got.Status)
	assert.Equal(t, "mia", got.ActedBy)
	assert.Equal(t, "ok", got.Comments)
	require.NotNil(t, got.ActedAt)
	assert.True(t, actedAt.Equal(*got.ActedAt))
}

func TestApprovalStepRepository_ListCurrentPending(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	steps := NewApprovalStepRepository(db, zap.NewNop())
	ctx := context.Background()

	insertSubmission(t, subs, "S1", "erin", entity.WorkflowStatusInProgress, "manager_review", t0)
	insertSubmission(t, subs, "S2", "erin", entity.WorkflowStatusInProgress, "director_review", t0.Add(time.Hour))
	insertSubmission(t, subs, "S3", "erin", entity.WorkflowStatusRejected, "", t0.Add(2*time.Hour))
	for _, id := range []string{"S1", "S2", "S3"} {
		require.NoError(t, steps.CreateBatch(ctx, chain(id)))
	}
	_, err := steps.Resolve(ctx, "S2-1", entity.StepStatusApproved, "mia", t0, "")
	require.NoError(t, err)

	items, err := steps.ListCurrentPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "S2", items[0].Submission.ID)
	assert.Equal(t, "director_review", items[0].Step.StepName)
	assert.Equal(t, "S1", items[1].Submission.ID)
	assert.Equal(t, "manager_review", items[1].Step.StepName)
	assert.Equal(t, "trip", items[1].Submission.Payload["reason"])
}

func TestApprovalStepRepository_ListActedBy(t *testing.T) {
	db := newTestDB(t)
	subs := NewSubmissionRepository(db, zap.NewNop()).(*SubmissionRepository)
	steps := NewApprovalStepRepository(db, zap.NewNop())
	ctx := context.Background()

	insertSubmission(t, subs, "S1", "erin", entity.WorkflowStatusInProgress, "director_review", t0)
	insertSubmission(t, subs, "S2", "erin", entity.WorkflowStatusRejected, "", t0)
	require.NoError(t, steps.CreateBatch(ctx, chain("S1")))
	require.NoError(t, steps.CreateBatch(ctx, chain("S2")))

	_, err := steps.Resolve(ctx, "S1-1", entity.StepStatusApproved, "mia", t0.Add(time.Minute), "ok")
	require.NoError(t, err)
	_, err = steps.Resolve(ctx, "S2-1", entity.StepStatusRejected, "mia", t0.Add(2*time.Minute), "no")
	require.NoError(t, err)

	items, err := steps.ListActedBy(ctx, "mia")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "S2", items[0].Submission.ID)
	assert.Equal(t, entity.StepStatusRejected, items[0].Step.Status)
	assert.Equal(t, "S1", items[1].Submission.ID)

	none, err := steps.ListActedBy(ctx, "dan")
	require.NoError(t, err)
	assert.Empty(t, none)
}
