package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/models"
)

func addTestWorkflow(t *testing.T, repo *Repository, roles ...string) (models.Request, []models.ApprovalStep) {
	ctx := context.Background()

	request, err := repo.AddRequest(ctx, RandomRequest())
	require.NoError(t, err)

	approval, err := repo.AddApproval(ctx, request.Id)
	require.NoError(t, err)

	tmpl := AddTestTemplate(t, repo, roles...)
	steps := make([]models.ApprovalStep, len(tmpl.Steps))
	for i, st := range tmpl.Steps {
		steps[i] = st.Instantiate(approval.Id)
	}

	steps, err = repo.AddSteps(ctx, steps)
	require.NoError(t, err)
	return request, steps
}

func TestApprovalSteps(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	request, steps := addTestWorkflow(t, repo, "Manager", "Finance", "Director")

	approval, ok, err := repo.GetApproval(ctx, request.Id)
	require.NoError(t, err)
	require.True(t, ok)

	again, err := repo.AddApproval(ctx, request.Id)
	require.NoError(t, err)
	assert.Equal(t, approval.Id, again.Id, "one container per request")

	stored, err := repo.GetSteps(ctx, approval.Id)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, s := range stored {
		assert.Equal(t, i+1, s.Order)
		assert.Equal(t, models.StepWaiting, s.Status)
	}

	next, ok, err := repo.NextStep(ctx, approval.Id, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, steps[1].Id, next.Id)

	_, ok, err = repo.NextStep(ctx, approval.Id, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	rs, err := repo.GetRequestStep(ctx, steps[0].Id)
	require.NoError(t, err)
	assert.Equal(t, request.Id, rs.RequestId)
	assert.Equal(t, request.Title, rs.RequestTitle)
}

func TestDecideStepOnce(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	_, steps := addTestWorkflow(t, repo, "Manager")

	now := time.Now()
	_, err := repo.ActivateStep(ctx, steps[0].Id, now)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := repo.DecideStep(ctx, steps[0].Id, models.StepApproved, "Alice", "", now)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent decision may succeed")
}

func TestResetSteps(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	_, steps := addTestWorkflow(t, repo, "Manager", "Finance")
	now := time.Now()

	_, err := repo.ActivateStep(ctx, steps[0].Id, now)
	require.NoError(t, err)
	_, ok, err := repo.DecideStep(ctx, steps[0].Id, models.StepRejected, "Alice", "too expensive", now)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.ResetSteps(ctx, steps[0].ApprovalId))

	stored, err := repo.GetSteps(ctx, steps[0].ApprovalId)
	require.NoError(t, err)
	for _, s := range stored {
		assert.Equal(t, models.StepWaiting, s.Status)
		assert.Empty(t, s.Comments)
		assert.Nil(t, s.DecidedAt)
	}
}

func TestPendingAndOverdueSteps(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	_, steps := addTestWorkflow(t, repo, "Manager")
	step := steps[0]

	activated := time.Now().Add(-time.Duration(step.SlaDuration+1) * time.Hour)
	_, err := repo.ActivateStep(ctx, step.Id, activated)
	require.NoError(t, err)

	pending, err := repo.PendingStepsFor(ctx, step.ApproverName, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, step.Id, pending[0].Id)

	overdue, err := repo.OverdueSteps(ctx, time.Now())
	require.NoError(t, err)
	if step.SlaDuration == 0 {
		assert.Empty(t, overdue)
		return
	}
	require.Len(t, overdue, 1)

	ok, err := repo.MarkStepEscalated(ctx, step.Id, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkStepEscalated(ctx, step.Id, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	overdue, err = repo.OverdueSteps(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, overdue)

	require.NoError(t, repo.ClearStepEscalation(ctx, step.Id))
	overdue, err = repo.OverdueSteps(ctx, time.Now())
	require.NoError(t, err)
	assert.Len(t, overdue, 1)
}
