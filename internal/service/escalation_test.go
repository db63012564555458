package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/models"
)

func setupSlaWorkflow(t *testing.T, env *testEnv) (models.Approver, models.Approver) {
	ann := env.addApprover(t, "Ann", "Manager")
	bob := env.addApprover(t, "Bob", "Finance")
	env.setDefaultTemplate(t,
		models.StepTemplate{Order: 1, Role: "Manager", ApproverName: "Ann", SlaDuration: 4},
		models.StepTemplate{Order: 2, Role: "Finance", ApproverName: "Bob", SlaDuration: 0},
	)
	return ann, bob
}

func TestEscalateRemindsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ann, _ := setupSlaWorkflow(t, env)
	request := env.addRequest(t)

	_, err := env.svc.Submit(ctx, request.Id)
	require.NoError(t, err)
	env.mail.reset()

	env.now = env.now.Add(3 * time.Hour)
	sent, err := env.svc.Escalate(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "step is still within its sla")

	env.now = env.now.Add(2 * time.Hour)
	sent, err = env.svc.Escalate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Equal(t, []string{ann.Email}, env.mail.recipients())
	assert.Contains(t, env.mail.sent[0].Subject, "Reminder")
	assert.Contains(t, env.mail.sent[0].Body, "overdue by 1 hour")

	step := env.view(t, request.Id).Steps[0]
	require.NotNil(t, step.EscalatedAt)
	assert.True(t, env.now.Equal(*step.EscalatedAt))

	env.now = env.now.Add(time.Hour)
	sent, err = env.svc.Escalate(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, env.mail.recipients(), 1)
}

func TestEscalateRetriesFailedReminder(t *testing.T) {
	ctx := context.Background()
	queue := &memQueue{due: map[string]time.Time{}}
	env := newTestEnv(t, func(o *Options) { o.Queue = queue })
	ann, _ := setupSlaWorkflow(t, env)
	request := env.addRequest(t)

	submitted, err := env.svc.Submit(ctx, request.Id)
	require.NoError(t, err)
	env.mail.reset()

	env.now = env.now.Add(5 * time.Hour)
	env.mail.fail[ann.Email] = true
	sent, err := env.svc.Escalate(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Nil(t, env.view(t, request.Id).Steps[0].EscalatedAt)
	assert.Contains(t, queue.due, submitted.Step.Id)

	delete(env.mail.fail, ann.Email)
	env.now = env.now.Add(time.Minute)
	sent, err = env.svc.Escalate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{ann.Email}, env.mail.recipients())
	assert.NotNil(t, env.view(t, request.Id).Steps[0].EscalatedAt)
	assert.Empty(t, queue.due)
}

func TestEscalateSkipsStepsWithoutSla(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	setupSlaWorkflow(t, env)
	request := env.addRequest(t)

	submitted, err := env.svc.Submit(ctx, request.Id)
	require.NoError(t, err)
	_, err = env.svc.DecideByToken(ctx, env.tokenFor(t, request.Id, submitted.Step.Id), models.StepApproved, "")
	require.NoError(t, err)
	env.mail.reset()

	env.now = env.now.Add(30 * 24 * time.Hour)
	sent, err := env.svc.Escalate(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, env.mail.recipients())
}

func TestEscalateWithQueue(t *testing.T) {
	ctx := context.Background()
	queue := &memQueue{due: map[string]time.Time{}}
	env := newTestEnv(t, func(o *Options) { o.Queue = queue })
	ann, _ := setupSlaWorkflow(t, env)

	first := env.addRequest(t)
	second := env.addRequest(t)

	firstSubmit, err := env.svc.Submit(ctx, first.Id)
	require.NoError(t, err)
	secondSubmit, err := env.svc.Submit(ctx, second.Id)
	require.NoError(t, err)
	require.Len(t, queue.due, 2)
	assert.Equal(t, env.now.Add(4*time.Hour), queue.due[firstSubmit.Step.Id])

	// a decided step leaves the queue
	_, err = env.svc.DecideByToken(ctx, env.tokenFor(t, second.Id, secondSubmit.Step.Id), models.StepApproved, "")
	require.NoError(t, err)
	require.Len(t, queue.due, 1)
	env.mail.reset()

	env.now = env.now.Add(5 * time.Hour)
	sent, err := env.svc.Escalate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{ann.Email}, env.mail.recipients())
	assert.Empty(t, queue.due)
}

func TestEscalateDropsStaleQueueEntries(t *testing.T) {
	ctx := context.Background()
	queue := &memQueue{due: map[string]time.Time{}}
	env := newTestEnv(t, func(o *Options) { o.Queue = queue })

	require.NoError(t, queue.Schedule(ctx, "deleted-step", env.now.Add(-time.Hour)))

	sent, err := env.svc.Escalate(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, queue.due)
}

func TestRunEscalatorStops(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		env.svc.RunEscalator(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("escalator did not stop after context cancellation")
	}
}
