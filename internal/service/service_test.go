package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"procurement/internal/models"
	"procurement/internal/token"
)

type mail struct {
	To      string
	Subject string
	Body    string
}

// mailbox records outgoing mail and fails for the listed addresses.
type mailbox struct {
	mu   sync.Mutex
	sent []mail
	fail map[string]bool
}

func (m *mailbox) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[to] {
		return errors.New("smtp: mailbox unavailable")
	}
	m.sent = append(m.sent, mail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *mailbox) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	to := make([]string, len(m.sent))
	for i, msg := range m.sent {
		to[i] = msg.To
	}
	return to
}

func (m *mailbox) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type memGuard struct {
	mu   sync.Mutex
	used map[string]bool
}

func (g *memGuard) Use(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id == "" {
		return true, nil
	}
	if g.used[id] {
		return false, nil
	}
	g.used[id] = true
	return true, nil
}

func (g *memGuard) Release(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.used, id)
	return nil
}

type memQueue struct {
	mu  sync.Mutex
	due map[string]time.Time
}

func (q *memQueue) Schedule(ctx context.Context, stepId string, deadline time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.due[stepId] = deadline
	return nil
}

func (q *memQueue) Due(ctx context.Context, now time.Time) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := []string{}
	for id, deadline := range q.due {
		if !deadline.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (q *memQueue) Remove(ctx context.Context, stepIds ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range stepIds {
		delete(q.due, id)
	}
	return nil
}

type testEnv struct {
	store *memStore
	mail  *mailbox
	svc   *Service
	now   time.Time
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		store: newMemStore(),
		mail:  &mailbox{fail: map[string]bool{}},
		now:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	o := Options{
		Sender:  env.mail,
		Codec:   token.Plain{},
		BaseURL: "https://procurement.example.com/",
		Log:     log,
		Now:     func() time.Time { return env.now },
	}
	for _, opt := range opts {
		opt(&o)
	}

	env.svc = NewService(env.store, o)
	return env
}

func (e *testEnv) addApprover(t *testing.T, name, role string) models.Approver {
	t.Helper()
	a, err := e.svc.CreateApprover(context.Background(), models.Approver{
		Name:  name,
		Email: gofakeit.Email(),
		Role:  role,
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) setDefaultTemplate(t *testing.T, steps ...models.StepTemplate) models.WorkflowTemplate {
	t.Helper()
	tmpl, err := e.svc.ReplaceDefaultTemplateSteps(context.Background(), steps)
	require.NoError(t, err)
	return tmpl
}

func (e *testEnv) addRequest(t *testing.T) models.Request {
	t.Helper()
	r, err := e.svc.CreateRequest(context.Background(), models.Request{
		Title:     gofakeit.ProductName(),
		Requester: gofakeit.Username(),
	})
	require.NoError(t, err)
	return r
}

func (e *testEnv) view(t *testing.T, requestId string) models.RequestApproval {
	t.Helper()
	view, err := e.svc.GetRequestApproval(context.Background(), requestId)
	require.NoError(t, err)
	return view
}

func (e *testEnv) tokenFor(t *testing.T, requestId, stepId string) string {
	t.Helper()
	tok, err := e.svc.codec.Encode(token.Reference{RequestId: requestId, StepId: stepId})
	require.NoError(t, err)
	return tok
}

func statuses(steps []models.ApprovalStep) []models.StepStatus {
	result := make([]models.StepStatus, len(steps))
	for i, s := range steps {
		result[i] = s.Status
	}
	return result
}
