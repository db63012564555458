package service

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/models"
)

var admin = models.Actor{UserId: "admin-1", Username: "admin", IsAdmin: true}

func addTestBrfq(t *testing.T, env *testEnv, suppliers ...string) models.Brfq {
	t.Helper()
	b, err := env.svc.CreateBrfq(context.Background(), models.Brfq{
		Title:     gofakeit.ProductName(),
		Currency:  "EUR",
		Suppliers: suppliers,
		Items: []models.BrfqItem{
			{Name: "Bolts", Quantity: 100, Unit: "pcs"},
			{Name: "Nuts", Quantity: 200, Unit: "pcs"},
		},
	})
	require.NoError(t, err)
	return b
}

func TestApproveModificationAppliesChanges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	supplier, err := env.svc.CreateSupplier(ctx, models.Supplier{Name: gofakeit.Company(), Email: "sales@acme.example"})
	require.NoError(t, err)

	env.mail.fail["broken@example.com"] = true
	brfq := addTestBrfq(t, env, supplier.Id, "buyer@partner.example", "unknown-supplier", "broken@example.com", "buyer@partner.example")

	items := []models.BrfqItem{{Name: "Washers", Quantity: 50, Unit: "pcs"}}
	mod, err := env.svc.ProposeModification(ctx, brfq.Id, models.ChangeSummary{
		Fields: map[string]models.FieldChange{
			"title":    {From: brfq.Title, To: "Fasteners Q3"},
			"deadline": {From: "", To: "2024-04-01"},
			"terms":    {From: "", To: "Net 30"},
			"status":   {From: "draft", To: "awarded"},
		},
		Items: &items,
	}, "supplier feedback", "buyer")
	require.NoError(t, err)
	assert.Equal(t, models.ModificationPending, mod.Status)

	approved, err := env.svc.ApproveModification(ctx, admin, mod.Id)
	require.NoError(t, err)
	assert.Equal(t, models.ModificationApproved, approved.Status)
	assert.Equal(t, "admin", approved.ReviewedBy)
	require.NotNil(t, approved.ReviewedAt)

	updated, err := env.svc.GetBrfq(ctx, brfq.Id)
	require.NoError(t, err)
	assert.Equal(t, "Fasteners Q3", updated.Title)
	assert.Equal(t, "Net 30", updated.Terms)
	assert.Equal(t, models.BrfqDraft, updated.Status, "status is not a modifiable field")
	require.NotNil(t, updated.Deadline)
	assert.True(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC).Equal(*updated.Deadline))
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "Washers", updated.Items[0].Name)

	assert.ElementsMatch(t, []string{"sales@acme.example", "buyer@partner.example"}, env.mail.recipients())
	assert.Contains(t, env.mail.sent[0].Body, "Fasteners Q3")
}

func TestApproveModificationOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	brfq := addTestBrfq(t, env)

	mod, err := env.svc.ProposeModification(ctx, brfq.Id, models.ChangeSummary{
		Fields: map[string]models.FieldChange{"currency": {From: "EUR", To: "USD"}},
	}, "", "buyer")
	require.NoError(t, err)

	_, err = env.svc.ApproveModification(ctx, models.Actor{Username: "buyer"}, mod.Id)
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.ApproveModification(ctx, admin, mod.Id)
	require.NoError(t, err)

	_, err = env.svc.ApproveModification(ctx, admin, mod.Id)
	require.ErrorIs(t, err, models.ErrModificationDecided)

	_, err = env.svc.RejectModification(ctx, admin, mod.Id, "late")
	require.ErrorIs(t, err, models.ErrModificationDecided)

	_, err = env.svc.ApproveModification(ctx, admin, "missing")
	require.ErrorIs(t, err, models.ErrNoModification)

	updated, err := env.svc.GetBrfq(ctx, brfq.Id)
	require.NoError(t, err)
	assert.Equal(t, "USD", updated.Currency)
	assert.Len(t, updated.Items, 2, "items untouched without an item list")
}

func TestApproveModificationInvalidDeadline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	brfq := addTestBrfq(t, env)

	mod, err := env.svc.ProposeModification(ctx, brfq.Id, models.ChangeSummary{
		Fields: map[string]models.FieldChange{
			"title":    {To: "Renamed"},
			"deadline": {To: "next tuesday"},
		},
	}, "", "buyer")
	require.NoError(t, err)

	_, err = env.svc.ApproveModification(ctx, admin, mod.Id)
	require.ErrorIs(t, err, models.ErrValidation)

	unchanged, err := env.svc.GetBrfq(ctx, brfq.Id)
	require.NoError(t, err)
	assert.Equal(t, brfq.Title, unchanged.Title)

	stored, err := env.svc.GetModification(ctx, mod.Id)
	require.NoError(t, err)
	assert.Equal(t, models.ModificationPending, stored.Status)
}

func TestRejectModification(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	brfq := addTestBrfq(t, env)

	mod, err := env.svc.ProposeModification(ctx, brfq.Id, models.ChangeSummary{
		Fields: map[string]models.FieldChange{"terms": {To: "Net 60"}},
	}, "longer terms", "buyer")
	require.NoError(t, err)

	_, err = env.svc.RejectModification(ctx, models.Actor{Username: "buyer"}, mod.Id, "")
	require.ErrorIs(t, err, models.ErrForbidden)

	rejected, err := env.svc.RejectModification(ctx, admin, mod.Id, "terms are fixed")
	require.NoError(t, err)
	assert.Equal(t, models.ModificationRejected, rejected.Status)
	assert.Equal(t, "terms are fixed", rejected.Reason)

	_, err = env.svc.RejectModification(ctx, admin, "missing", "")
	require.ErrorIs(t, err, models.ErrNoModification)

	unchanged, err := env.svc.GetBrfq(ctx, brfq.Id)
	require.NoError(t, err)
	assert.Empty(t, unchanged.Terms)
	assert.Empty(t, env.mail.recipients())
}

func TestProposeModificationValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	brfq := addTestBrfq(t, env)

	_, err := env.svc.ProposeModification(ctx, "missing", models.ChangeSummary{
		Fields: map[string]models.FieldChange{"terms": {To: "x"}},
	}, "", "buyer")
	assert.ErrorIs(t, err, models.ErrNoBrfq)

	_, err = env.svc.ProposeModification(ctx, brfq.Id, models.ChangeSummary{}, "", "buyer")
	assert.ErrorIs(t, err, models.ErrValidation)

	bad := []models.BrfqItem{{Name: ""}}
	_, err = env.svc.ProposeModification(ctx, brfq.Id, models.ChangeSummary{Items: &bad}, "", "buyer")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateBrfqValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.CreateBrfq(ctx, models.Brfq{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.svc.CreateBrfq(ctx, models.Brfq{Title: "x", Status: "lost"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.svc.GetBrfq(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNoBrfq)

	_, err = env.svc.GetSupplier(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNoSupplier)
}
