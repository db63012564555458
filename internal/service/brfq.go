package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"procurement/internal/metrics"
	"procurement/internal/models"
	"procurement/internal/notify"
)

//// BRFQ

func (s *Service) CreateBrfq(ctx context.Context, brfq models.Brfq) (models.Brfq, error) {
	brfq.Title = strings.TrimSpace(brfq.Title)
	if brfq.Title == "" {
		return brfq, fmt.Errorf("service.Service.CreateBrfq: %w", validation("title is required"))
	}
	if brfq.Status == "" {
		brfq.Status = models.BrfqDraft
	} else if !models.ValidBrfqStatus(brfq.Status) {
		return brfq, fmt.Errorf("service.Service.CreateBrfq: %w", validation("unknown brfq status '%s'", brfq.Status))
	}
	if err := validateItems(brfq.Items); err != nil {
		return brfq, fmt.Errorf("service.Service.CreateBrfq: %w", err)
	}

	brfq, err := s.store.AddBrfq(ctx, brfq)
	if err != nil {
		return brfq, fmt.Errorf("service.Service.CreateBrfq: %w", err)
	}
	return brfq, nil
}

func (s *Service) GetBrfq(ctx context.Context, id string) (models.Brfq, error) {
	brfq, err := s.store.GetBrfq(ctx, id)
	if err != nil {
		return brfq, fmt.Errorf("service.Service.GetBrfq: %w", notFound(err, models.ErrNoBrfq))
	}
	return brfq, nil
}

//// Modifications

func (s *Service) ProposeModification(ctx context.Context, brfqId string, summary models.ChangeSummary, reason, requestedBy string) (models.ModificationRequest, error) {
	if len(summary.Fields) == 0 && summary.Items == nil {
		return models.ModificationRequest{}, fmt.Errorf("service.Service.ProposeModification: %w", validation("modification changes nothing"))
	}
	if summary.Items != nil {
		if err := validateItems(*summary.Items); err != nil {
			return models.ModificationRequest{}, fmt.Errorf("service.Service.ProposeModification: %w", err)
		}
	}

	if _, err := s.store.GetBrfq(ctx, brfqId); err != nil {
		return models.ModificationRequest{}, fmt.Errorf("service.Service.ProposeModification: %w", notFound(err, models.ErrNoBrfq))
	}

	mod, err := s.store.AddModification(ctx, models.ModificationRequest{
		BrfqId:      brfqId,
		Reason:      reason,
		Summary:     summary,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return mod, fmt.Errorf("service.Service.ProposeModification: %w", err)
	}
	return mod, nil
}

func (s *Service) GetModification(ctx context.Context, id string) (models.ModificationRequest, error) {
	mod, err := s.store.GetModification(ctx, id)
	if err != nil {
		return mod, fmt.Errorf("service.Service.GetModification: %w", notFound(err, models.ErrNoModification))
	}
	return mod, nil
}

// ApproveModification applies the proposed diff to the BRFQ and tells its suppliers.
func (s *Service) ApproveModification(ctx context.Context, actor models.Actor, id string) (models.ModificationRequest, error) {
	if !actor.IsAdmin {
		return models.ModificationRequest{}, fmt.Errorf("service.Service.ApproveModification: %w", models.ErrForbidden)
	}

	var (
		mod  models.ModificationRequest
		brfq models.Brfq
	)
	err := s.store.WithinTx(ctx, func(tx Store) error {
		var err error
		mod, err = tx.GetModification(ctx, id)
		if err != nil {
			return notFound(err, models.ErrNoModification)
		}
		if mod.Status != models.ModificationPending {
			return models.ErrModificationDecided
		}

		brfq, err = tx.GetBrfq(ctx, mod.BrfqId)
		if err != nil {
			return notFound(err, models.ErrNoBrfq)
		}

		if err = applyFields(&brfq, mod.Summary.Fields); err != nil {
			return err
		}
		items := brfq.Items
		brfq, err = tx.UpdateBrfq(ctx, brfq)
		if err != nil {
			return err
		}
		brfq.Items = items

		if mod.Summary.Items != nil {
			brfq.Items, err = tx.ReplaceBrfqItems(ctx, brfq.Id, *mod.Summary.Items)
			if err != nil {
				return err
			}
		}

		decided, ok, err := tx.DecideModification(ctx, id, models.ModificationApproved, actor.Username, "", s.now())
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrModificationDecided
		}
		mod = decided
		return nil
	})
	if err != nil {
		return mod, fmt.Errorf("service.Service.ApproveModification: %w", err)
	}

	s.log.WithFields(logrus.Fields{"brfq": brfq.Id, "modification": mod.Id}).Info("Modification applied")
	s.notifySuppliers(ctx, brfq, mod.Summary)

	return mod, nil
}

func (s *Service) RejectModification(ctx context.Context, actor models.Actor, id, reason string) (models.ModificationRequest, error) {
	if !actor.IsAdmin {
		return models.ModificationRequest{}, fmt.Errorf("service.Service.RejectModification: %w", models.ErrForbidden)
	}

	mod, ok, err := s.store.DecideModification(ctx, id, models.ModificationRejected, actor.Username, reason, s.now())
	if err != nil {
		return mod, fmt.Errorf("service.Service.RejectModification: %w", err)
	}
	if ok {
		return mod, nil
	}

	// distinguish a missing modification from a decided one
	if _, err = s.store.GetModification(ctx, id); err != nil {
		return mod, fmt.Errorf("service.Service.RejectModification: %w", notFound(err, models.ErrNoModification))
	}
	return mod, fmt.Errorf("service.Service.RejectModification: %w", models.ErrModificationDecided)
}

// applyFields copies the allowed changed fields onto the BRFQ. Unknown fields are ignored.
func applyFields(brfq *models.Brfq, fields map[string]models.FieldChange) error {
	for field, change := range fields {
		switch field {
		case "title":
			if strings.TrimSpace(change.To) == "" {
				return validation("title cannot be empty")
			}
			brfq.Title = change.To
		case "description":
			brfq.Description = change.To
		case "currency":
			brfq.Currency = change.To
		case "terms":
			brfq.Terms = change.To
		case "deadline":
			deadline, err := parseDeadline(change.To)
			if err != nil {
				return err
			}
			brfq.Deadline = deadline
		}
	}
	return nil
}

func parseDeadline(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, validation("invalid deadline '%s'", value)
}

func validateItems(items []models.BrfqItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return validation("item %d has no name", i+1)
		}
		if item.Quantity < 0 {
			return validation("item '%s' has a negative quantity", item.Name)
		}
	}
	return nil
}

// supplierEmails resolves the BRFQ supplier list. Entries with an '@' are addresses,
// anything else is a supplier id. Unknown ids are skipped.
func (s *Service) supplierEmails(ctx context.Context, brfq models.Brfq) []string {
	seen := make(map[string]bool)
	emails := make([]string, 0, len(brfq.Suppliers))

	for _, entry := range brfq.Suppliers {
		entry = strings.TrimSpace(entry)
		email := entry

		if !strings.Contains(entry, "@") {
			supplier, ok, err := s.store.GetSupplier(ctx, entry)
			if err != nil {
				s.log.WithField("brfq", brfq.Id).Warnf("Could not look up supplier %s: %s", entry, err)
				continue
			}
			if !ok {
				s.log.WithField("brfq", brfq.Id).Warnf("Unknown supplier %s, skipping notification", entry)
				continue
			}
			email = supplier.Email
		}

		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		emails = append(emails, email)
	}
	return emails
}

func (s *Service) notifySuppliers(ctx context.Context, brfq models.Brfq, summary models.ChangeSummary) {
	log := s.log.WithField("brfq", brfq.Id)

	emails := s.supplierEmails(ctx, brfq)
	if len(emails) == 0 {
		return
	}

	changes := make([]notify.Change, 0, len(summary.Fields))
	for field, change := range summary.Fields {
		changes = append(changes, notify.Change{Field: field, From: change.From, To: change.To})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })

	subject, body, err := notify.ModificationApplied(notify.ModificationMail{
		Title:         brfq.Title,
		Changes:       changes,
		ItemsReplaced: summary.Items != nil,
	})
	if err != nil {
		log.Errorf("Could not render modification email: %s", err)
		return
	}

	msgs := make([]notify.Message, len(emails))
	for i, email := range emails {
		msgs[i] = notify.Message{To: email, Subject: subject, Body: body}
	}

	failures := notify.SendAll(ctx, s.sender, msgs, s.fanOut)
	for _, f := range failures {
		metrics.RecordNotification(f.Err)
		log.WithField("to", f.To).Warnf("Failed to notify supplier: %s", f.Err)
	}
	for i := 0; i < len(msgs)-len(failures); i++ {
		metrics.RecordNotification(nil)
	}
	log.Infof("Notified %d of %d suppliers", len(msgs)-len(failures), len(msgs))
}
