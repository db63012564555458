package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/sirupsen/logrus"

	"procurement/internal/metrics"
	"procurement/internal/models"
	"procurement/internal/notify"
	"procurement/internal/token"
)

// Escalate reminds approvers of active steps past their SLA. Every overdue step is
// reminded once per activation. It returns the number of reminders sent.
func (s *Service) Escalate(ctx context.Context) (int, error) {
	now := s.now()

	steps, err := s.overdueSteps(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("service.Service.Escalate: %w", err)
	}

	sent := 0
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return sent, fmt.Errorf("service.Service.Escalate: %w", err)
		}

		ok, err := s.escalateStep(ctx, step, now)
		if err != nil {
			s.log.WithFields(logrus.Fields{"request": step.RequestId, "step": step.Id}).Warnf("Escalation failed: %s", err)
			continue
		}
		if ok {
			sent++
		}
	}

	if sent > 0 {
		s.log.Infof("Sent %d SLA reminders", sent)
	}
	return sent, nil
}

// overdueSteps reads due steps from the SLA queue when there is one, dropping entries
// that are no longer overdue, and scans the store otherwise.
func (s *Service) overdueSteps(ctx context.Context, now time.Time) ([]models.RequestStep, error) {
	if s.queue == nil {
		return s.store.OverdueSteps(ctx, now)
	}

	ids, err := s.queue.Due(ctx, now)
	if err != nil {
		return nil, err
	}

	var (
		steps []models.RequestStep
		stale []string
	)
	for _, id := range ids {
		step, err := s.store.GetRequestStep(ctx, id)
		if isNoRows(err) {
			stale = append(stale, id)
			continue
		} else if err != nil {
			return nil, err
		}

		deadline, ok := step.SlaDeadline()
		if step.Status != models.StepPending || step.EscalatedAt != nil || !ok || deadline.After(now) {
			stale = append(stale, id)
			continue
		}
		steps = append(steps, step)
	}

	s.unschedule(ctx, stale...)
	return steps, nil
}

func (s *Service) escalateStep(ctx context.Context, step models.RequestStep, now time.Time) (bool, error) {
	approver, err := s.resolveApprover(ctx, s.store, step.ApprovalStep)
	if err != nil {
		return false, err
	}

	tok, err := s.codec.Encode(token.Reference{RequestId: step.RequestId, StepId: step.Id})
	if err != nil {
		return false, err
	}
	approveURL, rejectURL := s.links(tok)

	deadline, _ := step.SlaDeadline()
	overdue := durafmt.Parse(now.Sub(deadline).Truncate(time.Minute)).LimitFirstN(2).String()

	subject, body, err := notify.ApprovalReminder(notify.ApprovalMail{
		ApproverName: approver.Name,
		RequestTitle: step.RequestTitle,
		Role:         step.Role,
		Order:        step.Order,
		ApproveURL:   approveURL,
		RejectURL:    rejectURL,
		Overdue:      overdue,
	})
	if err != nil {
		return false, err
	}

	// Stamp first so concurrent sweeps never remind twice. A failed send drops the
	// stamp again and the next sweep retries.
	ok, err := s.store.MarkStepEscalated(ctx, step.Id, now)
	if err != nil {
		return false, err
	}
	s.unschedule(ctx, step.Id)
	if !ok {
		return false, nil
	}

	err = s.sender.Send(ctx, approver.Email, subject, body)
	metrics.RecordNotification(err)
	if err != nil {
		if cerr := s.store.ClearStepEscalation(ctx, step.Id); cerr != nil {
			s.log.WithField("step", step.Id).Warnf("Failed to clear escalation stamp: %s", cerr)
		} else {
			s.schedule(ctx, step.ApprovalStep)
		}
		return false, fmt.Errorf("reminder to %s: %w", approver.Email, err)
	}

	metrics.RecordEscalation()
	s.log.WithFields(logrus.Fields{"request": step.RequestId, "step": step.Id, "overdue": overdue}).Info("SLA reminder sent")
	return true, nil
}

// RunEscalator sweeps overdue steps every interval until the context is done.
func (s *Service) RunEscalator(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Escalate(ctx); err != nil && ctx.Err() == nil {
				s.log.Errorf("SLA escalation sweep failed: %s", err)
			}
		}
	}
}
