package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"procurement/internal/logging"
	"procurement/internal/metrics"
	"procurement/internal/models"
	"procurement/internal/notify"
	"procurement/internal/token"
)

// SlaQueue tracks when active approval steps become overdue.
type SlaQueue interface {
	Schedule(ctx context.Context, stepId string, deadline time.Time) error
	Due(ctx context.Context, now time.Time) ([]string, error)
	Remove(ctx context.Context, stepIds ...string) error
}

type Options struct {
	Sender notify.Sender
	Codec  token.Codec
	Guard  token.Guard
	// Queue is optional; without it overdue steps are found by scanning the store.
	Queue   SlaQueue
	BaseURL string
	// FanOut limits parallel supplier notifications.
	FanOut int
	Log    logrus.FieldLogger
	Now    func() time.Time
}

type Service struct {
	store   Store
	sender  notify.Sender
	codec   token.Codec
	guard   token.Guard
	queue   SlaQueue
	baseURL string
	fanOut  int
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:   store,
		sender:  opts.Sender,
		codec:   opts.Codec,
		guard:   opts.Guard,
		queue:   opts.Queue,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		fanOut:  opts.FanOut,
		log:     opts.Log,
		now:     opts.Now,
	}

	if s.log == nil {
		s.log = logging.GetLogger()
	}
	if s.sender == nil {
		s.sender = notify.LogSender{Log: s.log}
	}
	if s.codec == nil {
		s.codec = token.Plain{}
	}
	if s.guard == nil {
		s.guard = token.NopGuard{}
	}
	if s.fanOut <= 0 {
		s.fanOut = 8
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

//// Approver resolution and notifications

// notice is an approval email prepared inside a transaction and sent after commit.
type notice struct {
	to      string
	subject string
	body    string
	step    models.ApprovalStep
}

// resolveApprover finds who is responsible for a step: by exact name first, then by role.
func (s *Service) resolveApprover(ctx context.Context, store Store, step models.ApprovalStep) (models.Approver, error) {
	if step.ApproverName != "" {
		approver, ok, err := store.ApproverByName(ctx, step.ApproverName)
		if err != nil {
			return approver, fmt.Errorf("service.Service.resolveApprover: %w", err)
		}
		if ok && approver.Email != "" {
			return approver, nil
		}
	}

	if step.Role != "" {
		approver, ok, err := store.ApproverByRole(ctx, step.Role)
		if err != nil {
			return approver, fmt.Errorf("service.Service.resolveApprover: %w", err)
		}
		if ok && approver.Email != "" {
			return approver, nil
		}
	}

	return models.Approver{}, fmt.Errorf("service.Service.resolveApprover: %w: step %d, role '%s', approver '%s'",
		models.ErrApproverUnresolved, step.Order, step.Role, step.ApproverName)
}

// links builds the approve and reject urls carrying the step token.
func (s *Service) links(tok string) (approveURL, rejectURL string) {
	approveURL = s.baseURL + "/approval/verify?token=" + url.QueryEscape(tok)
	return approveURL, approveURL + "&action=reject"
}

func (s *Service) prepareNotice(ctx context.Context, store Store, request models.Request, step models.ApprovalStep, comments string) (notice, error) {
	approver, err := s.resolveApprover(ctx, store, step)
	if err != nil {
		return notice{}, err
	}

	tok, err := s.codec.Encode(token.Reference{RequestId: request.Id, StepId: step.Id})
	if err != nil {
		return notice{}, fmt.Errorf("service.Service.prepareNotice: %w", err)
	}
	approveURL, rejectURL := s.links(tok)

	name := approver.Name
	if step.ApproverName != "" {
		name = step.ApproverName
	}

	subject, body, err := notify.ApprovalRequested(notify.ApprovalMail{
		ApproverName: name,
		RequestTitle: request.Title,
		Role:         step.Role,
		Order:        step.Order,
		Comments:     comments,
		ApproveURL:   approveURL,
		RejectURL:    rejectURL,
	})
	if err != nil {
		return notice{}, fmt.Errorf("service.Service.prepareNotice: %w", err)
	}

	return notice{to: approver.Email, subject: subject, body: body, step: step}, nil
}

// deliver sends a prepared notice and schedules its SLA. Failures are logged only.
func (s *Service) deliver(ctx context.Context, n notice) {
	log := s.log.WithFields(logrus.Fields{"step": n.step.Id, "to": n.to})

	err := s.sender.Send(ctx, n.to, n.subject, n.body)
	metrics.RecordNotification(err)
	if err != nil {
		log.Warnf("Failed to send approval notification: %s", err)
	} else {
		log.Debug("Approval notification sent")
	}

	s.schedule(ctx, n.step)
}

func (s *Service) schedule(ctx context.Context, step models.ApprovalStep) {
	if s.queue == nil {
		return
	}
	deadline, ok := step.SlaDeadline()
	if !ok {
		return
	}
	if err := s.queue.Schedule(ctx, step.Id, deadline); err != nil {
		s.log.WithField("step", step.Id).Warnf("Failed to schedule SLA deadline: %s", err)
	}
}

func (s *Service) unschedule(ctx context.Context, stepIds ...string) {
	if s.queue == nil || len(stepIds) == 0 {
		return
	}
	if err := s.queue.Remove(ctx, stepIds...); err != nil {
		s.log.Warnf("Failed to remove SLA deadlines: %s", err)
	}
}

//// Service

// notFound converts a missing row into the given sentinel error.
func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
