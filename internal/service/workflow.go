package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"procurement/internal/metrics"
	"procurement/internal/models"
	"procurement/internal/token"
)

const (
	MessageAdvanced = "step approved, next step activated"
	MessageApproved = "request approved"
	MessageRejected = "request rejected"
)

type SubmitResult struct {
	Request models.Request `json:"request"`
	// Step is the activated first step, nil when the request was approved without a workflow.
	Step         *models.ApprovalStep `json:"step,omitempty"`
	AutoApproved bool                 `json:"autoApproved"`
}

type DecisionResult struct {
	Message       string               `json:"message"`
	Step          models.ApprovalStep  `json:"step"`
	NextStep      *models.ApprovalStep `json:"nextStep,omitempty"`
	RequestStatus models.RequestStatus `json:"requestStatus"`
}

// TokenTarget is what an emailed link points at.
type TokenTarget struct {
	Request   models.Request      `json:"request"`
	Step      models.ApprovalStep `json:"step"`
	ExpiresAt *time.Time          `json:"expiresAt,omitempty"`
}

//// Submit

// Submit starts the approval workflow of a request. Steps are copied from the request's
// template on first submission; later submissions restart the existing steps from the first one.
func (s *Service) Submit(ctx context.Context, requestId string) (SubmitResult, error) {
	var (
		result SubmitResult
		first  notice
	)

	err := s.store.WithinTx(ctx, func(tx Store) error {
		request, err := tx.GetRequest(ctx, requestId)
		if err != nil {
			return notFound(err, models.ErrNoRequest)
		}

		approval, exists, err := tx.GetApproval(ctx, requestId)
		if err != nil {
			return err
		}

		var steps []models.ApprovalStep
		if exists {
			steps, err = tx.GetSteps(ctx, approval.Id)
			if err != nil {
				return err
			}
		}

		now := s.now()
		var step models.ApprovalStep

		if len(steps) == 0 {
			tmpl, found, err := s.templateFor(ctx, tx, request)
			if err != nil {
				return err
			}

			if !found || len(tmpl.Steps) == 0 {
				err = tx.SetRequestStatus(ctx, request.Id, models.RequestApproved)
				if err != nil {
					return err
				}
				request.Status = models.RequestApproved
				result = SubmitResult{Request: request, AutoApproved: true}
				return nil
			}

			if !exists {
				approval, err = tx.AddApproval(ctx, request.Id)
				if err != nil {
					return err
				}
			}

			steps = make([]models.ApprovalStep, len(tmpl.Steps))
			for i, st := range sortedSteps(tmpl.Steps) {
				steps[i] = st.Instantiate(approval.Id)
			}
			steps[0].Status = models.StepPending
			steps[0].ActivatedAt = &now

			created, err := tx.AddSteps(ctx, steps)
			if err != nil {
				return err
			}
			step = created[0]
		} else {
			err = tx.ResetSteps(ctx, approval.Id)
			if err != nil {
				return err
			}
			step, err = tx.ActivateStep(ctx, steps[0].Id, now)
			if err != nil {
				return err
			}
		}

		err = tx.SetRequestStatus(ctx, request.Id, models.RequestPendingApproval)
		if err != nil {
			return err
		}
		request.Status = models.RequestPendingApproval

		first, err = s.prepareNotice(ctx, tx, request, step, "")
		if err != nil {
			return err
		}

		result = SubmitResult{Request: request, Step: &step}
		return nil
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("service.Service.Submit: %w", err)
	}

	log := s.log.WithField("request", requestId)
	if result.AutoApproved {
		metrics.RecordTransition(metrics.TransitionAutoApproved)
		log.Info("Request approved without workflow, no template steps found")
		return result, nil
	}

	metrics.RecordTransition(metrics.TransitionSubmitted)
	log.WithField("step", result.Step.Id).Info("Request submitted for approval")
	s.deliver(ctx, first)

	return result, nil
}

// templateFor picks the request's own template, falling back to the default one.
func (s *Service) templateFor(ctx context.Context, store Store, request models.Request) (models.WorkflowTemplate, bool, error) {
	if request.TemplateId != nil && *request.TemplateId != "" {
		tmpl, err := store.GetTemplate(ctx, *request.TemplateId)
		if err == nil {
			return tmpl, true, nil
		}
		if !errors.Is(err, models.ErrNoTemplate) && !isNoRows(err) {
			return tmpl, false, err
		}
		s.log.WithField("request", request.Id).Warnf("Template %s not found, using default template", *request.TemplateId)
	}

	return store.GetDefaultTemplate(ctx)
}

//// Decide

// DecideByToken records a decision coming from an emailed link.
func (s *Service) DecideByToken(ctx context.Context, tok string, decision models.Decision, comments string) (DecisionResult, error) {
	if !models.ValidDecision(decision) {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideByToken: %w", validation("decision must be %s or %s", models.StepApproved, models.StepRejected))
	}

	claims, step, err := s.tokenStep(ctx, tok)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideByToken: %w", err)
	}

	if step.Status != models.StepPending {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideByToken: %w", models.ErrStepDecided)
	}

	ttl := time.Duration(0)
	if !claims.ExpiresAt.IsZero() {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	fresh, err := s.guard.Use(ctx, claims.Id, ttl)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideByToken: %w", err)
	}
	if !fresh {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideByToken: %w: token already used", models.ErrInvalidToken)
	}

	decidedBy := step.ApproverName
	if decidedBy == "" {
		decidedBy = step.Role
	}

	result, err := s.decide(ctx, step, decision, decidedBy, comments)
	if err != nil {
		// The step is still pending unless another decision won, so the link stays usable.
		if !errors.Is(err, models.ErrStepDecided) {
			if rerr := s.guard.Release(ctx, claims.Id); rerr != nil {
				s.log.WithField("step", step.Id).Warnf("Failed to release approval token: %s", rerr)
			}
		}
		return result, fmt.Errorf("service.Service.DecideByToken: %w", err)
	}
	return result, nil
}

// DecideAsApprover records a decision made from the dashboard by an authenticated user.
func (s *Service) DecideAsApprover(ctx context.Context, actor models.Actor, stepId string, decision models.Decision, comments string) (DecisionResult, error) {
	if !models.ValidDecision(decision) {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideAsApprover: %w", validation("decision must be %s or %s", models.StepApproved, models.StepRejected))
	}

	approver, ok, err := s.actorApprover(ctx, actor)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideAsApprover: %w", err)
	}
	if !ok {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideAsApprover: %w: %s is not an approver", models.ErrForbidden, actor.Username)
	}

	step, err := s.store.GetRequestStep(ctx, stepId)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideAsApprover: %w", notFound(err, models.ErrNoStep))
	}

	if !assignedTo(step.ApprovalStep, approver) {
		return DecisionResult{}, fmt.Errorf("service.Service.DecideAsApprover: %w: step is assigned to '%s'", models.ErrForbidden, step.ApproverName)
	}

	result, err := s.decide(ctx, step, decision, approver.Name, comments)
	if err != nil {
		return result, fmt.Errorf("service.Service.DecideAsApprover: %w", err)
	}
	return result, nil
}

func (s *Service) decide(ctx context.Context, step models.RequestStep, decision models.Decision, decidedBy, comments string) (DecisionResult, error) {
	var (
		result DecisionResult
		next   *notice
	)

	err := s.store.WithinTx(ctx, func(tx Store) error {
		now := s.now()

		decided, ok, err := tx.DecideStep(ctx, step.Id, decision, decidedBy, comments, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrStepDecided
		}
		result.Step = decided

		if decision == models.StepRejected {
			result.Message = MessageRejected
			result.RequestStatus = models.RequestRejected
			return tx.SetRequestStatus(ctx, step.RequestId, models.RequestRejected)
		}

		following, found, err := tx.NextStep(ctx, decided.ApprovalId, decided.Order)
		if err != nil {
			return err
		}
		if !found {
			result.Message = MessageApproved
			result.RequestStatus = models.RequestApproved
			return tx.SetRequestStatus(ctx, step.RequestId, models.RequestApproved)
		}

		activated, err := tx.ActivateStep(ctx, following.Id, now)
		if err != nil {
			return err
		}

		request, err := tx.GetRequest(ctx, step.RequestId)
		if err != nil {
			return notFound(err, models.ErrNoRequest)
		}

		n, err := s.prepareNotice(ctx, tx, request, activated, comments)
		if err != nil {
			return err
		}
		next = &n

		result.Message = MessageAdvanced
		result.NextStep = &activated
		result.RequestStatus = request.Status
		return nil
	})
	if err != nil {
		return DecisionResult{}, fmt.Errorf("service.Service.decide: %w", err)
	}

	s.unschedule(ctx, step.Id)

	log := s.log.WithFields(logrus.Fields{"request": step.RequestId, "step": step.Id, "by": decidedBy})
	switch {
	case next != nil:
		metrics.RecordTransition(metrics.TransitionAdvanced)
		log.Info(MessageAdvanced)
		s.deliver(ctx, *next)
	case decision == models.StepRejected:
		metrics.RecordTransition(metrics.TransitionRejected)
		log.Info(MessageRejected)
	default:
		metrics.RecordTransition(metrics.TransitionApproved)
		log.Info(MessageApproved)
	}

	return result, nil
}

//// Queries

// InspectToken resolves the request and step a link token points at without acting on it.
func (s *Service) InspectToken(ctx context.Context, tok string) (TokenTarget, error) {
	claims, step, err := s.tokenStep(ctx, tok)
	if err != nil {
		return TokenTarget{}, fmt.Errorf("service.Service.InspectToken: %w", err)
	}

	request, err := s.store.GetRequest(ctx, step.RequestId)
	if err != nil {
		return TokenTarget{}, fmt.Errorf("service.Service.InspectToken: %w", notFound(err, models.ErrNoRequest))
	}

	target := TokenTarget{Request: request, Step: step.ApprovalStep}
	if !claims.ExpiresAt.IsZero() {
		exp := claims.ExpiresAt
		target.ExpiresAt = &exp
	}
	return target, nil
}

func (s *Service) GetRequestApproval(ctx context.Context, requestId string) (models.RequestApproval, error) {
	request, err := s.store.GetRequest(ctx, requestId)
	if err != nil {
		return models.RequestApproval{}, fmt.Errorf("service.Service.GetRequestApproval: %w", notFound(err, models.ErrNoRequest))
	}

	view := models.RequestApproval{Request: request, Steps: []models.ApprovalStep{}}

	approval, ok, err := s.store.GetApproval(ctx, requestId)
	if err != nil {
		return view, fmt.Errorf("service.Service.GetRequestApproval: %w", err)
	}
	if !ok {
		return view, nil
	}

	view.Steps, err = s.store.GetSteps(ctx, approval.Id)
	if err != nil {
		return view, fmt.Errorf("service.Service.GetRequestApproval: %w", err)
	}
	return view, nil
}

// PendingForActor lists the steps waiting for the dashboard user's decision.
func (s *Service) PendingForActor(ctx context.Context, actor models.Actor) ([]models.RequestStep, error) {
	approver, ok, err := s.actorApprover(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("service.Service.PendingForActor: %w", err)
	}
	if !ok {
		return []models.RequestStep{}, nil
	}

	steps, err := s.store.PendingStepsFor(ctx, approver.Name, approver.Role)
	if err != nil {
		return nil, fmt.Errorf("service.Service.PendingForActor: %w", err)
	}
	return steps, nil
}

//// Service

// tokenStep decodes a link token and loads the step it refers to.
func (s *Service) tokenStep(ctx context.Context, tok string) (token.Claims, models.RequestStep, error) {
	if tok == "" {
		return token.Claims{}, models.RequestStep{}, fmt.Errorf("%w: empty token", models.ErrInvalidToken)
	}

	claims, err := s.codec.Decode(tok)
	if err != nil {
		return claims, models.RequestStep{}, err
	}

	step, err := s.store.GetRequestStep(ctx, claims.StepId)
	if err != nil {
		return claims, step, notFound(err, models.ErrNoStep)
	}

	if step.RequestId != claims.RequestId {
		return claims, step, fmt.Errorf("%w: step does not belong to request", models.ErrInvalidToken)
	}
	return claims, step, nil
}

// actorApprover maps a dashboard user to an approver, by linked user id and then by name.
func (s *Service) actorApprover(ctx context.Context, actor models.Actor) (models.Approver, bool, error) {
	if actor.UserId != "" {
		approver, ok, err := s.store.ApproverByUserId(ctx, actor.UserId)
		if err != nil || ok {
			return approver, ok, err
		}
	}
	if actor.Username == "" {
		return models.Approver{}, false, nil
	}
	return s.store.ApproverByName(ctx, actor.Username)
}

// assignedTo reports whether the approver may act on the step. Steps without a named
// approver belong to the holders of their role.
func assignedTo(step models.ApprovalStep, approver models.Approver) bool {
	if step.ApproverName != "" {
		return step.ApproverName == approver.Name
	}
	return step.Role != "" && step.Role == approver.Role
}
