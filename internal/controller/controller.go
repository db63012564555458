package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"procurement/internal/logging"
	"procurement/internal/models"
	"procurement/internal/service"
)

type Service interface {
	CreateRequest(ctx context.Context, request models.Request) (models.Request, error)
	GetRequest(ctx context.Context, id string) (models.Request, error)
	GetRequests(ctx context.Context, limit, offset int, status models.RequestStatus) ([]models.Request, error)
	GetRequestApproval(ctx context.Context, requestId string) (models.RequestApproval, error)

	Submit(ctx context.Context, requestId string) (service.SubmitResult, error)
	InspectToken(ctx context.Context, tok string) (service.TokenTarget, error)
	DecideByToken(ctx context.Context, tok string, decision models.Decision, comments string) (service.DecisionResult, error)
	DecideAsApprover(ctx context.Context, actor models.Actor, stepId string, decision models.Decision, comments string) (service.DecisionResult, error)
	PendingForActor(ctx context.Context, actor models.Actor) ([]models.RequestStep, error)

	GetApprovers(ctx context.Context) ([]models.Approver, error)
	GetApprover(ctx context.Context, id string) (models.Approver, error)
	CreateApprover(ctx context.Context, approver models.Approver) (models.Approver, error)
	UpdateApprover(ctx context.Context, approver models.Approver) (models.Approver, error)
	DeleteApprover(ctx context.Context, id string) error

	GetDefaultTemplate(ctx context.Context) (models.WorkflowTemplate, error)
	GetTemplates(ctx context.Context) ([]models.WorkflowTemplate, error)
	CreateTemplate(ctx context.Context, tmpl models.WorkflowTemplate) (models.WorkflowTemplate, error)
	ReplaceDefaultTemplateSteps(ctx context.Context, steps []models.StepTemplate) (models.WorkflowTemplate, error)
	SetDefaultTemplate(ctx context.Context, templateId string) (models.WorkflowTemplate, error)

	GetRules(ctx context.Context, onlyActive bool) ([]models.ApprovalRule, error)
	GetRule(ctx context.Context, id string) (models.ApprovalRule, error)
	CreateRule(ctx context.Context, rule models.ApprovalRule) (models.ApprovalRule, error)
	UpdateRule(ctx context.Context, rule models.ApprovalRule) (models.ApprovalRule, error)
	DeleteRule(ctx context.Context, id string) error

	CreateSupplier(ctx context.Context, supplier models.Supplier) (models.Supplier, error)
	GetSupplier(ctx context.Context, id string) (models.Supplier, error)

	CreateBrfq(ctx context.Context, brfq models.Brfq) (models.Brfq, error)
	GetBrfq(ctx context.Context, id string) (models.Brfq, error)
	ProposeModification(ctx context.Context, brfqId string, summary models.ChangeSummary, reason, requestedBy string) (models.ModificationRequest, error)
	GetModification(ctx context.Context, id string) (models.ModificationRequest, error)
	ApproveModification(ctx context.Context, actor models.Actor, id string) (models.ModificationRequest, error)
	RejectModification(ctx context.Context, actor models.Actor, id, reason string) (models.ModificationRequest, error)
}

// Authenticator resolves the Authorization header into the acting user.
type Authenticator interface {
	Authenticate(header string) (models.Actor, error)
}

type Controller struct {
	service Service
	auth    Authenticator
	log     logrus.FieldLogger
}

func NewController(service Service, auth Authenticator) *Controller {
	return &Controller{
		service: service,
		auth:    auth,
		log:     logging.GetLogger(),
	}
}

// GET /api/ping
func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

//// Requests

// POST /api/requests
func (c *Controller) CreateRequest(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseNewRequestReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	requester := req.Requester
	if actor, ok := c.optionalActor(r); ok && requester == "" {
		requester = actor.Username
	}

	request, err := c.service.CreateRequest(r.Context(), models.Request{
		Title:       req.Title,
		Description: req.Description,
		Requester:   requester,
		TemplateId:  req.TemplateId,
	})
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, request)
}

// GET /api/requests
func (c *Controller) GetRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := c.getQueryInt(query, "limit")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return
	}

	offset, err := c.getQueryInt(query, "offset")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'offset' query parameter: "+query.Get("offset"))
		return
	}

	status := models.RequestStatus(query.Get("status"))
	if status != "" && !models.ValidRequestStatus(status) {
		c.errorResponse(w, http.StatusBadRequest, "invalid request status supplied: "+string(status))
		return
	}

	requests, err := c.service.GetRequests(r.Context(), limit, offset, status)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, requests)
}

// GET /api/requests/{requestId}
func (c *Controller) GetRequest(w http.ResponseWriter, r *http.Request) {
	request, err := c.service.GetRequest(r.Context(), r.PathValue("requestId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, request)
}

// GET /api/requests/{requestId}/approval
func (c *Controller) GetRequestApproval(w http.ResponseWriter, r *http.Request) {
	approval, err := c.service.GetRequestApproval(r.Context(), r.PathValue("requestId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, approval)
}

// POST /api/requests/{requestId}/submit
func (c *Controller) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	result, err := c.service.Submit(r.Context(), r.PathValue("requestId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, result)
}

//// Approval

// GET /api/approval/verify
func (c *Controller) InspectToken(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	tok := query.Get("token")
	if len(tok) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty token supplied")
		return
	}

	action := "approve"
	if a := query.Get("action"); a != "" {
		decision, ok := models.ParseAction(a)
		if !ok {
			c.errorResponse(w, http.StatusBadRequest, "invalid action supplied: "+a)
			return
		}
		if decision == models.StepRejected {
			action = "reject"
		}
	}

	target, err := c.service.InspectToken(r.Context(), tok)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, TokenTargetResp{
		Request:   target.Request,
		Step:      target.Step,
		ExpiresAt: target.ExpiresAt,
		Action:    action,
	})
}

// POST /api/approval/verify
func (c *Controller) VerifyDecision(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseVerifyReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	if req.Token == "" {
		req.Token = query.Get("token")
	}
	if req.Token == "" {
		c.errorResponse(w, http.StatusBadRequest, "empty token supplied")
		return
	}

	verb := req.Decision
	if verb == "" {
		verb = query.Get("action")
	}
	decision, ok := models.ParseAction(verb)
	if !ok {
		c.errorResponse(w, http.StatusBadRequest, "invalid decision supplied: '"+verb+"', should be one of: approve, reject")
		return
	}

	result, err := c.service.DecideByToken(r.Context(), req.Token, decision, req.Comments)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, result)
}

// POST /api/approval/action
func (c *Controller) ApprovalAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.requireActor(w, r)
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseActionReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	decision, _ := models.ParseAction(req.Action)

	result, err := c.service.DecideAsApprover(r.Context(), actor, req.StepId, decision, req.Comments)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, result)
}

// GET /api/approval/pending
func (c *Controller) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.requireActor(w, r)
	if !ok {
		return
	}

	steps, err := c.service.PendingForActor(r.Context(), actor)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, steps)
}

//// Service

type ErrorResponse struct {
	Reason string `json:"reason"`
}

// requireActor writes a 401 response and reports false when the caller is not authenticated.
func (c *Controller) requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	if c.auth == nil {
		c.serviceErrorResponse(w, models.ErrUnauthorized)
		return models.Actor{}, false
	}

	actor, err := c.auth.Authenticate(r.Header.Get("Authorization"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return models.Actor{}, false
	}
	return actor, true
}

func (c *Controller) optionalActor(r *http.Request) (models.Actor, bool) {
	header := r.Header.Get("Authorization")
	if c.auth == nil || header == "" {
		return models.Actor{}, false
	}

	actor, err := c.auth.Authenticate(header)
	if err != nil {
		return models.Actor{}, false
	}
	return actor, true
}

func (c *Controller) getQueryInt(query url.Values, key string) (int, error) {
	strs, ok := query[key]
	if ok && len(strs) > 0 {
		return strconv.Atoi(strs[0])
	}
	return 0, nil
}

func (c *Controller) errorResponse(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	data, err := json.Marshal(ErrorResponse{Reason: text})
	if err != nil {
		c.log.Errorf("controller.Controller.errorResponse: %s", err)
		return
	}

	_, err = w.Write(data)
	if err != nil {
		c.log.Errorf("controller.Controller.errorResponse: %s", err)
		return
	}
}

func (c *Controller) serviceErrorResponse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		c.errorResponse(w, http.StatusUnauthorized, "missing or invalid credentials")
	case errors.Is(err, models.ErrForbidden):
		c.errorResponse(w, http.StatusForbidden, "user have no permission for requested action")
	case errors.Is(err, models.ErrNoRequest),
		errors.Is(err, models.ErrNoStep),
		errors.Is(err, models.ErrNoApprover),
		errors.Is(err, models.ErrNoTemplate),
		errors.Is(err, models.ErrNoRule),
		errors.Is(err, models.ErrNoBrfq),
		errors.Is(err, models.ErrNoSupplier),
		errors.Is(err, models.ErrNoModification):
		c.errorResponse(w, http.StatusNotFound, notFoundReason(err))
	case errors.Is(err, models.ErrStepDecided):
		c.errorResponse(w, http.StatusBadRequest, models.ErrStepDecided.Error())
	case errors.Is(err, models.ErrModificationDecided):
		c.errorResponse(w, http.StatusBadRequest, models.ErrModificationDecided.Error())
	case errors.Is(err, models.ErrInvalidToken):
		c.errorResponse(w, http.StatusBadRequest, "invalid or expired approval token")
	case errors.Is(err, models.ErrValidation):
		c.errorResponse(w, http.StatusBadRequest, reasonFrom(err, models.ErrValidation))
	case errors.Is(err, models.ErrApproverUnresolved):
		c.errorResponse(w, http.StatusUnprocessableEntity, reasonFrom(err, models.ErrApproverUnresolved))
	default:
		c.log.WithError(err).Error("controller: unhandled service error")
		c.errorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

func notFoundReason(err error) string {
	for _, sentinel := range []error{
		models.ErrNoRequest, models.ErrNoStep, models.ErrNoApprover, models.ErrNoTemplate,
		models.ErrNoRule, models.ErrNoBrfq, models.ErrNoSupplier, models.ErrNoModification,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "not found"
}

// reasonFrom trims the call chain prefix, keeping the sentinel text and its detail.
func reasonFrom(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i >= 0 {
		return msg[i:]
	}
	return sentinel.Error()
}

func (c *Controller) marshalResponse(w http.ResponseWriter, data any) {
	d, err := json.Marshal(data)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not marshal response data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(d)
	if err != nil {
		c.log.Errorf("controller.Controller.marshalResponse: %s", err)
		return
	}
}

func (c *Controller) readBody(src io.ReadCloser) ([]byte, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	src.Close()
	return data, nil
}
