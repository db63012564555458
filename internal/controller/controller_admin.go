package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
)

//// Approvers

// GET /api/administration/approvers
func (c *Controller) GetApprovers(w http.ResponseWriter, r *http.Request) {
	approvers, err := c.service.GetApprovers(r.Context())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, approvers)
}

// POST /api/administration/approvers
func (c *Controller) CreateApprover(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseApproverReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	approver, err := c.service.CreateApprover(r.Context(), *req)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, approver)
}

// GET /api/administration/approvers/{approverId}
func (c *Controller) GetApprover(w http.ResponseWriter, r *http.Request) {
	approver, err := c.service.GetApprover(r.Context(), r.PathValue("approverId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, approver)
}

// PUT /api/administration/approvers/{approverId}
func (c *Controller) UpdateApprover(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseApproverReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Id = r.PathValue("approverId")

	approver, err := c.service.UpdateApprover(r.Context(), *req)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, approver)
}

// DELETE /api/administration/approvers/{approverId}
func (c *Controller) DeleteApprover(w http.ResponseWriter, r *http.Request) {
	err := c.service.DeleteApprover(r.Context(), r.PathValue("approverId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

//// Workflow templates

// GET /api/administration/workflow-template
func (c *Controller) GetWorkflowTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := c.service.GetDefaultTemplate(r.Context())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tmpl)
}

// PUT /api/administration/workflow-template
func (c *Controller) PutWorkflowTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseTemplateStepsReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpl, err := c.service.ReplaceDefaultTemplateSteps(r.Context(), req.Steps)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tmpl)
}

// GET /api/administration/workflow-templates
func (c *Controller) GetWorkflowTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := c.service.GetTemplates(r.Context())
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, templates)
}

// POST /api/administration/workflow-templates
func (c *Controller) CreateWorkflowTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseTemplateReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpl, err := c.service.CreateTemplate(r.Context(), *req)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tmpl)
}

// PUT /api/administration/workflow-templates/{templateId}/default
func (c *Controller) SetDefaultWorkflowTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := c.service.SetDefaultTemplate(r.Context(), r.PathValue("templateId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, tmpl)
}

//// Approval rules

// GET /api/administration/approval-rules
func (c *Controller) GetRules(w http.ResponseWriter, r *http.Request) {
	var onlyActive bool

	if v := r.URL.Query().Get("active"); v != "" {
		var err error
		onlyActive, err = strconv.ParseBool(v)
		if err != nil {
			c.errorResponse(w, http.StatusBadRequest, "invalid value of 'active' query parameter: "+v)
			return
		}
	}

	rules, err := c.service.GetRules(r.Context(), onlyActive)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, rules)
}

// POST /api/administration/approval-rules
func (c *Controller) CreateRule(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseRuleReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := c.service.CreateRule(r.Context(), *req)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, rule)
}

// GET /api/administration/approval-rules/{ruleId}
func (c *Controller) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := c.service.GetRule(r.Context(), r.PathValue("ruleId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, rule)
}

// PUT /api/administration/approval-rules/{ruleId}
func (c *Controller) UpdateRule(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseRuleReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Id = r.PathValue("ruleId")

	rule, err := c.service.UpdateRule(r.Context(), *req)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, rule)
}

// DELETE /api/administration/approval-rules/{ruleId}
func (c *Controller) DeleteRule(w http.ResponseWriter, r *http.Request) {
	err := c.service.DeleteRule(r.Context(), r.PathValue("ruleId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

//// Suppliers

// POST /api/administration/suppliers
func (c *Controller) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseSupplierReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	supplier, err := c.service.CreateSupplier(r.Context(), *req)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, supplier)
}

// GET /api/administration/suppliers/{supplierId}
func (c *Controller) GetSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := c.service.GetSupplier(r.Context(), r.PathValue("supplierId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, supplier)
}

//// BRFQ

// POST /api/brfqs
func (c *Controller) CreateBrfq(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseBrfqReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	brfq, err := c.service.CreateBrfq(r.Context(), *req)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, brfq)
}

// GET /api/brfqs/{brfqId}
func (c *Controller) GetBrfq(w http.ResponseWriter, r *http.Request) {
	brfq, err := c.service.GetBrfq(r.Context(), r.PathValue("brfqId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, brfq)
}

// POST /api/brfqs/{brfqId}/modifications
func (c *Controller) ProposeModification(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	req, err := ParseModificationReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	requestedBy := req.RequestedBy
	if actor, ok := c.optionalActor(r); ok {
		requestedBy = actor.Username
	}

	mod, err := c.service.ProposeModification(r.Context(), r.PathValue("brfqId"), req.Summary, req.Reason, requestedBy)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, mod)
}

// GET /api/modifications/{modificationId}
func (c *Controller) GetModification(w http.ResponseWriter, r *http.Request) {
	mod, err := c.service.GetModification(r.Context(), r.PathValue("modificationId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, mod)
}

// POST /api/administration/modifications/{modificationId}/approve
func (c *Controller) ApproveModification(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.requireActor(w, r)
	if !ok {
		return
	}

	mod, err := c.service.ApproveModification(r.Context(), actor, r.PathValue("modificationId"))
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, mod)
}

// POST /api/administration/modifications/{modificationId}/reject
func (c *Controller) RejectModification(w http.ResponseWriter, r *http.Request) {
	actor, ok := c.requireActor(w, r)
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	var req RejectReq
	if len(data) > 0 {
		if err = json.Unmarshal(data, &req); err != nil {
			c.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err = checkLengthLimit(req.Reason, "reason", 2000); err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	mod, err := c.service.RejectModification(r.Context(), actor, r.PathValue("modificationId"), req.Reason)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, mod)
}
