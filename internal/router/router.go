package router

import (
	"net/http"

	"procurement/internal/controller"
	"procurement/internal/metrics"
)

func NewRouter(c *controller.Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ping", c.Ping)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/requests", c.CreateRequest)
	mux.HandleFunc("GET /api/requests", c.GetRequests)
	mux.HandleFunc("GET /api/requests/{requestId}", c.GetRequest)
	mux.HandleFunc("GET /api/requests/{requestId}/approval", c.GetRequestApproval)
	mux.HandleFunc("POST /api/requests/{requestId}/submit", c.SubmitRequest)

	mux.HandleFunc("GET /api/approval/verify", c.InspectToken)
	mux.HandleFunc("POST /api/approval/verify", c.VerifyDecision)
	mux.HandleFunc("POST /api/approval/action", c.ApprovalAction)
	mux.HandleFunc("GET /api/approval/pending", c.PendingApprovals)

	mux.HandleFunc("GET /api/administration/approvers", c.GetApprovers)
	mux.HandleFunc("POST /api/administration/approvers", c.CreateApprover)
	mux.HandleFunc("GET /api/administration/approvers/{approverId}", c.GetApprover)
	mux.HandleFunc("PUT /api/administration/approvers/{approverId}", c.UpdateApprover)
	mux.HandleFunc("DELETE /api/administration/approvers/{approverId}", c.DeleteApprover)

	mux.HandleFunc("GET /api/administration/workflow-template", c.GetWorkflowTemplate)
	mux.HandleFunc("PUT /api/administration/workflow-template", c.PutWorkflowTemplate)
	mux.HandleFunc("GET /api/administration/workflow-templates", c.GetWorkflowTemplates)
	mux.HandleFunc("POST /api/administration/workflow-templates", c.CreateWorkflowTemplate)
	mux.HandleFunc("PUT /api/administration/workflow-templates/{templateId}/default", c.SetDefaultWorkflowTemplate)

	mux.HandleFunc("GET /api/administration/approval-rules", c.GetRules)
	mux.HandleFunc("POST /api/administration/approval-rules", c.CreateRule)
	mux.HandleFunc("GET /api/administration/approval-rules/{ruleId}", c.GetRule)
	mux.HandleFunc("PUT /api/administration/approval-rules/{ruleId}", c.UpdateRule)
	mux.HandleFunc("DELETE /api/administration/approval-rules/{ruleId}", c.DeleteRule)

	mux.HandleFunc("POST /api/administration/suppliers", c.CreateSupplier)
	mux.HandleFunc("GET /api/administration/suppliers/{supplierId}", c.GetSupplier)

	mux.HandleFunc("POST /api/brfqs", c.CreateBrfq)
	mux.HandleFunc("GET /api/brfqs/{brfqId}", c.GetBrfq)
	mux.HandleFunc("POST /api/brfqs/{brfqId}/modifications", c.ProposeModification)
	mux.HandleFunc("GET /api/modifications/{modificationId}", c.GetModification)
	mux.HandleFunc("POST /api/administration/modifications/{modificationId}/approve", c.ApproveModification)
	mux.HandleFunc("POST /api/administration/modifications/{modificationId}/reject", c.RejectModification)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("page not found"))
	})

	cors := http.NewServeMux()
	cors.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Accept", "*/*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
		} else {
			mux.ServeHTTP(w, r)
		}
	})

	return metrics.Middleware(cors)
}
