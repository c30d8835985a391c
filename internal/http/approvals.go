package http

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/approval"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
)

type approvalView struct {
	*domain.ApprovalRequest
	Summary   string `json:"summary"`
	Violation string `json:"violation"`
}

func viewApproval(req *domain.ApprovalRequest) approvalView {
	return approvalView{
		ApprovalRequest: req,
		Summary:         approval.FormatTravelData(req.TravelData),
		Violation:       approval.ViolationSummary(req.Verdict),
	}
}

// ListApprovals requires org_id. user_id, approver_id and status narrow the result.
func (h *Handlers) ListApprovals(w http.ResponseWriter, r *http.Request) {
	var f domain.ApprovalFilter
	orgID, err := uuidQuery(r, "org_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if orgID != nil {
		f.OrgID = *orgID
	}
	if f.UserID, err = uuidQuery(r, "user_id"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.ApproverID, err = uuidQuery(r, "approver_id"); err != nil {
		h.fail(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ApprovalStatus(raw)
		f.Status = &status
	}

	reqs, err := h.svc.Approvals.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]approvalView, 0, len(reqs))
	for i := range reqs {
		views = append(views, viewApproval(&reqs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"approvals": views})
}

func (h *Handlers) GetApproval(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.svc.Approvals.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewApproval(req))
}

type resolveRequest struct {
	Action     domain.ApprovalAction `json:"action"`
	ApproverID uuid.UUID             `json:"approver_id"`
	Reason     string                `json:"reason,omitempty"`
}

type resolveResponse struct {
	Approval approvalView    `json:"approval"`
	Booking  *domain.Booking `json:"booking,omitempty"`
}

func (h *Handlers) ResolveApproval(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ApproverID == uuid.Nil {
		h.fail(w, r, errors.Wrap(domain.ErrInvalidInput, "approver_id is required"))
		return
	}
	res, err := h.svc.Bookings.ResolveApproval(r.Context(), id, req.Action, req.ApproverID, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Approval: viewApproval(res.Approval), Booking: res.Booking})
}
