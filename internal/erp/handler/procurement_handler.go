package handler

import (
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/gin-gonic/gin"
)

type ProcurementHandler struct {
	svc *service.ProcurementService
	r   *responder
}

// --- PO ---

func (h *ProcurementHandler) CreatePO(c *gin.Context) {
	var req service.CreatePORequest
	if !h.r.bind(c, &req) {
		return
	}
	po, err := h.svc.CreatePO(c.Request.Context(), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, po)
}

func (h *ProcurementHandler) GetPO(c *gin.Context) {
	po, err := h.svc.GetPO(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, po)
}

func (h *ProcurementHandler) ListPOs(c *gin.Context) {
	params := repository.POListParams{
		Status:     c.Query("status"),
		SupplierID: c.Query("supplier_id"),
		BranchID:   c.Query("branch_id"),
		Keyword:    c.Query("keyword"),
		Page:       pageParams(c),
	}
	pos, total, err := h.svc.ListPOs(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, pos, total, params.Page)
}

func (h *ProcurementHandler) ReplaceItems(c *gin.Context) {
	var req service.ReplacePOItemsRequest
	if !h.r.bind(c, &req) {
		return
	}
	po, err := h.svc.ReplaceItems(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, po)
}

// transitionPO submit / approve / complete / cancel 共用
func (h *ProcurementHandler) transitionPO(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		po, err := h.svc.TransitionPO(c.Request.Context(), c.Param("id"), action, userID(c))
		if err != nil {
			h.r.fail(c, err)
			return
		}
		h.r.ok(c, po)
	}
}

func (h *ProcurementHandler) DeletePO(c *gin.Context) {
	if err := h.svc.DeletePO(c.Request.Context(), c.Param("id")); err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, nil)
}

// --- GRN ---

func (h *ProcurementHandler) CreateGRN(c *gin.Context) {
	var req service.CreateGRNRequest
	if !h.r.bind(c, &req) {
		return
	}
	grn, err := h.svc.CreateGRN(c.Request.Context(), c.Param("id"), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, grn)
}

func (h *ProcurementHandler) GetGRN(c *gin.Context) {
	grn, err := h.svc.GetGRN(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, grn)
}

func (h *ProcurementHandler) ListGRNs(c *gin.Context) {
	params := repository.GRNListParams{
		POID:       c.Query("po_id"),
		SupplierID: c.Query("supplier_id"),
		Status:     c.Query("status"),
		Keyword:    c.Query("keyword"),
		Page:       pageParams(c),
	}
	grns, total, err := h.svc.ListGRNs(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, grns, total, params.Page)
}

func (h *ProcurementHandler) ListGRNsByPO(c *gin.Context) {
	page := pageParams(c)
	grns, total, err := h.svc.ListGRNsByPO(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, grns, total, page)
}

func (h *ProcurementHandler) ReceiveGRN(c *gin.Context) {
	grn, err := h.svc.ReceiveGRN(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, grn)
}

func (h *ProcurementHandler) VerifyGRN(c *gin.Context) {
	grn, err := h.svc.VerifyGRN(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, grn)
}

func (h *ProcurementHandler) CancelGRN(c *gin.Context) {
	grn, err := h.svc.CancelGRN(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, grn)
}
