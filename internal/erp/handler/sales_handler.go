package handler

import (
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/gin-gonic/gin"
)

// SalesHandler 销售订单与发票
type SalesHandler struct {
	svc      *service.SalesService
	invoices *service.InvoiceService
	r        *responder
}

func (h *SalesHandler) Create(c *gin.Context) {
	var req service.CreateSORequest
	if !h.r.bind(c, &req) {
		return
	}
	so, err := h.svc.CreateSO(c.Request.Context(), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, so)
}

func (h *SalesHandler) Get(c *gin.Context) {
	so, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, so)
}

func (h *SalesHandler) List(c *gin.Context) {
	params := repository.SOListParams{
		CustomerID:    c.Query("customer_id"),
		BranchID:      branchQuery(c),
		SaleStatus:    c.Query("sale_status"),
		PaymentStatus: c.Query("payment_status"),
		Keyword:       c.Query("keyword"),
		Page:          pageParams(c),
	}
	list, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, list, total, params.Page)
}

func (h *SalesHandler) Deliver(c *gin.Context) {
	var req service.DeliverRequest
	if !h.r.bind(c, &req) {
		return
	}
	so, err := h.svc.Deliver(c.Request.Context(), c.Param("id"), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, so)
}

func (h *SalesHandler) RecordPayment(c *gin.Context) {
	var req service.PaymentRequest
	if !h.r.bind(c, &req) {
		return
	}
	so, err := h.svc.RecordPayment(c.Request.Context(), c.Param("id"), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, so)
}

func (h *SalesHandler) Cancel(c *gin.Context) {
	so, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, so)
}

// --- 发票 ---

func (h *SalesHandler) GenerateInvoice(c *gin.Context) {
	inv, err := h.invoices.Generate(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, inv)
}

func (h *SalesHandler) GetInvoiceBySale(c *gin.Context) {
	inv, err := h.invoices.GetBySale(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, inv)
}

func (h *SalesHandler) GetInvoice(c *gin.Context) {
	inv, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, inv)
}

func (h *SalesHandler) ListInvoices(c *gin.Context) {
	params := repository.InvoiceListParams{
		CustomerID: c.Query("customer_id"),
		BranchID:   branchQuery(c),
		Keyword:    c.Query("keyword"),
		Page:       pageParams(c),
	}
	list, total, err := h.invoices.List(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, list, total, params.Page)
}
