package handler

import (
	"strings"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	svc *service.LedgerService
	r   *responder
}

func (h *LedgerHandler) List(c *gin.Context) {
	params := repository.LedgerListParams{
		PartyType: strings.ToUpper(c.Query("party_type")),
		PartyID:   c.Query("party_id"),
		Page:      pageParams(c),
	}
	list, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, list, total, params.Page)
}

func (h *LedgerHandler) Get(c *gin.Context) {
	l, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, l)
}

func (h *LedgerHandler) Entries(c *gin.Context) {
	page := pageParams(c)
	list, total, err := h.svc.Entries(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, list, total, page)
}

func (h *LedgerHandler) Verify(c *gin.Context) {
	report, err := h.svc.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, report)
}

func (h *LedgerHandler) PostVoucher(c *gin.Context) {
	var req service.VoucherRequest
	if !h.r.bind(c, &req) {
		return
	}
	entry, err := h.svc.PostVoucher(c.Request.Context(), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, entry)
}
