package handler

import (
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/gin-gonic/gin"
)

type ManufacturingHandler struct {
	svc *service.ManufacturingService
	r   *responder
}

func (h *ManufacturingHandler) Create(c *gin.Context) {
	var req service.CreateMORequest
	if !h.r.bind(c, &req) {
		return
	}
	mo, err := h.svc.Create(c.Request.Context(), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, mo)
}

func (h *ManufacturingHandler) Get(c *gin.Context) {
	mo, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, mo)
}

func (h *ManufacturingHandler) List(c *gin.Context) {
	params := repository.MOListParams{
		BranchID:  branchQuery(c),
		KarigarID: c.Query("karigar_id"),
		Status:    c.Query("status"),
		Keyword:   c.Query("keyword"),
		Page:      pageParams(c),
	}
	list, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, list, total, params.Page)
}

func (h *ManufacturingHandler) Start(c *gin.Context) {
	mo, err := h.svc.Start(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, mo)
}

func (h *ManufacturingHandler) Complete(c *gin.Context) {
	var req service.CompleteMORequest
	if !h.r.bind(c, &req) {
		return
	}
	mo, err := h.svc.Complete(c.Request.Context(), c.Param("id"), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, mo)
}

func (h *ManufacturingHandler) Cancel(c *gin.Context) {
	mo, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, mo)
}
