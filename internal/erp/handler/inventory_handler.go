package handler

import (
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	svc *service.StockService
	r   *responder
}

// branchQuery 兼容 branch 和 branch_id 两种写法
func branchQuery(c *gin.Context) string {
	if b := c.Query("branch"); b != "" {
		return b
	}
	return c.Query("branch_id")
}

func (h *InventoryHandler) ListStock(c *gin.Context) {
	params := repository.StockListParams{
		InventoryItemID: c.Query("inventory_item_id"),
		BranchID:        branchQuery(c),
		Page:            pageParams(c),
	}
	list, total, err := h.svc.ListStock(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, list, total, params.Page)
}

func (h *InventoryHandler) GetStock(c *gin.Context) {
	stock, err := h.svc.GetStock(c.Request.Context(), c.Param("item_id"), c.Param("branch_id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, stock)
}

func (h *InventoryHandler) ListMovements(c *gin.Context) {
	params := repository.MovementListParams{
		InventoryItemID: c.Query("inventory_item_id"),
		BranchID:        branchQuery(c),
		Type:            c.Query("type"),
		ReferenceID:     c.Query("reference_id"),
		Page:            pageParams(c),
	}
	list, total, err := h.svc.ListMovements(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, list, total, params.Page)
}

func (h *InventoryHandler) VerifyChain(c *gin.Context) {
	report, err := h.svc.VerifyChain(c.Request.Context(), c.Query("inventory_item_id"), branchQuery(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, report)
}

func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req service.AdjustmentRequest
	if !h.r.bind(c, &req) {
		return
	}
	mv, err := h.svc.Adjust(c.Request.Context(), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, mv)
}

func (h *InventoryHandler) Transfer(c *gin.Context) {
	var req service.TransferRequest
	if !h.r.bind(c, &req) {
		return
	}
	result, err := h.svc.Transfer(c.Request.Context(), req, userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, result)
}
