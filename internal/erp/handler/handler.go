package handler

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handlers ERP HTTP处理器集合
type Handlers struct {
	Master        []MasterRoutes
	Procurement   *ProcurementHandler
	Inventory     *InventoryHandler
	Sales         *SalesHandler
	Ledger        *LedgerHandler
	Manufacturing *ManufacturingHandler
	Report        *ReportHandler
}

var bindingOnce sync.Once

func NewHandlers(svc *service.Services, logger *zap.Logger) *Handlers {
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			service.ConfigureValidator(v)
		}
	})
	r := &responder{logger: logger}
	return &Handlers{
		Master:        newMasterRoutes(svc.Master, r),
		Procurement:   &ProcurementHandler{svc: svc.Procurement, r: r},
		Inventory:     &InventoryHandler{svc: svc.Stock, r: r},
		Sales:         &SalesHandler{svc: svc.Sales, invoices: svc.Invoice, r: r},
		Ledger:        &LedgerHandler{svc: svc.Ledger, r: r},
		Manufacturing: &ManufacturingHandler{svc: svc.Manufacturing, r: r},
		Report:        &ReportHandler{svc: svc.Report, r: r},
	}
}

// RegisterRoutes 注册 /api/v1 下的全部 ERP 路由
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	for _, m := range h.Master {
		m.Register(api)
	}

	// 采购
	api.GET("/purchase-orders", h.Procurement.ListPOs)
	api.POST("/purchase-orders", h.Procurement.CreatePO)
	api.GET("/purchase-orders/:id", h.Procurement.GetPO)
	api.PUT("/purchase-orders/:id/items", h.Procurement.ReplaceItems)
	api.DELETE("/purchase-orders/:id", h.Procurement.DeletePO)
	api.POST("/purchase-orders/:id/submit", h.Procurement.transitionPO(service.POActionSubmit))
	api.POST("/purchase-orders/:id/approve", h.Procurement.transitionPO(service.POActionApprove))
	api.POST("/purchase-orders/:id/complete", h.Procurement.transitionPO(service.POActionComplete))
	api.POST("/purchase-orders/:id/cancel", h.Procurement.transitionPO(service.POActionCancel))
	api.GET("/purchase-orders/:id/grns", h.Procurement.ListGRNsByPO)
	api.POST("/purchase-orders/:id/grns", h.Procurement.CreateGRN)
	api.GET("/grns", h.Procurement.ListGRNs)
	api.GET("/grns/:id", h.Procurement.GetGRN)
	api.POST("/grns/:id/receive", h.Procurement.ReceiveGRN)
	api.POST("/grns/:id/verify", h.Procurement.VerifyGRN)
	api.POST("/grns/:id/cancel", h.Procurement.CancelGRN)

	// 库存
	api.GET("/stock", h.Inventory.ListStock)
	api.GET("/stock/:item_id/:branch_id", h.Inventory.GetStock)
	api.POST("/stock/adjustments", h.Inventory.Adjust)
	api.POST("/stock/transfers", h.Inventory.Transfer)
	api.GET("/stock-movements", h.Inventory.ListMovements)
	api.GET("/stock-movements/verify", h.Inventory.VerifyChain)

	// 销售
	api.GET("/sales-orders", h.Sales.List)
	api.POST("/sales-orders", h.Sales.Create)
	api.GET("/sales-orders/:id", h.Sales.Get)
	api.POST("/sales-orders/:id/deliver", h.Sales.Deliver)
	api.POST("/sales-orders/:id/payments", h.Sales.RecordPayment)
	api.POST("/sales-orders/:id/cancel", h.Sales.Cancel)
	api.POST("/sales-orders/:id/invoice", h.Sales.GenerateInvoice)
	api.GET("/sales-orders/:id/invoice", h.Sales.GetInvoiceBySale)
	api.GET("/invoices", h.Sales.ListInvoices)
	api.GET("/invoices/:id", h.Sales.GetInvoice)

	// 往来账
	api.GET("/ledgers", h.Ledger.List)
	api.POST("/ledgers/vouchers", h.Ledger.PostVoucher)
	api.GET("/ledgers/:id", h.Ledger.Get)
	api.GET("/ledgers/:id/entries", h.Ledger.Entries)
	api.GET("/ledgers/:id/verify", h.Ledger.Verify)

	// 生产
	api.GET("/manufacturing-orders", h.Manufacturing.List)
	api.POST("/manufacturing-orders", h.Manufacturing.Create)
	api.GET("/manufacturing-orders/:id", h.Manufacturing.Get)
	api.POST("/manufacturing-orders/:id/start", h.Manufacturing.Start)
	api.POST("/manufacturing-orders/:id/complete", h.Manufacturing.Complete)
	api.POST("/manufacturing-orders/:id/cancel", h.Manufacturing.Cancel)

	// 报表
	api.GET("/reports/:type", h.Report.Get)
	api.POST("/reports/:type/regenerate", h.Report.Regenerate)
	api.GET("/reports/:type/export", h.Report.Export)
}

// Response 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListData 列表数据
type ListData struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

type responder struct {
	logger *zap.Logger
}

func (r *responder) ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Code: 0, Message: "success", Data: data})
}

func (r *responder) created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Code: 0, Message: "success", Data: data})
}

func (r *responder) list(c *gin.Context, items interface{}, total int64, page repository.Page) {
	page = page.Normalize()
	r.ok(c, ListData{Items: items, Total: total, Page: page.Page, PageSize: page.Size})
}

// fail 按错误类型映射状态码；Internal 错误记录日志
func (r *responder) fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	message := err.Error()
	if te := errs.As(err); te != nil && kind != errs.KindInternal {
		message = te.Message()
	}
	if kind == errs.KindInternal {
		r.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(errs.HTTPStatus(kind), Response{Success: false, Code: errs.Code(kind), Message: message})
}

// bind 解析 JSON 请求体，失败时直接写 400
func (r *responder) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		r.fail(c, service.ValidationError(err))
		return false
	}
	return true
}

func pageParams(c *gin.Context) repository.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return repository.Page{Page: page, Size: size}
}

func userID(c *gin.Context) string {
	return c.GetString("user_id")
}
