package handler

import (
	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/shared/errs"
	"github.com/gin-gonic/gin"
)

// MasterRoutes 一类基础数据的路由
type MasterRoutes interface {
	Register(api *gin.RouterGroup)
}

// MasterHandler 基础数据通用 CRUD 处理器
type MasterHandler[T any, PT interface {
	*T
	entity.Record
}] struct {
	path    string
	filters []string
	svc     *service.MasterService[T, PT]
	r       *responder
}

func newMasterHandler[T any, PT interface {
	*T
	entity.Record
}](path string, svc *service.MasterService[T, PT], r *responder, filters ...string) *MasterHandler[T, PT] {
	return &MasterHandler[T, PT]{path: path, filters: filters, svc: svc, r: r}
}

func newMasterRoutes(m *service.MasterData, r *responder) []MasterRoutes {
	return []MasterRoutes{
		newMasterHandler("/units", m.Units, r),
		newMasterHandler("/purities", m.Purities, r, "metal_type"),
		newMasterHandler("/stones", m.Stones, r, "stone_type"),
		newMasterHandler("/material-types", m.MaterialTypes, r),
		newMasterHandler("/making-stages", m.MakingStages, r),
		newMasterHandler("/making-sub-stages", m.MakingSubStages, r, "stage_id"),
		newMasterHandler("/locations", m.Locations, r, "branch_id"),
		newMasterHandler("/branches", m.Branches, r),
		newMasterHandler("/karigars", m.Karigars, r),
		newMasterHandler("/customers", m.Customers, r),
		newMasterHandler("/suppliers", m.Suppliers, r),
		newMasterHandler("/inventory-items", m.InventoryItems, r, "category", "material_type_id", "purity_id"),
	}
}

func (h *MasterHandler[T, PT]) Register(api *gin.RouterGroup) {
	g := api.Group(h.path)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	if h.svc.SupportsImages() {
		g.POST("/:id/image", h.UploadImage)
	}
}

func (h *MasterHandler[T, PT]) List(c *gin.Context) {
	params := repository.MasterListParams{
		Keyword: c.Query("keyword"),
		Filters: make(map[string]string, len(h.filters)),
		Page:    pageParams(c),
	}
	for _, f := range h.filters {
		params.Filters[f] = c.Query(f)
	}
	list, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.list(c, list, total, params.Page)
}

func (h *MasterHandler[T, PT]) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, rec)
}

func (h *MasterHandler[T, PT]) Create(c *gin.Context) {
	rec := PT(new(T))
	if !h.r.bind(c, rec) {
		return
	}
	created, err := h.svc.Create(c.Request.Context(), rec)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.created(c, created)
}

func (h *MasterHandler[T, PT]) Update(c *gin.Context) {
	rec := PT(new(T))
	if !h.r.bind(c, rec) {
		return
	}
	updated, err := h.svc.Update(c.Request.Context(), c.Param("id"), rec)
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, updated)
}

func (h *MasterHandler[T, PT]) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, nil)
}

// UploadImage multipart 字段 file
func (h *MasterHandler[T, PT]) UploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		h.r.fail(c, errs.Validation("file is required"))
		return
	}
	src, err := file.Open()
	if err != nil {
		h.r.fail(c, errs.Internal("open upload", err))
		return
	}
	defer src.Close()

	rec, err := h.svc.UploadImage(c.Request.Context(), c.Param("id"), service.Upload{
		FileName:    file.Filename,
		Size:        file.Size,
		ContentType: file.Header.Get("Content-Type"),
		Body:        src,
	})
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, rec)
}
