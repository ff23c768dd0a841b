package handler

import (
	"fmt"
	"net/http"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	svc *service.ReportService
	r   *responder
}

// queryParams 取每个查询参数的第一个值；token 是下载鉴权用的，不算报表参数
func queryParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if k == "token" || len(v) == 0 {
			continue
		}
		params[k] = v[0]
	}
	return params
}

func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.svc.Get(c.Request.Context(), c.Param("type"), queryParams(c), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, report)
}

func (h *ReportHandler) Regenerate(c *gin.Context) {
	report, err := h.svc.Regenerate(c.Request.Context(), c.Param("type"), queryParams(c), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	h.r.ok(c, report)
}

func (h *ReportHandler) Export(c *gin.Context) {
	buf, fileName, err := h.svc.Export(c.Request.Context(), c.Param("type"), queryParams(c), userID(c))
	if err != nil {
		h.r.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
