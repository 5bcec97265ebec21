package handler

import (
	"net/http"

	"retailpos/internal/model"
	"retailpos/internal/service"
	"retailpos/pkg/pagination"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         Authorizer
}

func NewAuditHandler(auditService service.AuditService, auth Authorizer) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.auth.RequireRole(model.RoleAdmin, model.RoleManager))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs lists core writes newest first
// @Summary      Get audit logs
// @Description  Every sale, invoice, movement and held-cart change, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action  query     string  false  "Action filter, e.g. COMPLETE_SALE"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("action"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(logs, total, p)))
}
