package handler

import (
	"net/http"

	"workshopdesk/internal/repository"
	"workshopdesk/internal/routes"
	"workshopdesk/internal/service"
	"workshopdesk/pkg/pagination"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup, reg *routes.Registry) {
	reg.Handle(router, http.MethodGet, "/audit-logs", routes.AuditLogsIndex, h.GetAuditLogs)
}

// GetAuditLogs returns a page of audit entries, newest first
// @Summary      Get audit logs
// @Tags         audit
// @Produce      json
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Param        action     query     string  false  "Action filter, e.g. IMPORT_PARTICIPANTS"
// @Param        entity_id  query     string  false  "Entity filter"
// @Success      200        {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), params, repository.AuditFilter{
		Action:   c.Query("action"),
		EntityID: c.Query("entity_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, logs, params.Page, params.Limit, total))
}
