package handler

import (
	"net/http"

	"workshopdesk/internal/routes"
	"workshopdesk/internal/service"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup, reg *routes.Registry) {
	reg.Handle(router, http.MethodGet, "/dashboard", routes.Dashboard, h.Dashboard)
}

// @Summary      Get dashboard statistics
// @Description  Workshops per status, participant, payment and attendance totals, revenue, and the next upcoming workshops
// @Tags         statistics
// @Produce      json
// @Success      200  {object}  response.Response{data=model.DashboardStats}
// @Failure      500  {object}  response.Response
// @Router       /dashboard [get]
func (h *StatisticsHandler) Dashboard(c *gin.Context) {
	stats, err := h.statisticsService.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
