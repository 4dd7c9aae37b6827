package handler

import (
	"net/http"

	"workshopdesk/internal/middleware"
	"workshopdesk/internal/repository"
	"workshopdesk/internal/routes"
	"workshopdesk/internal/service"
	"workshopdesk/pkg/pagination"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type WorkshopHandler struct {
	workshopService   service.WorkshopService
	ticketTypeService service.TicketTypeService
	statsService      service.StatisticsService
}

func NewWorkshopHandler(workshopService service.WorkshopService, ticketTypeService service.TicketTypeService, statsService service.StatisticsService) *WorkshopHandler {
	return &WorkshopHandler{workshopService: workshopService, ticketTypeService: ticketTypeService, statsService: statsService}
}

func (h *WorkshopHandler) RegisterRoutes(router *gin.RouterGroup, reg *routes.Registry) {
	workshops := router.Group("/workshops")
	reg.Handle(workshops, http.MethodGet, "", routes.WorkshopsIndex, h.ListWorkshops)
	reg.Handle(workshops, http.MethodPost, "", routes.WorkshopsStore, h.CreateWorkshop)
	reg.Handle(workshops, http.MethodGet, "/:id", routes.WorkshopsShow, h.GetWorkshop)
	reg.Handle(workshops, http.MethodPut, "/:id", routes.WorkshopsUpdate, h.UpdateWorkshop)
	reg.Handle(workshops, http.MethodPatch, "/:id", routes.WorkshopsUpdate, h.UpdateWorkshop)
	reg.Handle(workshops, http.MethodDelete, "/:id", routes.WorkshopsDestroy, h.DeleteWorkshop)
	reg.Handle(workshops, http.MethodPatch, "/:id/status", routes.WorkshopsStatus, h.ChangeStatus)

	reg.Handle(workshops, http.MethodGet, "/:id/ticket-types", routes.TicketTypesIndex, h.ListTicketTypes)
	reg.Handle(workshops, http.MethodPost, "/:id/ticket-types", routes.TicketTypesStore, h.CreateTicketType)
	reg.Handle(workshops, http.MethodPut, "/:id/ticket-types/:ticketTypeId", routes.TicketTypesUpdate, h.UpdateTicketType)
	reg.Handle(workshops, http.MethodDelete, "/:id/ticket-types/:ticketTypeId", routes.TicketTypesDestroy, h.DeleteTicketType)
}

// ListWorkshops returns a page of workshops
// @Summary      List workshops
// @Tags         workshops
// @Produce      json
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Param        search  query     string  false  "Title or location contains"
// @Param        status  query     string  false  "draft, published, ongoing, completed or cancelled"
// @Success      200     {object}  response.Response{data=[]service.WorkshopResponse}
// @Router       /workshops [get]
func (h *WorkshopHandler) ListWorkshops(c *gin.Context) {
	params := pagination.Parse(c)
	workshops, total, err := h.workshopService.ListWorkshops(c.Request.Context(), params,
		repository.WorkshopFilter{Status: c.Query("status")})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, workshops, params.Page, params.Limit, total))
}

// GetWorkshop returns one workshop with its ticket types and attendance counters
// @Summary      Get workshop
// @Tags         workshops
// @Produce      json
// @Param        id   path      string  true  "Workshop ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /workshops/{id} [get]
func (h *WorkshopHandler) GetWorkshop(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	workshop, err := h.workshopService.GetWorkshop(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	stats, err := h.statsService.WorkshopStats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"workshop": workshop, "stats": stats}))
}

// CreateWorkshop creates a draft workshop and its ticket types
// @Summary      Create workshop
// @Tags         workshops
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateWorkshopRequest  true  "Workshop"
// @Success      201      {object}  response.Response{data=service.WorkshopResponse}
// @Failure      400      {object}  response.Response
// @Router       /workshops [post]
func (h *WorkshopHandler) CreateWorkshop(c *gin.Context) {
	var req service.CreateWorkshopRequest
	if !bindJSON(c, &req) {
		return
	}
	workshop, err := h.workshopService.CreateWorkshop(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, workshop))
}

// UpdateWorkshop edits a workshop that is not completed or cancelled
// @Summary      Update workshop
// @Tags         workshops
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Workshop ID"
// @Param        payload  body      service.UpdateWorkshopRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.WorkshopResponse}
// @Failure      409      {object}  response.Response
// @Router       /workshops/{id} [put]
func (h *WorkshopHandler) UpdateWorkshop(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateWorkshopRequest
	if !bindJSON(c, &req) {
		return
	}
	workshop, err := h.workshopService.UpdateWorkshop(c.Request.Context(), middleware.CurrentUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, workshop))
}

// DeleteWorkshop soft-deletes a workshop
// @Summary      Delete workshop
// @Tags         workshops
// @Param        id   path      string  true  "Workshop ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /workshops/{id} [delete]
func (h *WorkshopHandler) DeleteWorkshop(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.workshopService.DeleteWorkshop(c.Request.Context(), middleware.CurrentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Workshop deleted successfully"}))
}

// ChangeStatus moves a workshop along its lifecycle
// @Summary      Change workshop status
// @Tags         workshops
// @Accept       json
// @Produce      json
// @Param        id       path      string                               true  "Workshop ID"
// @Param        payload  body      service.ChangeWorkshopStatusRequest  true  "Target status"
// @Success      200      {object}  response.Response{data=service.WorkshopResponse}
// @Failure      409      {object}  response.Response
// @Router       /workshops/{id}/status [patch]
func (h *WorkshopHandler) ChangeStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ChangeWorkshopStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	workshop, err := h.workshopService.ChangeStatus(c.Request.Context(), middleware.CurrentUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, workshop))
}

// ListTicketTypes returns the ticket types of a workshop, default first
// @Summary      List ticket types
// @Tags         ticket-types
// @Produce      json
// @Param        id   path      string  true  "Workshop ID"
// @Success      200  {object}  response.Response{data=[]service.TicketTypeResponse}
// @Router       /workshops/{id}/ticket-types [get]
func (h *WorkshopHandler) ListTicketTypes(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ticketTypes, err := h.ticketTypeService.ListTicketTypes(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, ticketTypes))
}

// CreateTicketType adds a ticket type to a workshop
// @Summary      Create ticket type
// @Tags         ticket-types
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Workshop ID"
// @Param        payload  body      service.CreateTicketTypeRequest  true  "Ticket type"
// @Success      201      {object}  response.Response{data=service.TicketTypeResponse}
// @Failure      409      {object}  response.Response
// @Router       /workshops/{id}/ticket-types [post]
func (h *WorkshopHandler) CreateTicketType(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.CreateTicketTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	tt, err := h.ticketTypeService.CreateTicketType(c.Request.Context(), middleware.CurrentUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tt))
}

// UpdateTicketType renames or re-prices a ticket type
// @Summary      Update ticket type
// @Tags         ticket-types
// @Accept       json
// @Produce      json
// @Param        id            path      string                           true  "Workshop ID"
// @Param        ticketTypeId  path      string                           true  "Ticket type ID"
// @Param        payload       body      service.UpdateTicketTypeRequest  true  "Fields to change"
// @Success      200           {object}  response.Response{data=service.TicketTypeResponse}
// @Router       /workshops/{id}/ticket-types/{ticketTypeId} [put]
func (h *WorkshopHandler) UpdateTicketType(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	id, ok := uuidParam(c, "ticketTypeId")
	if !ok {
		return
	}
	var req service.UpdateTicketTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	tt, err := h.ticketTypeService.UpdateTicketType(c.Request.Context(), middleware.CurrentUserID(c), workshopID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tt))
}

// DeleteTicketType removes a ticket type that no participant holds
// @Summary      Delete ticket type
// @Tags         ticket-types
// @Param        id            path      string  true  "Workshop ID"
// @Param        ticketTypeId  path      string  true  "Ticket type ID"
// @Success      200           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /workshops/{id}/ticket-types/{ticketTypeId} [delete]
func (h *WorkshopHandler) DeleteTicketType(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	id, ok := uuidParam(c, "ticketTypeId")
	if !ok {
		return
	}
	if err := h.ticketTypeService.DeleteTicketType(c.Request.Context(), middleware.CurrentUserID(c), workshopID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Ticket type deleted successfully"}))
}
