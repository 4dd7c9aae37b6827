package handler

import (
	"net/http"

	"workshopdesk/internal/middleware"
	"workshopdesk/internal/routes"
	"workshopdesk/internal/service"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CheckInHandler struct {
	checkInService service.CheckInService
	live           gin.HandlerFunc
}

// NewCheckInHandler wires the check-in endpoints. live serves the websocket feed and may be nil.
func NewCheckInHandler(checkInService service.CheckInService, live gin.HandlerFunc) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService, live: live}
}

func (h *CheckInHandler) RegisterRoutes(router *gin.RouterGroup, reg *routes.Registry) {
	checkin := router.Group("/workshops/:id/checkin")
	reg.Handle(checkin, http.MethodPost, "/scan", routes.CheckinScan, h.Scan)
	reg.Handle(checkin, http.MethodPost, "/manual", routes.CheckinManual, h.Manual)
	reg.Handle(checkin, http.MethodDelete, "/:participantId", routes.CheckinUndo, h.Undo)
	if h.live != nil {
		reg.Handle(router, http.MethodGet, "/ws/checkin", routes.CheckinLive, h.live)
	}
}

// Scan checks in the holder of a scanned ticket code
// @Summary      Check in by ticket code
// @Tags         checkin
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Workshop ID"
// @Param        payload  body      service.ScanRequest  true  "Scanned code"
// @Success      200      {object}  response.Response{data=service.CheckInResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /workshops/{id}/checkin/scan [post]
func (h *CheckInHandler) Scan(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ScanRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.checkInService.Scan(c.Request.Context(), middleware.CurrentUserID(c), workshopID, req.TicketCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Manual checks in a participant picked from the list
// @Summary      Check in by participant
// @Tags         checkin
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Workshop ID"
// @Param        payload  body      service.ManualCheckInRequest  true  "Participant"
// @Success      200      {object}  response.Response{data=service.CheckInResponse}
// @Failure      409      {object}  response.Response
// @Router       /workshops/{id}/checkin/manual [post]
func (h *CheckInHandler) Manual(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ManualCheckInRequest
	if !bindJSON(c, &req) {
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid participant_id"))
		return
	}
	res, err := h.checkInService.Manual(c.Request.Context(), middleware.CurrentUserID(c), workshopID, participantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Undo reverts a check-in
// @Summary      Undo check-in
// @Tags         checkin
// @Produce      json
// @Param        id             path      string  true  "Workshop ID"
// @Param        participantId  path      string  true  "Participant ID"
// @Success      200            {object}  response.Response{data=service.ParticipantResponse}
// @Failure      409            {object}  response.Response
// @Router       /workshops/{id}/checkin/{participantId} [delete]
func (h *CheckInHandler) Undo(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	id, ok := uuidParam(c, "participantId")
	if !ok {
		return
	}
	res, err := h.checkInService.Undo(c.Request.Context(), middleware.CurrentUserID(c), workshopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
