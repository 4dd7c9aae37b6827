package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"workshopdesk/internal/middleware"
	"workshopdesk/internal/repository"
	"workshopdesk/internal/routes"
	"workshopdesk/internal/service"
	"workshopdesk/pkg/pagination"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type ParticipantHandler struct {
	participantService service.ParticipantService
	maxUploadSize      int64
}

func NewParticipantHandler(participantService service.ParticipantService, maxUploadSize int64) *ParticipantHandler {
	return &ParticipantHandler{participantService: participantService, maxUploadSize: maxUploadSize}
}

func (h *ParticipantHandler) RegisterRoutes(router *gin.RouterGroup, reg *routes.Registry) {
	participants := router.Group("/workshops/:id/participants")
	reg.Handle(participants, http.MethodGet, "", routes.ParticipantsIndex, h.ListParticipants)
	reg.Handle(participants, http.MethodPost, "", routes.ParticipantsStore, h.CreateParticipant)
	reg.Handle(participants, http.MethodPost, "/import", routes.ParticipantsImport, h.Import)
	reg.Handle(participants, http.MethodGet, "/export", routes.ParticipantsExport, h.Export)
	reg.Handle(participants, http.MethodGet, "/:participantId", routes.ParticipantsShow, h.GetParticipant)
	reg.Handle(participants, http.MethodPut, "/:participantId", routes.ParticipantsUpdate, h.UpdateParticipant)
	reg.Handle(participants, http.MethodDelete, "/:participantId", routes.ParticipantsDestroy, h.DeleteParticipant)
	reg.Handle(participants, http.MethodPatch, "/:participantId/paid", routes.ParticipantsTogglePaid, h.TogglePaid)
	reg.Handle(participants, http.MethodGet, "/:participantId/qr", routes.ParticipantsQR, h.QRCode)
}

func optionalBool(raw string) *bool {
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

// ListParticipants returns a page of a workshop's participants
// @Summary      List participants
// @Tags         participants
// @Produce      json
// @Param        id              path      string  true   "Workshop ID"
// @Param        page            query     int     false  "Page number"
// @Param        limit           query     int     false  "Page size"
// @Param        search          query     string  false  "Name, email or ticket code contains"
// @Param        ticket_type_id  query     string  false  "Ticket type filter"
// @Param        is_paid         query     bool    false  "Payment filter"
// @Param        is_checked_in   query     bool    false  "Attendance filter"
// @Success      200             {object}  response.Response{data=[]service.ParticipantResponse}
// @Router       /workshops/{id}/participants [get]
func (h *ParticipantHandler) ListParticipants(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ticketTypeID, err := optionalUUID(c.Query("ticket_type_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid ticket_type_id"))
		return
	}

	params := pagination.Parse(c)
	filter := repository.ParticipantFilter{
		TicketTypeID: ticketTypeID,
		IsPaid:       optionalBool(c.Query("is_paid")),
		IsCheckedIn:  optionalBool(c.Query("is_checked_in")),
	}
	participants, total, err := h.participantService.ListParticipants(c.Request.Context(), workshopID, params, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, participants, params.Page, params.Limit, total))
}

// GetParticipant returns one participant
// @Summary      Get participant
// @Tags         participants
// @Produce      json
// @Param        id             path      string  true  "Workshop ID"
// @Param        participantId  path      string  true  "Participant ID"
// @Success      200            {object}  response.Response{data=service.ParticipantResponse}
// @Failure      404            {object}  response.Response
// @Router       /workshops/{id}/participants/{participantId} [get]
func (h *ParticipantHandler) GetParticipant(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	id, ok := uuidParam(c, "participantId")
	if !ok {
		return
	}
	p, err := h.participantService.GetParticipant(c.Request.Context(), workshopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p))
}

// CreateParticipant registers one participant manually
// @Summary      Create participant
// @Tags         participants
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Workshop ID"
// @Param        payload  body      service.CreateParticipantRequest  true  "Participant"
// @Success      201      {object}  response.Response{data=service.ParticipantResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /workshops/{id}/participants [post]
func (h *ParticipantHandler) CreateParticipant(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.CreateParticipantRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.participantService.CreateParticipant(c.Request.Context(), middleware.CurrentUserID(c), workshopID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, p))
}

// UpdateParticipant edits a participant
// @Summary      Update participant
// @Tags         participants
// @Accept       json
// @Produce      json
// @Param        id             path      string                            true  "Workshop ID"
// @Param        participantId  path      string                            true  "Participant ID"
// @Param        payload        body      service.UpdateParticipantRequest  true  "Fields to change"
// @Success      200            {object}  response.Response{data=service.ParticipantResponse}
// @Router       /workshops/{id}/participants/{participantId} [put]
func (h *ParticipantHandler) UpdateParticipant(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	id, ok := uuidParam(c, "participantId")
	if !ok {
		return
	}
	var req service.UpdateParticipantRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.participantService.UpdateParticipant(c.Request.Context(), middleware.CurrentUserID(c), workshopID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p))
}

// DeleteParticipant removes a participant
// @Summary      Delete participant
// @Tags         participants
// @Param        id             path      string  true  "Workshop ID"
// @Param        participantId  path      string  true  "Participant ID"
// @Success      200            {object}  response.Response
// @Router       /workshops/{id}/participants/{participantId} [delete]
func (h *ParticipantHandler) DeleteParticipant(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	id, ok := uuidParam(c, "participantId")
	if !ok {
		return
	}
	if err := h.participantService.DeleteParticipant(c.Request.Context(), middleware.CurrentUserID(c), workshopID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Participant deleted successfully"}))
}

// TogglePaid flips the payment flag
// @Summary      Toggle payment
// @Tags         participants
// @Produce      json
// @Param        id             path      string  true  "Workshop ID"
// @Param        participantId  path      string  true  "Participant ID"
// @Success      200            {object}  response.Response{data=service.ParticipantResponse}
// @Router       /workshops/{id}/participants/{participantId}/paid [patch]
func (h *ParticipantHandler) TogglePaid(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	id, ok := uuidParam(c, "participantId")
	if !ok {
		return
	}
	p, err := h.participantService.TogglePaid(c.Request.Context(), middleware.CurrentUserID(c), workshopID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p))
}

// Import bulk-loads participants from a CSV or XLSX upload
// @Summary      Import participants
// @Description  Rows missing a name or email are skipped; invalid rows are rejected and listed in errors. Storage failures abort the import. A file that turns unreadable part way returns 422 with the partial result in details.
// @Tags         participants
// @Accept       multipart/form-data
// @Produce      json
// @Param        id              path      string  true   "Workshop ID"
// @Param        file            formData  file    true   "CSV or XLSX with a header row"
// @Param        ticket_type_id  formData  string  false  "Ticket type applied to every row"
// @Param        chunk_size      formData  int     false  "Rows per transaction"
// @Success      200             {object}  response.Response{data=service.ImportResult}
// @Failure      413             {object}  response.Response
// @Failure      422             {object}  response.Response
// @Router       /workshops/{id}/participants/import [post]
func (h *ParticipantHandler) Import(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "A file upload named \"file\" is required"))
		return
	}
	if fileHeader.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, response.Error(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds the %d byte upload limit", h.maxUploadSize)))
		return
	}

	ticketTypeID, err := optionalUUID(c.PostForm("ticket_type_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid ticket_type_id"))
		return
	}
	chunkSize := 0
	if raw := c.PostForm("chunk_size"); raw != "" {
		if chunkSize, err = strconv.Atoi(raw); err != nil || chunkSize < 1 || chunkSize > 1000 {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "chunk_size must be between 1 and 1000"))
			return
		}
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Failed to read upload"))
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, h.maxUploadSize)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Failed to read upload"))
		return
	}

	result, err := h.participantService.Import(c.Request.Context(), middleware.CurrentUserID(c), workshopID, service.ImportRequest{
		Filename:     fileHeader.Filename,
		Content:      buf.Bytes(),
		TicketTypeID: ticketTypeID,
		ChunkSize:    chunkSize,
	})
	if err != nil && result != nil && errors.Is(err, service.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, response.ErrorWithDetails(http.StatusUnprocessableEntity,
			strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": "), result))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Export downloads every participant of a workshop
// @Summary      Export participants
// @Tags         participants
// @Produce      text/csv
// @Param        id      path      string  true   "Workshop ID"
// @Param        format  query     string  false  "csv (default) or xlsx"
// @Success      200     {file}    file
// @Router       /workshops/{id}/participants/export [get]
func (h *ParticipantHandler) Export(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	format := c.DefaultQuery("format", service.ExportCSV)
	contentType := "text/csv; charset=utf-8"
	if format == service.ExportXLSX {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	var buf bytes.Buffer
	if err := h.participantService.Export(c.Request.Context(), workshopID, format, &buf); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("participants-%s.%s", workshopID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// QRCode renders the ticket code as a PNG
// @Summary      Ticket QR code
// @Tags         participants
// @Produce      png
// @Param        id             path      string  true   "Workshop ID"
// @Param        participantId  path      string  true   "Participant ID"
// @Param        size           query     int     false  "Edge length in pixels (default 256)"
// @Success      200            {file}    file
// @Router       /workshops/{id}/participants/{participantId}/qr [get]
func (h *ParticipantHandler) QRCode(c *gin.Context) {
	workshopID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	id, ok := uuidParam(c, "participantId")
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))

	png, err := h.participantService.QRCode(c.Request.Context(), workshopID, id, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}
