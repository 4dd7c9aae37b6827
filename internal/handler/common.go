package handler

import (
	"errors"
	"net/http"
	"strings"

	"workshopdesk/internal/middleware"
	"workshopdesk/internal/service"
	"workshopdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError maps service sentinel errors to HTTP status codes. Anything unrecognised
// is a 500 and its text is not exposed.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "Internal server error"

	switch {
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrConflict):
		status, msg = http.StatusConflict, strings.TrimPrefix(err.Error(), service.ErrConflict.Error()+": ")
	case errors.Is(err, service.ErrValidation):
		status, msg = http.StatusUnprocessableEntity, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrAccountDeactivated):
		status, msg = http.StatusForbidden, middleware.DeactivatedMessage
	case errors.Is(err, service.ErrInvalidToken):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		_ = c.Error(err)
	}

	c.JSON(status, response.Error(status, msg))
}

// bindJSON binds the body into req and writes a 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

// uuidParam parses a path parameter and writes a 400 when it is not a UUID
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses raw, treating an empty string as absent
func optionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
