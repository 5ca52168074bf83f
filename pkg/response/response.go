package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Invalid sends 400 with per-field validation messages.
func Invalid(c *gin.Context, err string, fields map[string]string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Fields: fields})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Error maps an apperr sentinel to its status code. notFound is the message used
// for ErrNotFound so each endpoint can name what was missing; anything that is not
// part of the taxonomy becomes a 500 with a generic message.
func Error(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		Invalid(c, "validation failed", apperr.FieldErrors(err))
	case errors.Is(err, apperr.ErrMalformedCode):
		BadRequest(c, "invalid or unrecognized code")
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(c, notFound)
	case errors.Is(err, apperr.ErrUnauthorized):
		Unauthorized(c, "admin session required")
	case errors.Is(err, apperr.ErrConflict):
		Conflict(c, err.Error())
	default:
		Internal(c, "internal error")
	}
}

// Fail writes err like Error and logs it under msg when it is not an expected
// outcome, so every 500 leaves a trace.
func Fail(c *gin.Context, logger *zap.Logger, msg string, err error, notFound string) {
	if !apperr.IsExpected(err) {
		logger.Error(msg, zap.Error(err), zap.String("method", c.Request.Method), zap.String("path", c.FullPath()))
	}
	Error(c, err, notFound)
}
