package checkin

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/pkg/response"
)

// Request is the body for POST /api/admin/checkin. Code is the scanned payload.
type Request struct {
	Code string `json:"code" binding:"required"`
}

// Handler handles the check-in endpoint.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// CheckIn handles POST /api/admin/checkin.
func (h *Handler) CheckIn(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.CheckIn(c.Request.Context(), req.Code)
	if err != nil {
		response.Fail(c, h.logger, "check-in failed", err, "registration not found")
		return
	}
	response.OK(c, res)
}
