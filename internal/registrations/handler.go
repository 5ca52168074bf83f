package registrations

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/response"
)

// SubmitRequest is the body for POST /api/registrations.
type SubmitRequest struct {
	FormID  string            `json:"formId" binding:"required,uuid"`
	Answers map[string]string `json:"answers"`
}

// Summary is what a registrant gets back after submitting.
type Summary struct {
	ID           uuid.UUID                 `json:"id"`
	FormID       uuid.UUID                 `json:"form_id"`
	Status       models.RegistrationStatus `json:"status"`
	Token        string                    `json:"token"`
	CodePayload  string                    `json:"code_payload"`
	CodeImageURL string                    `json:"code_image_url"`
	CreatedAt    time.Time                 `json:"created_at"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Submit handles POST /api/registrations.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	formID, _ := uuid.Parse(req.FormID)

	sub, err := h.svc.Submit(c.Request.Context(), formID, req.Answers)
	if err != nil {
		response.Fail(c, h.logger, "submit registration failed", err, "form is not open for registration")
		return
	}
	reg := sub.Registration
	response.Created(c, Summary{
		ID:           reg.ID,
		FormID:       reg.FormID,
		Status:       reg.Status,
		Token:        reg.Token,
		CodePayload:  sub.CodePayload,
		CodeImageURL: "/api/codes/" + reg.Token,
		CreatedAt:    reg.CreatedAt,
	})
}

// CodeImage handles GET /api/codes/:token and streams the QR image.
func (h *Handler) CodeImage(c *gin.Context) {
	png, err := h.svc.CodeImage(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Fail(c, h.logger, "render code failed", err, "registration not found")
		return
	}
	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(200, "image/png", png)
}

// ListByForm handles GET /api/admin/forms/:id/registrations.
func (h *Handler) ListByForm(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid form id")
		return
	}
	list, err := h.svc.ListByForm(c.Request.Context(), formID)
	if err != nil {
		response.Fail(c, h.logger, "list registrations failed", err, "form not found")
		return
	}
	if list == nil {
		list = []models.Registration{}
	}
	response.OK(c, list)
}

// Stats handles GET /api/admin/forms/:id/stats.
func (h *Handler) Stats(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid form id")
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), formID)
	if err != nil {
		response.Fail(c, h.logger, "registration stats failed", err, "form not found")
		return
	}
	response.OK(c, stats)
}

// GetByID handles GET /api/admin/registrations/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, h.logger, "get registration failed", err, "registration not found")
		return
	}
	response.OK(c, reg)
}

// CodeURL handles GET /api/admin/registrations/:id/code-url.
func (h *Handler) CodeURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	url, err := h.svc.CodeURL(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, h.logger, "code download url failed", err, "code image not available")
		return
	}
	response.OK(c, gin.H{"registration_id": id, "url": url})
}
