package forms

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/response"
)

// FormRequest is the body for POST /api/admin/forms and PUT /api/admin/forms/:id.
type FormRequest struct {
	Title  string             `json:"title"`
	Fields []models.FieldSpec `json:"fields" binding:"required"`
}

// Handler handles form HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a forms handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// GetPublished handles GET /api/published-form. Responds 204 when nothing is published.
func (h *Handler) GetPublished(c *gin.Context) {
	f, err := h.svc.GetPublished(c.Request.Context())
	if err != nil {
		response.Fail(c, h.logger, "get published form failed", err, "")
		return
	}
	if f == nil {
		response.NoContent(c)
		return
	}
	response.OK(c, f)
}

// Create handles POST /api/admin/forms.
func (h *Handler) Create(c *gin.Context) {
	var req FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	f, err := h.svc.CreateForm(c.Request.Context(), req.Title, req.Fields)
	if err != nil {
		response.Fail(c, h.logger, "create form failed", err, "")
		return
	}
	response.Created(c, f)
}

// List handles GET /api/admin/forms.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListForms(c.Request.Context())
	if err != nil {
		response.Fail(c, h.logger, "list forms failed", err, "")
		return
	}
	if list == nil {
		list = []models.Form{}
	}
	response.OK(c, list)
}

// GetByID handles GET /api/admin/forms/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	f, err := h.svc.GetForm(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, h.logger, "get form failed", err, "form not found")
		return
	}
	response.OK(c, f)
}

// Update handles PUT /api/admin/forms/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	var req FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	f, err := h.svc.UpdateForm(c.Request.Context(), id, req.Title, req.Fields)
	if err != nil {
		response.Fail(c, h.logger, "update form failed", err, "form not found")
		return
	}
	response.OK(c, f)
}

// Delete handles DELETE /api/admin/forms/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteForm(c.Request.Context(), id); err != nil {
		response.Fail(c, h.logger, "delete form failed", err, "form not found")
		return
	}
	response.NoContent(c)
}

// Publish handles POST /api/admin/forms/:id/publish.
func (h *Handler) Publish(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	f, err := h.svc.PublishForm(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, h.logger, "publish form failed", err, "form not found")
		return
	}
	response.OK(c, f)
}

// Unpublish handles POST /api/admin/forms/:id/unpublish.
func (h *Handler) Unpublish(c *gin.Context) {
	id, ok := formID(c)
	if !ok {
		return
	}
	f, err := h.svc.Unpublish(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, h.logger, "unpublish form failed", err, "form not found")
		return
	}
	response.OK(c, f)
}

func formID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid form id")
		return uuid.Nil, false
	}
	return id, true
}
