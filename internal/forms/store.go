package forms

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-webinar/eventdesk/internal/models"
)

// Store persists forms and the single published pointer. Implementations must
// make Publish and Unpublish atomic with respect to each other and to
// WhilePublished so that at most one form ever reads as published.
type Store interface {
	Create(ctx context.Context, f *models.Form) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Form, error)
	List(ctx context.Context) ([]models.Form, error)
	Update(ctx context.Context, id uuid.UUID, title string, fields []models.FieldSpec) (*models.Form, error)
	// Delete removes a form, failing with apperr.ErrConflict while regs reports
	// registrations for it. The check and the removal happen as one step.
	Delete(ctx context.Context, id uuid.UUID, regs RegistrationCounter) error
	// Publish points the published pointer at id, replacing any previous target.
	Publish(ctx context.Context, id uuid.UUID) (*models.Form, error)
	// Unpublish clears the pointer if it targets id; otherwise it is a no-op.
	Unpublish(ctx context.Context, id uuid.UUID) (*models.Form, error)
	// GetPublished returns the published form, or nil when none is published.
	GetPublished(ctx context.Context) (*models.Form, error)
}
