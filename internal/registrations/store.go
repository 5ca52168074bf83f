package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/eventdesk/internal/models"
)

// ErrTokenTaken is returned by Store.Insert when the registration's token is
// already in use. The service re-mints and retries; it never reaches callers.
var ErrTokenTaken = errors.New("token already taken")

// ErrFormChanged is returned by Store.Insert when the published form was edited
// after the answers were validated. The service re-reads the form and validates again.
var ErrFormChanged = errors.New("form changed since validation")

// Store persists registrations.
type Store interface {
	// Insert stores reg if reg.FormID is the published form at the moment of
	// insertion (apperr.ErrNotFound otherwise). When formVersion is non-zero the
	// form's UpdatedAt must still equal it (ErrFormChanged otherwise). It assigns
	// ID and CreatedAt.
	Insert(ctx context.Context, reg *models.Registration, formVersion time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// ListByForm returns registrations in creation order.
	ListByForm(ctx context.Context, formID uuid.UUID) ([]models.Registration, error)
	FindByToken(ctx context.Context, token string) (*models.Registration, error)
	// CheckIn atomically moves the registration holding token from REGISTERED to
	// CHECKED_IN at time at. It reports whether this call made the transition;
	// when it did not, the returned registration carries the original check-in time.
	CheckIn(ctx context.Context, token string, at time.Time) (*models.Registration, bool, error)
	CountByForm(ctx context.Context, formID uuid.UUID) (int, error)
	Stats(ctx context.Context, formID uuid.UUID) (models.RegistrationStats, error)
	SetCodeObjectKey(ctx context.Context, id uuid.UUID, key string) error
}
