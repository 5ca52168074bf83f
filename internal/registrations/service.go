package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/internal/auth"
	"github.com/aura-webinar/eventdesk/internal/codes"
	"github.com/aura-webinar/eventdesk/internal/metrics"
	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
	"github.com/aura-webinar/eventdesk/pkg/queue"
)

const (
	// maxMintAttempts bounds re-minting after token collisions.
	maxMintAttempts = 5
	// maxFormReloads bounds revalidation when the form is edited mid-submission.
	maxFormReloads = 3
)

// PublishedForms returns the form currently open for submissions.
type PublishedForms interface {
	GetPublished(ctx context.Context) (*models.Form, error)
}

// CodeService mints tokens and turns them into scannable payloads and images.
type CodeService interface {
	Mint() (string, error)
	Encode(token string) string
	RenderPNG(payload string) ([]byte, error)
}

// ArchiveQueue schedules background archiving of a registration's QR image.
type ArchiveQueue interface {
	EnqueueCodeArchive(ctx context.Context, payload queue.CodeArchivePayload) error
}

// Presigner issues time-limited download URLs for archived QR images.
type Presigner interface {
	PresignCodeDownload(ctx context.Context, key string) (string, error)
}

// Submission is the result of a successful public registration.
type Submission struct {
	Registration *models.Registration
	CodePayload  string
}

// Service implements public submission and admin registration queries.
type Service struct {
	store     Store
	forms     PublishedForms
	codes     CodeService
	gate      auth.Gate
	archive   ArchiveQueue
	presigner Presigner
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewService creates a registrations service. archive and presigner may be nil
// when QR archiving is not configured.
func NewService(store Store, forms PublishedForms, codes CodeService, gate auth.Gate, archive ArchiveQueue, presigner Presigner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		forms:     forms,
		codes:     codes,
		gate:      gate,
		archive:   archive,
		presigner: presigner,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Submit registers answers against formID, which must be the published form.
func (s *Service) Submit(ctx context.Context, formID uuid.UUID, answers map[string]string) (*Submission, error) {
	var reg *models.Registration
	var err error
	for reload := 0; ; reload++ {
		reg, err = s.submitOnce(ctx, formID, answers)
		if !errors.Is(err, ErrFormChanged) {
			break
		}
		if reload == maxFormReloads {
			return nil, fmt.Errorf("form %s kept changing during submission: %w", formID, apperr.ErrConflict)
		}
		s.logger.Debug("form edited during submission, validating again", zap.String("form_id", formID.String()))
	}
	if err != nil {
		return nil, err
	}

	metrics.Registrations.Inc()
	s.logger.Info("registration created", zap.String("registration_id", reg.ID.String()), zap.String("form_id", formID.String()))
	if s.archive != nil {
		if err := s.archive.EnqueueCodeArchive(ctx, queue.CodeArchivePayload{RegistrationID: reg.ID, FormID: formID}); err != nil {
			s.logger.Warn("enqueue code archive failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}
	return &Submission{Registration: reg, CodePayload: s.codes.Encode(reg.Token)}, nil
}

// submitOnce validates answers against the current published form and inserts
// them pinned to that form's version.
func (s *Service) submitOnce(ctx context.Context, formID uuid.UUID, answers map[string]string) (*models.Registration, error) {
	form, err := s.forms.GetPublished(ctx)
	if err != nil {
		return nil, err
	}
	if form == nil || form.ID != formID {
		metrics.RejectedSubmissions.WithLabelValues("not_published").Inc()
		return nil, fmt.Errorf("form %s is not open for registration: %w", formID, apperr.ErrNotFound)
	}
	clean, err := s.checkAnswers(form, answers)
	if err != nil {
		metrics.RejectedSubmissions.WithLabelValues("validation").Inc()
		return nil, err
	}

	reg := &models.Registration{FormID: formID, Answers: clean, Status: models.StatusRegistered}
	for attempt := 1; ; attempt++ {
		reg.Token, err = s.codes.Mint()
		if err != nil {
			return nil, fmt.Errorf("mint token: %w", err)
		}
		err = s.store.Insert(ctx, reg, form.UpdatedAt)
		if !errors.Is(err, ErrTokenTaken) {
			break
		}
		metrics.TokenCollisions.Inc()
		s.logger.Warn("token collision, re-minting", zap.Int("attempt", attempt))
		if attempt == maxMintAttempts {
			return nil, fmt.Errorf("no unique token after %d attempts", attempt)
		}
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.RejectedSubmissions.WithLabelValues("not_published").Inc()
		}
		return nil, err
	}
	return reg, nil
}

// checkAnswers enforces the form schema: required fields present and non-blank,
// no unknown fields, and well-formed email and number values.
func (s *Service) checkAnswers(form *models.Form, answers map[string]string) (map[string]string, error) {
	ve := apperr.NewValidationError()
	for name := range answers {
		if _, ok := form.Field(name); !ok {
			ve.Add(name, "unknown field")
		}
	}
	clean := make(map[string]string, len(form.Fields))
	for _, f := range form.Fields {
		v, ok := answers[f.Name]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			if f.Required {
				ve.Add(f.Name, "is required")
			}
			continue
		}
		switch f.Type {
		case models.FieldEmail:
			if s.validate.Var(v, "email") != nil {
				ve.Add(f.Name, "must be a valid email address")
			}
		case models.FieldNumber:
			if s.validate.Var(v, "numeric") != nil {
				ve.Add(f.Name, "must be a number")
			}
		}
		clean[f.Name] = v
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	return clean, nil
}

// Get returns a registration by id (admin).
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.GetByID(ctx, id)
}

// ListByForm returns a form's registrations in submission order (admin).
func (s *Service) ListByForm(ctx context.Context, formID uuid.UUID) ([]models.Registration, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.ListByForm(ctx, formID)
}

// Stats returns registration counts for a form (admin).
func (s *Service) Stats(ctx context.Context, formID uuid.UUID) (models.RegistrationStats, error) {
	if !s.gate.IsAdmin(ctx) {
		return models.RegistrationStats{}, apperr.ErrUnauthorized
	}
	return s.store.Stats(ctx, formID)
}

// FindByToken looks a registration up by its token.
func (s *Service) FindByToken(ctx context.Context, token string) (*models.Registration, error) {
	return s.store.FindByToken(ctx, token)
}

// CodeImage renders the QR image for token. The token itself is the credential,
// so this is public.
func (s *Service) CodeImage(ctx context.Context, token string) ([]byte, error) {
	if !codes.ValidToken(token) {
		return nil, apperr.ErrMalformedCode
	}
	reg, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.codes.RenderPNG(s.codes.Encode(reg.Token))
}

// CodeURL returns a presigned URL for the archived QR image (admin).
func (s *Service) CodeURL(ctx context.Context, id uuid.UUID) (string, error) {
	if !s.gate.IsAdmin(ctx) {
		return "", apperr.ErrUnauthorized
	}
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if s.presigner == nil || reg.CodeObjectKey == nil {
		return "", fmt.Errorf("code image not archived: %w", apperr.ErrNotFound)
	}
	return s.presigner.PresignCodeDownload(ctx, *reg.CodeObjectKey)
}
