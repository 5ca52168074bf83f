package forms

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/internal/auth"
	"github.com/aura-webinar/eventdesk/internal/metrics"
	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
)

// RegistrationCounter reports how many registrations reference a form.
type RegistrationCounter interface {
	CountByForm(ctx context.Context, formID uuid.UUID) (int, error)
}

// Service implements the form lifecycle on top of a Store.
type Service struct {
	store  Store
	regs   RegistrationCounter
	gate   auth.Gate
	logger *zap.Logger
}

// NewService creates a forms service.
func NewService(store Store, regs RegistrationCounter, gate auth.Gate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, regs: regs, gate: gate, logger: logger}
}

// CreateForm validates and stores a new unpublished form.
func (s *Service) CreateForm(ctx context.Context, title string, fields []models.FieldSpec) (*models.Form, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	fields, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}
	f := &models.Form{Title: strings.TrimSpace(title), Fields: fields}
	if err := s.store.Create(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info("form created", zap.String("form_id", f.ID.String()), zap.Int("fields", len(f.Fields)))
	return f, nil
}

// UpdateForm replaces a form's title and fields. Existing registrations keep
// the answers they were submitted with, even for fields that no longer exist.
func (s *Service) UpdateForm(ctx context.Context, id uuid.UUID, title string, fields []models.FieldSpec) (*models.Form, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	fields, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}
	f, err := s.store.Update(ctx, id, strings.TrimSpace(title), fields)
	if err != nil {
		return nil, err
	}
	s.logger.Info("form updated", zap.String("form_id", id.String()))
	return f, nil
}

// PublishForm makes id the only published form.
func (s *Service) PublishForm(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	f, err := s.store.Publish(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.FormPublishes.Inc()
	s.logger.Info("form published", zap.String("form_id", id.String()))
	return f, nil
}

// Unpublish closes id for submissions if it is the published form.
func (s *Service) Unpublish(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	f, err := s.store.Unpublish(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("form unpublished", zap.String("form_id", id.String()))
	return f, nil
}

// GetPublished returns the form open for submissions, or nil.
func (s *Service) GetPublished(ctx context.Context) (*models.Form, error) {
	return s.store.GetPublished(ctx)
}

// GetForm returns any form by id (admin).
func (s *Service) GetForm(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.GetByID(ctx, id)
}

// ListForms returns all forms, newest first (admin).
func (s *Service) ListForms(ctx context.Context) ([]models.Form, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.List(ctx)
}

// DeleteForm removes a form that nobody has registered against.
func (s *Service) DeleteForm(ctx context.Context, id uuid.UUID) error {
	if !s.gate.IsAdmin(ctx) {
		return apperr.ErrUnauthorized
	}
	if err := s.store.Delete(ctx, id, s.regs); err != nil {
		return err
	}
	s.logger.Info("form deleted", zap.String("form_id", id.String()))
	return nil
}

// normalizeFields trims names and labels, defaults type to text and rejects
// empty, duplicate or unknown-type fields.
func normalizeFields(fields []models.FieldSpec) ([]models.FieldSpec, error) {
	ve := apperr.NewValidationError()
	if len(fields) == 0 {
		ve.Add("fields", "at least one field is required")
		return nil, ve
	}
	out := make([]models.FieldSpec, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		key := fmt.Sprintf("fields[%d]", i)
		f.Name = strings.TrimSpace(f.Name)
		f.Label = strings.TrimSpace(f.Label)
		if f.Type == "" {
			f.Type = models.FieldText
		}
		switch {
		case f.Name == "":
			ve.Add(key, "name is required")
		case !f.Type.Valid():
			ve.Add(key, fmt.Sprintf("unknown type %q", f.Type))
		}
		if f.Name != "" {
			if _, dup := seen[f.Name]; dup {
				ve.Add(key, fmt.Sprintf("duplicate field name %q", f.Name))
			}
			seen[f.Name] = struct{}{}
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		out = append(out, f)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}
