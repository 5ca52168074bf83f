package forms

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
)

// InMemory is a Store for development and tests. The published pointer lives
// beside the form map under one RWMutex, so publishing is a single swap.
type InMemory struct {
	mu        sync.RWMutex
	forms     map[uuid.UUID]*models.Form
	published uuid.UUID
	now       func() time.Time
}

// NewInMemory creates an empty in-memory form store.
func NewInMemory() *InMemory {
	return &InMemory{forms: make(map[uuid.UUID]*models.Form), now: time.Now}
}

func (s *InMemory) Create(_ context.Context, f *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	f.ID = uuid.New()
	f.CreatedAt = now
	f.UpdatedAt = now
	f.IsPublished = false
	s.forms[f.ID] = f.Clone()
	return nil
}

func (s *InMemory) GetByID(_ context.Context, id uuid.UUID) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view(id)
}

func (s *InMemory) List(_ context.Context) ([]models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.Form, 0, len(s.forms))
	for id := range s.forms {
		f, _ := s.view(id)
		list = append(list, *f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (s *InMemory) Update(_ context.Context, id uuid.UUID, title string, fields []models.FieldSpec) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, fmt.Errorf("update form %s: %w", id, apperr.ErrNotFound)
	}
	f.Title = title
	f.Fields = append([]models.FieldSpec(nil), fields...)
	// UpdatedAt doubles as the form version, so it must move on every edit.
	now := s.now().UTC()
	if !now.After(f.UpdatedAt) {
		now = f.UpdatedAt.Add(time.Nanosecond)
	}
	f.UpdatedAt = now
	return s.view(id)
}

// Delete counts registrations while holding the write lock. Inserts run under
// WhilePublished's read lock, so none can land between the count and the removal.
func (s *InMemory) Delete(ctx context.Context, id uuid.UUID, regs RegistrationCounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[id]; !ok {
		return fmt.Errorf("delete form %s: %w", id, apperr.ErrNotFound)
	}
	if regs != nil {
		n, err := regs.CountByForm(ctx, id)
		if err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("form has %d registrations: %w", n, apperr.ErrConflict)
		}
	}
	delete(s.forms, id)
	if s.published == id {
		s.published = uuid.Nil
	}
	return nil
}

func (s *InMemory) Publish(_ context.Context, id uuid.UUID) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[id]; !ok {
		return nil, fmt.Errorf("publish form %s: %w", id, apperr.ErrNotFound)
	}
	s.published = id
	return s.view(id)
}

func (s *InMemory) Unpublish(_ context.Context, id uuid.UUID) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[id]; !ok {
		return nil, fmt.Errorf("unpublish form %s: %w", id, apperr.ErrNotFound)
	}
	if s.published == id {
		s.published = uuid.Nil
	}
	return s.view(id)
}

func (s *InMemory) GetPublished(_ context.Context) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.published == uuid.Nil {
		return nil, nil
	}
	return s.view(s.published)
}

// WhilePublished runs fn while holding the pointer and the form steady, but only
// if formID is the published form. fn receives the form's UpdatedAt. The
// in-memory registration store uses it to make "is this form still open" and
// "insert" one step.
func (s *InMemory) WhilePublished(_ context.Context, formID uuid.UUID, fn func(version time.Time) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.published == uuid.Nil || s.published != formID {
		return fmt.Errorf("form %s is not published: %w", formID, apperr.ErrNotFound)
	}
	return fn(s.forms[formID].UpdatedAt)
}

// view returns a copy of the form with IsPublished derived from the pointer. Callers hold mu.
func (s *InMemory) view(id uuid.UUID) (*models.Form, error) {
	f, ok := s.forms[id]
	if !ok {
		return nil, fmt.Errorf("form %s: %w", id, apperr.ErrNotFound)
	}
	cp := f.Clone()
	cp.IsPublished = s.published == id
	return cp, nil
}
