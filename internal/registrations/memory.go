package registrations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
)

// PublicationGuard runs fn only while formID is the published form and keeps it
// published and unedited until fn returns. fn receives the form's UpdatedAt.
// forms.InMemory implements it.
type PublicationGuard interface {
	WhilePublished(ctx context.Context, formID uuid.UUID, fn func(version time.Time) error) error
}

// entry guards one registration. The store's map lock is held only to find an
// entry; status changes lock the entry alone, so check-ins for different tokens
// never contend.
type entry struct {
	mu  sync.Mutex
	reg *models.Registration
}

func (e *entry) snapshot() *models.Registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Clone()
}

// InMemory is a Store for development and tests.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*entry
	byToken map[string]*entry
	byForm  map[uuid.UUID][]*entry
	guard   PublicationGuard
	now     func() time.Time
}

// NewInMemory creates an empty in-memory registration store gated by guard.
func NewInMemory(guard PublicationGuard) *InMemory {
	return &InMemory{
		byID:    make(map[uuid.UUID]*entry),
		byToken: make(map[string]*entry),
		byForm:  make(map[uuid.UUID][]*entry),
		guard:   guard,
		now:     time.Now,
	}
}

func (s *InMemory) Insert(ctx context.Context, reg *models.Registration, formVersion time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.guard.WhilePublished(ctx, reg.FormID, func(version time.Time) error {
		if !formVersion.IsZero() && !version.Equal(formVersion) {
			return ErrFormChanged
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, taken := s.byToken[reg.Token]; taken {
			return ErrTokenTaken
		}
		reg.ID = uuid.New()
		reg.CreatedAt = s.now().UTC()
		e := &entry{reg: reg.Clone()}
		s.byID[reg.ID] = e
		s.byToken[reg.Token] = e
		s.byForm[reg.FormID] = append(s.byForm[reg.FormID], e)
		return nil
	})
}

func (s *InMemory) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.mu.RLock()
	e, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registration %s: %w", id, apperr.ErrNotFound)
	}
	return e.snapshot(), nil
}

func (s *InMemory) ListByForm(_ context.Context, formID uuid.UUID) ([]models.Registration, error) {
	s.mu.RLock()
	entries := append([]*entry(nil), s.byForm[formID]...)
	s.mu.RUnlock()
	list := make([]models.Registration, 0, len(entries))
	for _, e := range entries {
		list = append(list, *e.snapshot())
	}
	return list, nil
}

func (s *InMemory) FindByToken(_ context.Context, token string) (*models.Registration, error) {
	s.mu.RLock()
	e, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registration by token: %w", apperr.ErrNotFound)
	}
	return e.snapshot(), nil
}

func (s *InMemory) CheckIn(ctx context.Context, token string, at time.Time) (*models.Registration, bool, error) {
	s.mu.RLock()
	e, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, false, fmt.Errorf("registration by token: %w", apperr.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reg.CheckedIn() {
		return e.reg.Clone(), false, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	t := at.UTC()
	e.reg.Status = models.StatusCheckedIn
	e.reg.CheckedInAt = &t
	return e.reg.Clone(), true, nil
}

func (s *InMemory) CountByForm(_ context.Context, formID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byForm[formID]), nil
}

func (s *InMemory) Stats(_ context.Context, formID uuid.UUID) (models.RegistrationStats, error) {
	s.mu.RLock()
	entries := append([]*entry(nil), s.byForm[formID]...)
	s.mu.RUnlock()
	stats := models.RegistrationStats{FormID: formID, Total: len(entries)}
	for _, e := range entries {
		if e.snapshot().CheckedIn() {
			stats.CheckedIn++
		}
	}
	return stats, nil
}

func (s *InMemory) SetCodeObjectKey(_ context.Context, id uuid.UUID, key string) error {
	s.mu.RLock()
	e, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("registration %s: %w", id, apperr.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg.CodeObjectKey = &key
	return nil
}
