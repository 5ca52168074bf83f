// Package checkin verifies scanned codes at the entrance and moves
// registrations from REGISTERED to CHECKED_IN at most once.
package checkin

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/internal/auth"
	"github.com/aura-webinar/eventdesk/internal/metrics"
	"github.com/aura-webinar/eventdesk/internal/models"
	"github.com/aura-webinar/eventdesk/internal/realtime"
	"github.com/aura-webinar/eventdesk/pkg/apperr"
)

// Outcome is the result of a scan that matched a registration.
type Outcome string

const (
	OutcomeCheckedIn        Outcome = "CHECKED_IN"
	OutcomeAlreadyCheckedIn Outcome = "ALREADY_CHECKED_IN"
)

// Result reports what a scan did. Registration always carries the stored
// check-in time, which for a repeat scan is the time of the first one.
type Result struct {
	Status       Outcome              `json:"status"`
	Registration *models.Registration `json:"registration"`
}

// Store performs the conditional status transition.
type Store interface {
	CheckIn(ctx context.Context, token string, at time.Time) (*models.Registration, bool, error)
}

// Decoder extracts the token from a scanned payload.
type Decoder interface {
	Decode(payload string) (string, error)
}

// EventPublisher receives successful check-ins for live dashboards.
type EventPublisher interface {
	PublishCheckIn(ctx context.Context, ev realtime.CheckInEvent) error
}

// Service is the check-in state machine.
type Service struct {
	store  Store
	codes  Decoder
	gate   auth.Gate
	events EventPublisher
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a check-in service. events may be nil.
func NewService(store Store, codes Decoder, gate auth.Gate, events EventPublisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, codes: codes, gate: gate, events: events, now: time.Now, logger: logger}
}

// CheckIn validates a scanned payload and checks its registration in. A repeat
// scan is not an error: it yields OutcomeAlreadyCheckedIn with the original time.
func (s *Service) CheckIn(ctx context.Context, payload string) (*Result, error) {
	if !s.gate.IsAdmin(ctx) {
		return nil, apperr.ErrUnauthorized
	}
	token, err := s.codes.Decode(payload)
	if err != nil {
		metrics.CheckIns.WithLabelValues(metrics.OutcomeMalformed).Inc()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg, transitioned, err := s.store.CheckIn(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			metrics.CheckIns.WithLabelValues(metrics.OutcomeNotFound).Inc()
		}
		return nil, err
	}
	if !transitioned {
		metrics.CheckIns.WithLabelValues(metrics.OutcomeAlreadyCheckedIn).Inc()
		s.logger.Info("repeat scan", zap.String("registration_id", reg.ID.String()))
		return &Result{Status: OutcomeAlreadyCheckedIn, Registration: reg}, nil
	}

	metrics.CheckIns.WithLabelValues(metrics.OutcomeCheckedIn).Inc()
	s.logger.Info("attendee checked in",
		zap.String("registration_id", reg.ID.String()),
		zap.String("form_id", reg.FormID.String()),
	)
	if s.events != nil {
		ev := realtime.CheckInEvent{
			RegistrationID: reg.ID,
			FormID:         reg.FormID,
			CheckedInAt:    *reg.CheckedInAt,
			Answers:        reg.Answers,
		}
		if err := s.events.PublishCheckIn(ctx, ev); err != nil {
			s.logger.Warn("publish check-in event failed", zap.Error(err), zap.String("registration_id", reg.ID.String()))
		}
	}
	return &Result{Status: OutcomeCheckedIn, Registration: reg}, nil
}
