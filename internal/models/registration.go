package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the check-in state of a registration.
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "REGISTERED"
	StatusCheckedIn  RegistrationStatus = "CHECKED_IN"
)

// Registration is one person's answers to a form plus their verification token.
type Registration struct {
	ID            uuid.UUID          `json:"id"`
	FormID        uuid.UUID          `json:"form_id"`
	Answers       map[string]string  `json:"answers"`
	Token         string             `json:"token"`
	Status        RegistrationStatus `json:"status"`
	CheckedInAt   *time.Time         `json:"checked_in_at,omitempty"`
	CodeObjectKey *string            `json:"code_object_key,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// CheckedIn reports whether the registration has already been used at the entrance.
func (r *Registration) CheckedIn() bool { return r.Status == StatusCheckedIn }

// Clone returns a deep copy.
func (r *Registration) Clone() *Registration {
	cp := *r
	if r.Answers != nil {
		cp.Answers = make(map[string]string, len(r.Answers))
		for k, v := range r.Answers {
			cp.Answers[k] = v
		}
	}
	if r.CheckedInAt != nil {
		t := *r.CheckedInAt
		cp.CheckedInAt = &t
	}
	if r.CodeObjectKey != nil {
		k := *r.CodeObjectKey
		cp.CodeObjectKey = &k
	}
	return &cp
}

// RegistrationStats summarizes registrations for a form.
type RegistrationStats struct {
	FormID    uuid.UUID `json:"form_id"`
	Total     int       `json:"total"`
	CheckedIn int       `json:"checked_in"`
}
