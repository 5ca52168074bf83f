package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldType is the input kind of a form field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldTextarea FieldType = "textarea"
	FieldTel      FieldType = "tel"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldEmail, FieldNumber, FieldTextarea, FieldTel:
		return true
	}
	return false
}

// FieldSpec is one field in a registration form (admin-defined).
type FieldSpec struct {
	Name     string    `json:"name"`  // key for storing the answer, e.g. "company"
	Label    string    `json:"label"` // display label, e.g. "Company name"
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// Form is a registration form. At most one form is published at a time.
type Form struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Fields      []FieldSpec `json:"fields"`
	IsPublished bool        `json:"is_published"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Field returns the field named name.
func (f *Form) Field(name string) (FieldSpec, bool) {
	for _, fs := range f.Fields {
		if fs.Name == name {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// Clone returns a deep copy so stores can hand out forms without sharing the field slice.
func (f *Form) Clone() *Form {
	cp := *f
	cp.Fields = append([]FieldSpec(nil), f.Fields...)
	return &cp
}
