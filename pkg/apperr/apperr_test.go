package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	ve := NewValidationError()
	require.NoError(t, ve.OrNil())

	ve.Add("name", "is required")
	ve.Add("name", "ignored")
	ve.Add("email", "must be a valid email address")

	err := fmt.Errorf("submit: %w", ve.OrNil())
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "validation failed: email: must be a valid email address; name: is required", ve.Error())
	assert.Equal(t, map[string]string{
		"name":  "is required",
		"email": "must be a valid email address",
	}, FieldErrors(err))
	assert.Nil(t, FieldErrors(ErrNotFound))
}

func TestIsExpected(t *testing.T) {
	assert.True(t, IsExpected(fmt.Errorf("get form: %w", ErrNotFound)))
	assert.True(t, IsExpected(NewValidationError()))
	assert.True(t, IsExpected(ErrConflict))
	assert.False(t, IsExpected(errors.New("connection reset")))
	assert.False(t, IsExpected(nil))
}
