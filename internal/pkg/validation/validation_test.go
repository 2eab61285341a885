package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgageos/internal/core/domain"
)

type sample struct {
	Email string   `json:"email" validate:"required,email"`
	State string   `json:"propertyState" validate:"required,len=2"`
	Value *float64 `json:"estimatedValue" validate:"omitempty,gte=10000"`
}

func TestStructOK(t *testing.T) {
	v := 450000.0
	assert.NoError(t, Struct(sample{Email: "a@b.com", State: "TX", Value: &v}))
	assert.NoError(t, Struct(&sample{Email: "a@b.com", State: "CA"}))
}

func TestStructFailures(t *testing.T) {
	low := 500.0
	err := Struct(sample{Email: "nope", State: "Texas", Value: &low})
	require.Error(t, err)

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeValidation, de.Code)
	assert.Equal(t, 400, de.Status)
	assert.Contains(t, de.Message, "email must be a valid email")
	assert.Contains(t, de.Message, "propertyState must be 2 characters")
	assert.Contains(t, de.Message, "estimatedValue must be >= 10000")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStructRequired(t *testing.T) {
	err := Struct(sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}
