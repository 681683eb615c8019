package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type childInput struct {
	IndexNo   string `validate:"required,notblank"`
	FirstName string `validate:"required"`
	Grade     string `validate:"required,grade"`
	Email     string `validate:"omitempty,email"`
}

func newValidate(t *testing.T) *validator.Validate {
	v := validator.New()
	require.NoError(t, RegisterOn(v))
	return v
}

func TestGradeTag(t *testing.T) {
	v := newValidate(t)

	assert.NoError(t, v.Struct(childInput{IndexNo: "S-1", FirstName: "Amina", Grade: "Form III"}))

	err := v.Struct(childInput{IndexNo: "S-1", FirstName: "Amina", Grade: "Form V"})
	require.Error(t, err)
	assert.Equal(t, "Grade must be one of Form I, Form II, Form III, Form IV", FormatValidationError(err))
}

func TestFormatValidationError_JoinsFields(t *testing.T) {
	v := newValidate(t)

	err := v.Struct(childInput{IndexNo: "   ", Grade: "Form I", Email: "nope"})
	require.Error(t, err)

	msg := FormatValidationError(err)
	assert.Contains(t, msg, "Index number is required")
	assert.Contains(t, msg, "First name is required")
	assert.Contains(t, msg, "Email must be a valid email address")
}

func TestReactionKindTag(t *testing.T) {
	v := newValidate(t)
	type reactInput struct {
		Kind string `validate:"required,reaction_kind"`
	}

	assert.NoError(t, v.Struct(reactInput{Kind: "like"}))
	assert.NoError(t, v.Struct(reactInput{Kind: "dislike"}))

	err := v.Struct(reactInput{Kind: "love"})
	require.Error(t, err)
	assert.Equal(t, "Reaction must be like or dislike", FormatValidationError(err))
}
