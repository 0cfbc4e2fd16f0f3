package response

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestOK(t *testing.T) {
	t.Parallel()

	r := OK()
	require.Equal(t, StatusOK, r.Status)
	require.Empty(t, r.Error)
}

func TestError(t *testing.T) {
	t.Parallel()

	r := Error("boom")
	require.Equal(t, StatusError, r.Status)
	require.Equal(t, "boom", r.Error)
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	type req struct {
		Email string `validate:"required,email"`
		Name  string `validate:"required"`
	}

	err := validator.New().Struct(req{Email: "not-an-email"})
	require.Error(t, err)

	r := ValidationError(err.(validator.ValidationErrors))
	require.Equal(t, StatusError, r.Status)
	require.Contains(t, r.Error, "field Email is not a valid email")
	require.Contains(t, r.Error, "field Name is required")
}
