package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
		assert.NoError(t, MapError(nil))
	})

	t.Run("domain error passes through wrapping", func(t *testing.T) {
		base := NewValidationError("subject required", nil)
		got := ToDomainError(fmt.Errorf("create: %w", base))
		require.NotNil(t, got)
		assert.Equal(t, CodeValidation, got.Code)
		assert.Equal(t, http.StatusBadRequest, got.HTTPStatus)
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		got := ToDomainError(pgx.ErrNoRows)
		assert.Equal(t, CodeNotFound, got.Code)
	})

	t.Run("unique violation maps to conflict", func(t *testing.T) {
		got := ToDomainError(&pgconn.PgError{Code: "23505", ConstraintName: "tags_name_key"})
		assert.Equal(t, CodeConflict, got.Code)
		assert.Equal(t, "tags_name_key", got.Details["constraint"])
	})

	t.Run("unknown error is internal", func(t *testing.T) {
		cause := errors.New("boom")
		got := ToDomainError(cause)
		assert.Equal(t, CodeInternal, got.Code)
		assert.ErrorIs(t, got, cause)
	})
}

func TestHasCode(t *testing.T) {
	err := NewPartialFailure("tag created but not attached", map[string]any{"tag_id": "t1"}, errors.New("fk"))
	assert.True(t, HasCode(err, CodePartialFailure))
	assert.False(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodePartialFailure))
}

func TestBackendErrorKeepsMessage(t *testing.T) {
	err := NewBackendError(errors.New("connection refused"))
	assert.Equal(t, "connection refused", ToDomainError(err).Message)
}

func TestToDomainErrorMapsFiberErrors(t *testing.T) {
	got := ToDomainError(fiber.ErrNotFound)
	assert.Equal(t, CodeNotFound, got.Code)
	assert.Equal(t, http.StatusNotFound, got.HTTPStatus)

	got = ToDomainError(fiber.NewError(http.StatusRequestEntityTooLarge, "body too large"))
	assert.Equal(t, CodeValidation, got.Code)
	assert.Equal(t, "body too large", got.Message)
}
