package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid", InvalidInput("bad %s", "name"), KindInvalidInput},
		{"conflict", Conflict("exists"), KindConflict},
		{"not found", NotFound("missing"), KindNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", NotFound("missing")), KindNotFound},
		{"plain error", errors.New("boom"), KindInternal},
		{"internal", Internal(errors.New("disk"), "write failed"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Status(KindInvalidInput))
	assert.Equal(t, http.StatusBadRequest, Status(KindConflict))
	assert.Equal(t, http.StatusNotFound, Status(KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, Status(KindInternal))
}

func TestInternalMessageIncludesCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := Internal(cause, "Error saving cost data")
	assert.Equal(t, "Error saving cost data: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestIs(t *testing.T) {
	assert.True(t, Is(NotFound("x"), KindNotFound))
	assert.False(t, Is(nil, KindInternal))
	assert.False(t, Is(Conflict("x"), KindNotFound))
}
