package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name:        "error without cause",
			appError:    NewAuthenticationError("wrong account or password"),
			wantMessage: "[AUTHENTICATION_FAILED] wrong account or password",
		},
		{
			name:        "error with cause",
			appError:    NewDriverError("browser start failed", fmt.Errorf("exec: not found")),
			wantMessage: "[DRIVER_UNAVAILABLE] browser start failed: exec: not found",
		},
		{
			name:        "entity not found",
			appError:    NewEntityNotFoundError("2600F"),
			wantMessage: `[ENTITY_NOT_FOUND] no entity matches "2600F"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_IsMatchesByType(t *testing.T) {
	err := fmt.Errorf("run failed: %w", NewDownloadTimeoutError("需求", nil))

	assert.True(t, stderrors.Is(err, ErrDownloadTimeout))
	assert.False(t, stderrors.Is(err, ErrRenameFailed))
	assert.Equal(t, ErrTypeDownloadTimeout, TypeOf(err))
}

func TestAppError_Unwrap(t *testing.T) {
	err := NewCancelledError(context.Canceled)

	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.True(t, stderrors.Is(err, ErrCancelled))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewRenameError("/tmp/a.xlsx", nil)
	require.NotNil(t, err.Context)
	assert.Equal(t, "/tmp/a.xlsx", err.Context["path"])

	err = (&AppError{Type: ErrTypeStorage}).WithContext("group", "zentao_export")
	assert.Equal(t, "zentao_export", err.Context["group"])
}

func TestTypeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}
