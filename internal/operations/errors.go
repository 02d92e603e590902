package operations

import (
	"context"
	"errors"
	"fmt"

	apperrors "zentaocli/internal/errors"
)

// ErrWorkerBusy is returned when a worker of the same kind is still running.
var ErrWorkerBusy = errors.New("a worker of this kind is already running")

// PanicError wraps a value recovered from a worker goroutine.
type PanicError struct {
	Kind  Kind
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s worker panicked: %v", e.Kind, e.Value)
}

// normalize converts context errors into Cancelled and leaves every other
// error untouched.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.TypeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.NewCancelledError(err)
	}
	return err
}

// failureMessage is the one-line summary put on a failed Completion.
func failureMessage(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return "Unexpected internal error"
	}

	switch apperrors.TypeOf(err) {
	case apperrors.ErrTypeDriverUnavailable:
		return "Browser failed to start"
	case apperrors.ErrTypeAuthentication:
		return "Login failed, check account and password"
	case apperrors.ErrTypeLoginTimeout:
		return "Login timed out"
	case apperrors.ErrTypeEntityNotFound:
		var ae *apperrors.AppError
		if errors.As(err, &ae) {
			if name, ok := ae.Context["entity"].(string); ok {
				return fmt.Sprintf("Product %q not found", name)
			}
		}
		return "Product not found"
	case apperrors.ErrTypeDownloadTimeout:
		return "Export download timed out"
	case apperrors.ErrTypeRenameFailed:
		return "Could not rename the downloaded file"
	case apperrors.ErrTypeSpreadsheetIO:
		return "Spreadsheet operation failed"
	case apperrors.ErrTypeValidation:
		return "Invalid input"
	case apperrors.ErrTypeCancelled:
		return "Cancelled"
	default:
		return "Task failed: " + err.Error()
	}
}
