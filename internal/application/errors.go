package application

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/resilience"
)

// toAppError maps domain sentinel errors onto the HTTP-facing taxonomy.
// Anything unrecognised is returned unchanged and renders as a 500.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAppError(err) {
		return err
	}

	msg := err.Error()
	switch {
	case stderrors.Is(err, domain.ErrNotFound):
		return errors.NewAppError(errors.CodeNotFound, msg, http.StatusNotFound).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidStateTransition):
		return errors.ErrInvalidStateTransition(msg).Wrap(err)
	case stderrors.Is(err, domain.ErrOwnershipMismatch):
		return errors.ErrOwnershipMismatch(msg).Wrap(err)
	case stderrors.Is(err, domain.ErrCapacityExceeded):
		return errors.ErrCapacityExceeded(msg).Wrap(err)
	case stderrors.Is(err, domain.ErrClaimConflict), stderrors.Is(err, domain.ErrConcurrentModification):
		return errors.ErrConflict(msg).Wrap(err)
	case stderrors.Is(err, domain.ErrInvalidQuantity), stderrors.Is(err, domain.ErrInvalidArgument):
		return errors.ErrValidation(msg).Wrap(err)
	default:
		return err
	}
}

// conflictRetry replays a read-modify-write that lost a version check. Each
// attempt must reload the aggregate it writes.
var conflictRetry = &resilience.RetryConfig{
	MaxAttempts:   resilience.DefaultRetryMaxAttempts,
	InitialDelay:  5 * time.Millisecond,
	MaxDelay:      50 * time.Millisecond,
	BackoffFactor: resilience.DefaultRetryBackoffFactor,
	RetryableErrors: func(err error) bool {
		return stderrors.Is(err, domain.ErrConcurrentModification)
	},
}

// retryOnConflict runs fn until it stops losing version checks. A conflict
// that outlasts the retries surfaces as CONFLICT.
func retryOnConflict[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := resilience.RetryWithResult(ctx, conflictRetry, fn)
	if stderrors.Is(err, domain.ErrConcurrentModification) {
		return result, toAppError(err)
	}
	return result, err
}
