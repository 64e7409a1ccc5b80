// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"context"
	"errors"

	"github.com/taibuivan/kinship/internal/platform/apperr"
)

// DefaultAttempts is the read-decide-write budget used by the engines.
const DefaultAttempts = 3

// RetryOnConflict runs fn until it returns something other than [ErrConflict],
// at most attempts times.
//
// fn must re-read every document it writes: a retry is a full read-decide-write
// cycle, never a blind re-send of the previous write. The last ErrConflict is
// returned when the budget is exhausted.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}

	return err
}

// ToAppError converts store errors into the API error taxonomy.
//
// Errors that already are an [apperr.AppError] pass through unchanged.
func ToAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case apperr.IsAppError(err):
		return err
	case errors.Is(err, ErrConflict):
		return apperr.Conflict("The resource was modified concurrently, please retry").WithCause(err)
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("Resource").WithCause(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.ServiceUnavailable("The request was cancelled before it completed").WithCause(err)
	default:
		return apperr.Internal(err)
	}
}
