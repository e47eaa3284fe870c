package store

import (
	"context"
	"errors"
)

// canceledByCaller reports whether err is the caller's own cancellation.
// Deadlines are not: a store too slow for the caller's deadline counts as
// unavailable, like any other outage.
func canceledByCaller(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) && errors.Is(ctx.Err(), context.Canceled)
}
