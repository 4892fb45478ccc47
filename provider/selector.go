package provider

import (
	"context"
	"fmt"
)

// ErrNoneAvailable is returned when no candidate reports itself available.
var ErrNoneAvailable = fmt.Errorf("no available provider")

// FirstAvailable returns the first candidate, in order, whose IsAvailable
// reports true.
func FirstAvailable[T Provider](ctx context.Context, candidates ...T) (T, error) {
	for _, p := range candidates {
		if p.IsAvailable(ctx) {
			return p, nil
		}
	}
	var zero T
	return zero, ErrNoneAvailable
}
