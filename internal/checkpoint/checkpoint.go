// Package checkpoint remembers the newest record timestamp a report run has
// covered, so the next run can start after it.
package checkpoint

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no checkpoint has been saved yet.
var ErrNotFound = errors.New("checkpoint: not found")

// Store loads and saves named checkpoints.
type Store interface {
	Load(ctx context.Context, name string) (int64, error)
	Save(ctx context.Context, name string, last int64) error
}
