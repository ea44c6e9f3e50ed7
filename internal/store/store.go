// Package store defines the session state store contract and the state
// encodings shared by its backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/DTPriya20/click-gait/pkg/models"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store closed")

// DefaultTTL is how long an untouched session survives in stores that expire.
const DefaultTTL = 30 * time.Minute

// Store keeps one SessionState per opaque session key.
//
// Get returns (nil, nil) when the key has no state. Stores do not provide
// per-key exclusivity; callers serialise read-modify-write cycles per key.
type Store interface {
	Get(ctx context.Context, key string) (*models.SessionState, error)
	Put(ctx context.Context, key string, state *models.SessionState) error
	Delete(ctx context.Context, key string) error
	Close() error
}
