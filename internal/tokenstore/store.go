package tokenstore

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("token store closed")

// Store persists the single bearer token of a device.
//
// After Save, Get returns exactly the saved value until the next Save or
// Delete. Delete on an empty store is a no-op.
type Store interface {
	Save(ctx context.Context, token string) error
	Get(ctx context.Context) (token string, ok bool, err error)
	Delete(ctx context.Context) error
	Close() error
}
