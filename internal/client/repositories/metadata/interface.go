// Package metadata stores small client settings as key/value pairs, such as
// the last opened document or the time of the last refetch per document.
package metadata

import (
	"context"
	"time"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)

	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string) error

	// GetTime returns the zero time when the key is absent.
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}
