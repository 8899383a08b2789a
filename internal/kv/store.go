package kv

import (
	"context"
	"time"
)

// Store is the minimal key-value contract required by the result cache and
// the task ledger: point reads, TTL'd writes and ordered list appends. Any
// store with expiry and list-append support satisfies it.
type Store interface {
	// Get returns the value for key. A missing or expired key is reported
	// as ok=false with a nil error; err is reserved for store faults.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SetEx writes value under key with the given TTL, overwriting any
	// existing entry and refreshing its expiry.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// RPush appends value to the ordered list stored at key, creating the
	// list if absent.
	RPush(ctx context.Context, key, value string) error

	// LRange returns list elements in [start, stop], inclusive, with -1
	// addressing the last element.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	Close() error
}
