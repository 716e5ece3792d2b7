// Package objstore wraps the durable object store the engine materializes
// job artifacts into. The store is consumed as an opaque blob service
// addressed by key; its internal replication and consistency are not this
// engine's concern.
package objstore

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the requested key does not exist,
// e.g. when an artifact was purged externally.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectStore is the durable blob storage contract. Implementations must be
// safe for concurrent use.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, metadata map[string]string) error
	// Get returns a stream over the object. The caller owns the closer.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	ListPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}
