// Package store provides access to the flat-files object storage bucket.
package store

import (
	"context"
	"io"
)

// ObjectStore is the storage surface the downloader needs: listing keys under
// a prefix and fetching one object's byte stream. Errors carry typed codes
// from pkg/errors so callers can distinguish a missing object, denied access,
// and transport failures.
type ObjectStore interface {
	// List returns the keys under prefix, in storage order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Get returns the byte stream of one object. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
