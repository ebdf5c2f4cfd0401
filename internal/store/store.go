// Package store is the document store boundary: raw form bytes in,
// filled document bytes out. The fill pipeline treats documents as
// opaque blobs.
package store

import "context"

// Store loads and saves documents by key. Keys are paths for the
// local store and object names for the S3 store.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
