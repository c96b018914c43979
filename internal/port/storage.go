package port

import "context"

// ObjectStorage is an opaque key to bytes store. Keys are plain hierarchical
// strings; the last write wins.
type ObjectStorage interface {
	// Put writes body under key and returns a provider-specific reference.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	// Get returns domain.ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// Delete reports whether an object was removed.
	Delete(ctx context.Context, key string) (bool, error)
}

// StorageSelection picks an object-store provider and bucket for a tenant.
type StorageSelection struct {
	Provider string
	Bucket   string
}

// StorageResolver returns the object store a tenant's workflow writes to.
type StorageResolver interface {
	ForTenant(ctx context.Context, tenantID string, sel StorageSelection) (ObjectStorage, error)
}
