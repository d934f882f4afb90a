package ports

import "io"

// SourceStore is the content-addressed archive store backing the manifest
// client's source cache. Digests are "sha256-<hex>".
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type SourceStore interface {
	// Put stores the stream and returns its on-disk path and digest.
	Put(r io.Reader, hint string) (path string, digest string, err error)

	// Lookup returns the path for a digest if the artifact is cached.
	Lookup(digest string) (path string, ok bool)

	// Verify recomputes the digest of the artifact at path and compares it.
	// A mismatch is domain.ErrIntegrityViolation.
	Verify(path, digest string) error
}
