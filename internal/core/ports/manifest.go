// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/loam/internal/core/domain"
)

// ManifestClient is the registry boundary: the manifest index and individual
// package descriptors. Responses for a given (name, version) are immutable
// and cacheable for the duration of one resolution session; the resolver
// must never observe a descriptor changing mid-resolution.
//
//go:generate mockgen -source=manifest.go -destination=mocks/mock_manifest.go -package=mocks
type ManifestClient interface {
	// ListVersions returns every known version of a package, ascending.
	// Fails with domain.ErrNotFound, domain.ErrNetwork or
	// domain.ErrMalformedIndex.
	ListVersions(ctx context.Context, name domain.PackageName) ([]domain.Version, error)

	// FetchDescriptor returns the parsed descriptor for one exact version.
	FetchDescriptor(ctx context.Context, name domain.PackageName, version domain.Version) (*domain.PackageDescriptor, error)

	// FetchSource downloads the source artifact for a descriptor into the
	// local store and returns its path and integrity digest.
	FetchSource(ctx context.Context, desc *domain.PackageDescriptor) (SourceArtifact, error)
}

// SourceArtifact is a fetched, digest-verified source archive on local disk.
type SourceArtifact struct {
	Path      string
	Integrity string
}
