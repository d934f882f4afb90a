package ports

import (
	"context"

	"go.trai.ch/loam/internal/core/domain"
)

// WorkDirs locates the scratch areas for one package build.
type WorkDirs struct {
	// SourceDir is the unpacked package source, with the descriptor's
	// source directory override already applied.
	SourceDir string

	// StageDir is the scratch area the build stages installed files into.
	StageDir string
}

// Workspace manages scratch build areas and the install tree. Promotion is
// the only operation that mutates the tree; everything before it happens in
// scratch space, so a failed or cancelled build never leaves partial state
// behind.
//
//go:generate mockgen -source=workspace.go -destination=mocks/mock_workspace.go -package=mocks
type Workspace interface {
	// Installed reports whether the exact package version is already present
	// in the tree.
	Installed(name domain.PackageName, version domain.Version) bool

	// Prepare unpacks the source artifact into a fresh scratch area.
	Prepare(ctx context.Context, node *domain.ResolvedNode, artifact SourceArtifact) (WorkDirs, error)

	// Promote moves staged files into the tree and records the package's
	// file manifest. Fails with domain.ErrTreeWrite.
	Promote(node *domain.ResolvedNode, files domain.InstalledFiles) error

	// Discard drops the scratch area for a package. Safe to call when
	// Prepare never ran.
	Discard(node *domain.ResolvedNode)

	// Remove deletes an installed package version and the files its manifest
	// lists. Fails with domain.ErrNotInstalled when the version is absent.
	Remove(name domain.PackageName, version domain.Version) error
}
