package ports

import (
	"context"

	"go.trai.ch/loam/internal/core/domain"
)

// BuildInput is everything a backend needs to build one package. Backends
// write only under StageDir; the orchestrator promotes staged files into the
// real tree after a successful build, so a failed build leaves no partial
// writes behind.
type BuildInput struct {
	Descriptor *domain.PackageDescriptor

	// SourceDir is the unpacked package source.
	SourceDir string

	// StageDir is the scratch area the backend installs into. Its layout
	// mirrors the install tree.
	StageDir string

	// Tree is the eventual destination, passed for variable injection only.
	Tree domain.TreePaths

	// LuaIncDir and LuaLibDir locate the target runtime's headers and
	// libraries.
	LuaIncDir string
	LuaLibDir string
}

// BuildBackend turns package source into installed files. One implementation
// exists per build-spec variant; dispatch is by the descriptor's build type.
//
//go:generate mockgen -source=builder.go -destination=mocks/mock_builder.go -package=mocks
type BuildBackend interface {
	// Build produces the package's installed files under in.StageDir.
	// It must be side-effect-free on failure.
	Build(ctx context.Context, in BuildInput) (domain.InstalledFiles, error)
}

// BackendRegistry selects the backend for a build spec.
type BackendRegistry interface {
	// For returns the backend handling the given build type, or
	// domain.ErrUnsupportedBuildType.
	For(buildType domain.BuildType) (BuildBackend, error)
}
