package domain

import "go.trai.ch/zerr"

var (
	// ErrVersionParse is returned when a version string cannot be parsed.
	ErrVersionParse = zerr.New("invalid version")

	// ErrConstraintParse is returned when a constraint expression cannot be parsed.
	ErrConstraintParse = zerr.New("invalid version constraint")

	// ErrNameParse is returned when a package name is malformed.
	ErrNameParse = zerr.New("invalid package name")

	// ErrDependencyParse is returned when a dependency declaration cannot be split
	// into a package name and a constraint expression.
	ErrDependencyParse = zerr.New("invalid dependency declaration")

	// ErrNotFound is returned when the registry has no entry for a package or version.
	ErrNotFound = zerr.New("package not found")

	// ErrNetwork is returned when a registry request fails after the retry budget
	// is exhausted.
	ErrNetwork = zerr.New("registry request failed")

	// ErrMalformedIndex is returned when the registry manifest or a descriptor
	// cannot be interpreted.
	ErrMalformedIndex = zerr.New("malformed registry index")

	// ErrDescriptorParse is returned when a rockspec cannot be evaluated or is
	// missing mandatory fields.
	ErrDescriptorParse = zerr.New("invalid rockspec")

	// ErrConstraintConflict is returned when no version of a package satisfies
	// the accumulated constraints against it.
	ErrConstraintConflict = zerr.New("conflicting constraints")

	// ErrCycleDetected is returned when the resolved dependency graph contains a cycle.
	ErrCycleDetected = zerr.New("cyclic dependency")

	// ErrResolutionDidNotConverge is returned when a package is re-resolved more
	// times than the convergence cap allows.
	ErrResolutionDidNotConverge = zerr.New("resolution did not converge")

	// ErrDuplicateNode is returned when a node with the same name is added to a
	// resolved graph twice.
	ErrDuplicateNode = zerr.New("duplicate package in resolved graph")

	// ErrMissingNode is returned when a dependency edge points at a package that
	// is not part of the resolved graph.
	ErrMissingNode = zerr.New("dependency missing from resolved graph")

	// ErrUnsupportedBuildType is returned when a rockspec declares a build type
	// no backend is registered for.
	ErrUnsupportedBuildType = zerr.New("unsupported build type")

	// ErrMissingFile is returned when a declared module path does not exist in
	// the package source.
	ErrMissingFile = zerr.New("declared module file not found in source")

	// ErrHeaderNotFound is returned when no Lua header set for the target
	// runtime can be discovered or downloaded.
	ErrHeaderNotFound = zerr.New("lua headers not found")

	// ErrExternalDependencyNotFound is returned when a declared external
	// dependency cannot be probed on the system.
	ErrExternalDependencyNotFound = zerr.New("external dependency not found")

	// ErrCompileFailed is returned when the C compiler exits non-zero.
	ErrCompileFailed = zerr.New("compilation failed")

	// ErrToolNotFound is returned when an external build tool is not on PATH.
	ErrToolNotFound = zerr.New("build tool not found")

	// ErrToolFailed is returned when an external build tool exits non-zero.
	ErrToolFailed = zerr.New("build tool exited with an error")

	// ErrScriptFailed is returned when a user build script raises an error.
	ErrScriptFailed = zerr.New("build script failed")

	// ErrScriptTimeout is returned when a user build script exceeds its deadline.
	ErrScriptTimeout = zerr.New("build script timed out")

	// ErrScriptEscape is returned when a user build script touches a path
	// outside its source or staging directory.
	ErrScriptEscape = zerr.New("build script path outside sandbox")

	// ErrBuildFailed wraps any backend failure when it is attached to a node.
	ErrBuildFailed = zerr.New("build failed")

	// ErrLockParse is returned when the lockfile exists but cannot be decoded.
	ErrLockParse = zerr.New("invalid lockfile")

	// ErrLockStale is returned when an operation requires a lockfile that
	// matches the project file but the root requests changed underneath it.
	ErrLockStale = zerr.New("lockfile does not match the project file")

	// ErrIntegrityViolation is returned when a cached source artifact does not
	// match the digest recorded in the lockfile. It is never downgraded to a
	// warning and the artifact is never silently re-fetched.
	ErrIntegrityViolation = zerr.New("integrity digest mismatch")

	// ErrDependentsRemain is returned when removing a package that other
	// installed packages still depend on.
	ErrDependentsRemain = zerr.New("installed packages still depend on this package")

	// ErrNotInstalled is returned when operating on a package that is not in
	// the install tree.
	ErrNotInstalled = zerr.New("package not installed")

	// ErrProjectNotFound is returned when no loam.yaml can be located.
	ErrProjectNotFound = zerr.New("could not find loam.yaml")

	// ErrProjectParse is returned when the project file cannot be decoded.
	ErrProjectParse = zerr.New("failed to parse project file")

	// ErrTreeWrite is returned when promoting staged files into the install
	// tree fails.
	ErrTreeWrite = zerr.New("failed to write install tree")

	// ErrUnpackFailed is returned when a source archive cannot be extracted.
	ErrUnpackFailed = zerr.New("failed to unpack source archive")

	// ErrInstallFailed is the aggregate returned when one or more nodes failed
	// to install.
	ErrInstallFailed = zerr.New("install failed")
)
