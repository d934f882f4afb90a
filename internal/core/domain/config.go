package domain

import "time"

// Config carries process-wide settings as an explicit value threaded through
// the resolver, the build backends and the orchestrator. Nothing reads it
// from ambient global state.
type Config struct {
	// RegistryURL is the base URL of the package registry.
	RegistryURL string

	// LuaVersion is the target runtime version, e.g. "5.1" or "5.4".
	LuaVersion string

	// Tree is the destination install tree.
	Tree TreePaths

	// CacheDir holds downloaded manifests, source artifacts and header sets.
	CacheDir string

	// Parallelism bounds the build worker pool.
	Parallelism int

	// HTTPTimeout bounds a single registry request.
	HTTPTimeout time.Duration

	// RetryBudget bounds retries of retryable network failures per request.
	RetryBudget int

	// IncludeDev opts development versions into best-match selection.
	IncludeDev bool
}

// RuntimeVersion returns the target Lua version as a comparable Version.
func (c Config) RuntimeVersion() (Version, error) {
	return ParseVersion(c.LuaVersion)
}
