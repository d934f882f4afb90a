package ports

import "context"

// RuntimePaths locates a Lua runtime installation on the build host.
type RuntimePaths struct {
	// IncDir contains lua.h and friends for the target version.
	IncDir string

	// LibDir contains the runtime library to link native modules against.
	// May be empty on platforms that resolve symbols at load time.
	LibDir string

	// Interpreter is the path of the lua executable, when one was found.
	Interpreter string
}

// RuntimeEnv discovers the target Lua runtime's headers and libraries, either
// from the host system or from a versioned local cache.
//
//go:generate mockgen -source=luaenv.go -destination=mocks/mock_luaenv.go -package=mocks
type RuntimeEnv interface {
	// Locate returns paths for the requested runtime version, e.g. "5.1".
	// Fails with domain.ErrHeaderNotFound when no headers can be provided.
	Locate(ctx context.Context, version string) (RuntimePaths, error)
}
