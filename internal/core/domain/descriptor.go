package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// Dependency is one declared dependency: a package name plus the constraint
// recorded against it. Raw preserves the declaration text from the rockspec.
type Dependency struct {
	Name       PackageName
	Constraint Constraint
	Raw        string
}

// ParseDependency parses a declaration such as "lpeg >= 1.0.0" or
// "luasocket ~> 3.0". Everything after the first whitespace run is the
// constraint expression; a bare name means any version.
func ParseDependency(text string) (Dependency, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Dependency{}, zerr.With(ErrDependencyParse, "declaration", text)
	}

	nameText := trimmed
	constraintText := ""
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		nameText = trimmed[:i]
		constraintText = strings.TrimSpace(trimmed[i+1:])
	}

	name, err := ParsePackageName(nameText)
	if err != nil {
		return Dependency{}, zerr.With(zerr.With(ErrDependencyParse, "declaration", text), "reason", err.Error())
	}

	constraint, err := ParseConstraint(constraintText)
	if err != nil {
		return Dependency{}, zerr.With(zerr.With(ErrDependencyParse, "declaration", text), "reason", err.Error())
	}

	return Dependency{Name: name, Constraint: constraint, Raw: trimmed}, nil
}

// LuaName is the pseudo-package carrying the runtime version constraint in
// dependency lists. It is never resolved against the registry.
const LuaName PackageName = "lua"

// BuildType tags the build-spec variant of a descriptor. The enumeration is
// closed: dispatch on an unknown tag is a hard error, never a no-op.
type BuildType string

const (
	// BuildBuiltin copies declared Lua modules into the tree verbatim.
	BuildBuiltin BuildType = "builtin"
	// BuildCExtension compiles declared C sources against the target
	// runtime's headers into loadable native modules.
	BuildCExtension BuildType = "cext"
	// BuildMake invokes make in the source directory with injected variables.
	BuildMake BuildType = "make"
	// BuildCMake configures and builds with cmake.
	BuildCMake BuildType = "cmake"
	// BuildScript executes a package-supplied Lua build script in a sandbox.
	BuildScript BuildType = "script"
)

// ModuleSpec describes one module a build produces. A plain Lua module has
// only Path set; a native module lists C sources and link/probe inputs.
type ModuleSpec struct {
	Path      string   // relative path of a Lua source file
	Sources   []string // C sources, relative to the package source dir
	Libraries []string // external libraries to link
	Defines   []string // preprocessor defines
	Incdirs   []string
	Libdirs   []string
}

// IsNative reports whether this module requires compilation.
func (m ModuleSpec) IsNative() bool {
	return len(m.Sources) > 0
}

// BuildSpec is the tagged description of how to turn package source into
// installed files.
type BuildSpec struct {
	Type BuildType

	// Modules maps module names (dot-separated) to their specs. Used by the
	// builtin and cext variants.
	Modules map[string]ModuleSpec

	// Variables are injected into external build tools, on top of the
	// standard LUA_INCDIR / LUA_LIBDIR / PREFIX set.
	BuildVariables   map[string]string
	InstallVariables map[string]string

	// Script is the build script path for the script variant.
	Script string

	// Install lists extra files to place into the tree, keyed by section
	// ("lua", "lib", "bin", "conf") then by destination name.
	Install map[string]map[string]string
}

// ExternalDependency carries probe hints for a non-package system dependency.
// It is recorded during resolution and probed only at build time.
type ExternalDependency struct {
	Header  string // e.g. "zlib.h"
	Library string // e.g. "z"
}

// SourceSpec locates the package source artifact.
type SourceSpec struct {
	URL    string // archive URL or VCS locator
	Tag    string
	Branch string
	Dir    string // subdirectory inside the unpacked archive
	File   string // basename override for the downloaded artifact
}

// PackageDescriptor is the parsed, immutable form of a rockspec. Instances
// are owned by the manifest client's cache and must not be mutated after
// being handed out; the resolver only borrows them.
type PackageDescriptor struct {
	Name         PackageName
	Version      Version
	Dependencies []Dependency
	BuildDeps    []Dependency
	External     map[string]ExternalDependency

	// Lua is the runtime version constraint split out of the dependency
	// list; it gates descriptor eligibility during resolution.
	Lua Constraint

	Build  BuildSpec
	Source SourceSpec
}

// RuntimeCompatible reports whether the descriptor admits the target Lua
// runtime version.
func (d *PackageDescriptor) RuntimeCompatible(runtime Version) bool {
	return d.Lua.Satisfies(runtime)
}

// InstalledFile is one file a build produced: a tree-relative destination and
// either a staged source path to copy from or literal contents.
type InstalledFile struct {
	Rel        string // destination, relative to the install tree root
	Source     string // absolute path in the scratch area
	Executable bool
}

// InstalledFiles is the uniform result of every build backend. It is owned
// transiently by the orchestrator's tree writer and discarded after
// promotion.
type InstalledFiles []InstalledFile
