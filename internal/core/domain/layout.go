package domain

import "path/filepath"

const (
	// ProjectFileName is the name of the project configuration file.
	ProjectFileName = "loam.yaml"

	// LockFileName is the name of the lockfile, written next to the project file.
	LockFileName = "loam.lock"

	// LockFormatVersion is the current lockfile format version.
	LockFormatVersion = 1

	// TreeDirName is the default install tree directory inside a project.
	TreeDirName = ".loam"

	// SourcesDirName is the source artifact store inside the cache directory.
	SourcesDirName = "sources"

	// HeadersDirName is the downloaded Lua header cache inside the cache directory.
	HeadersDirName = "headers"

	// RockManifestName records the files a package installed into the tree.
	RockManifestName = "rock_manifest.json"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// ExecPerm is the permission for installed binaries (rwxr-xr-x).
	ExecPerm = 0o755
)

// TreePaths is the on-disk layout of an install tree for one Lua version:
// where script modules, native modules, binaries and per-package metadata go.
type TreePaths struct {
	Root       string
	LuaVersion string
}

// LuaDir is the destination for interpreted modules.
func (t TreePaths) LuaDir() string {
	return filepath.Join(t.Root, "share", "lua", t.LuaVersion)
}

// LibDir is the destination for compiled native modules.
func (t TreePaths) LibDir() string {
	return filepath.Join(t.Root, "lib", "lua", t.LuaVersion)
}

// BinDir is the destination for installed executables.
func (t TreePaths) BinDir() string {
	return filepath.Join(t.Root, "bin")
}

// ConfDir is the destination for configuration files.
func (t TreePaths) ConfDir() string {
	return filepath.Join(t.Root, "conf")
}

// PackageDir holds per-package metadata such as the rock manifest.
func (t TreePaths) PackageDir(name PackageName, version Version) string {
	return filepath.Join(t.Root, "packages", t.LuaVersion, name.String(), version.String())
}

// SectionDir maps a rockspec install section to its tree directory.
func (t TreePaths) SectionDir(section string) (string, bool) {
	switch section {
	case "lua":
		return t.LuaDir(), true
	case "lib":
		return t.LibDir(), true
	case "bin":
		return t.BinDir(), true
	case "conf":
		return t.ConfDir(), true
	}
	return "", false
}
