package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// scriptTimeout bounds a build script that the caller's context doesn't.
const scriptTimeout = 2 * time.Minute

// Script executes a package-supplied Lua build script in a restricted
// interpreter. The script sees copy/mkdir/install primitives whose paths are
// confined to the package source and stage directories; it has no IO, OS or
// module-loading facilities of its own.
type Script struct {
	logger ports.Logger
}

// NewScript creates the script backend.
func NewScript(logger ports.Logger) *Script {
	return &Script{logger: logger}
}

// scriptRun carries per-invocation state so a raised Go-side error keeps its
// type through the interpreter.
type scriptRun struct {
	in  ports.BuildInput
	err error
}

// Build evaluates the declared script and records whatever it staged.
func (s *Script) Build(ctx context.Context, in ports.BuildInput) (domain.InstalledFiles, error) {
	name := in.Descriptor.Build.Script
	if name == "" {
		name = "build.lua"
	}

	path, err := confine(in.SourceDir, name)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path) //nolint:gosec // confined to the source dir above
	if err != nil {
		return nil, zerr.With(
			zerr.Wrap(domain.ErrScriptFailed, "build script "+name+" not readable"),
			"script", name,
		)
	}

	ctx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()

	run := &scriptRun{in: in}
	L := newScriptState(ctx, run)
	defer L.Close()

	if err := L.DoString(string(src)); err != nil {
		switch {
		case run.err != nil:
			return nil, run.err
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, zerr.With(
				zerr.Wrap(domain.ErrScriptTimeout, "build script "+name+" exceeded its deadline"),
				"script", name,
			)
		default:
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrScriptFailed, "build script "+name+" failed"), "script", name), "reason", err.Error())
		}
	}

	return collectStaged(in.StageDir)
}

// newScriptState opens the same minimal library set as the rockspec sandbox
// and adds the staging primitives.
func newScriptState(ctx context.Context, run *scriptRun) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
	} {
		L.Push(L.NewFunction(open.fn))
		L.Push(lua.LString(open.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("source_dir", lua.LString(run.in.SourceDir))
	L.SetGlobal("stage_dir", lua.LString(run.in.StageDir))
	L.SetGlobal("lua_version", lua.LString(run.in.Tree.LuaVersion))
	L.SetGlobal("copy", L.NewFunction(run.luaCopy))
	L.SetGlobal("mkdir", L.NewFunction(run.luaMkdir))
	L.SetGlobal("install", L.NewFunction(run.luaInstall))

	L.SetContext(ctx)
	return L
}

// luaCopy implements copy(src, dest): src is read from the package source,
// dest is written under the stage area.
func (r *scriptRun) luaCopy(L *lua.LState) int {
	src, err := confine(r.in.SourceDir, L.CheckString(1))
	if err != nil {
		r.raise(L, err)
		return 0
	}
	dest, err := confine(r.in.StageDir, L.CheckString(2))
	if err != nil {
		r.raise(L, err)
		return 0
	}
	if err := os.MkdirAll(filepath.Dir(dest), domain.DirPerm); err != nil {
		r.raise(L, zerr.Wrap(err, "failed to create staging directory"))
		return 0
	}
	if err := copyFile(src, dest, false); err != nil {
		r.raise(L, zerr.With(zerr.Wrap(domain.ErrScriptFailed, "copy failed"), "reason", err.Error()))
		return 0
	}
	return 0
}

// luaMkdir implements mkdir(dir) under the stage area.
func (r *scriptRun) luaMkdir(L *lua.LState) int {
	dir, err := confine(r.in.StageDir, L.CheckString(1))
	if err != nil {
		r.raise(L, err)
		return 0
	}
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		r.raise(L, zerr.Wrap(err, "mkdir failed"))
	}
	return 0
}

// luaInstall implements install(section, src, name): place a source file into
// a tree section ("lua", "lib", "bin", "conf") under its destination name.
func (r *scriptRun) luaInstall(L *lua.LState) int {
	section := L.CheckString(1)
	src, err := confine(r.in.SourceDir, L.CheckString(2))
	if err != nil {
		r.raise(L, err)
		return 0
	}
	name := L.CheckString(3)

	dir, ok := stageTree(r.in).SectionDir(section)
	if !ok {
		r.raise(L, zerr.With(
			zerr.Wrap(domain.ErrScriptFailed, "unknown install section "+section),
			"section", section,
		))
		return 0
	}
	dest, err := confine(dir, name)
	if err != nil {
		r.raise(L, err)
		return 0
	}
	if _, err := stageFile(r.in.StageDir, src, dest, section == "bin"); err != nil {
		r.raise(L, err)
	}
	return 0
}

// raise records the typed error and aborts the interpreter.
func (r *scriptRun) raise(L *lua.LState, err error) {
	if r.err == nil {
		r.err = err
	}
	L.RaiseError("%s", err.Error())
}

// confine joins rel to root and rejects anything that escapes it. Absolute
// paths and traversal via ".." both fail with domain.ErrScriptEscape.
func confine(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", zerr.With(
			zerr.Wrap(domain.ErrScriptEscape, "absolute path "+rel+" not allowed"),
			"path", rel,
		)
	}
	joined := filepath.Clean(filepath.Join(root, filepath.FromSlash(rel)))
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", zerr.With(
			zerr.Wrap(domain.ErrScriptEscape, "path "+rel+" escapes the sandbox"),
			"path", rel,
		)
	}
	return joined, nil
}
