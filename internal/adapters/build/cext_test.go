package build_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/loam/internal/adapters/build"
	"go.trai.ch/loam/internal/core/domain"
)

// stubCompiler installs a fake cc that writes its -o target, so compilation
// tests don't depend on a toolchain being present.
func stubCompiler(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub compiler scripts require a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakecc")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("CC", path)
}

const succeedingCompiler = `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
printf 'ELF' > "$out"
`

const failingCompiler = `#!/bin/sh
echo "lpcap.c:10: error: expected ';'" >&2
exit 1
`

func TestCExtension_CompilesNativeModules(t *testing.T) {
	stubCompiler(t, succeedingCompiler)

	in := buildInput(t, descriptor("lpeg", domain.BuildSpec{
		Type: domain.BuildCExtension,
		Modules: map[string]domain.ModuleSpec{
			"lpeg": {Sources: []string{"lpcap.c", "lpvm.c"}},
			"re":   {Path: "re.lua"},
		},
	}))
	writeSource(t, in.SourceDir, "lpcap.c", "int x;")
	writeSource(t, in.SourceDir, "lpvm.c", "int y;")
	writeSource(t, in.SourceDir, "re.lua", "return {}")

	files, err := build.NewCExtension(nopLogger{}).Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byRel := map[string]domain.InstalledFile{}
	for _, file := range files {
		byRel[file.Rel] = file
	}

	native, ok := byRel[filepath.Join("lib", "lua", "5.1", "lpeg.so")]
	require.True(t, ok)
	assert.True(t, native.Executable)
	_, err = os.Stat(native.Source)
	assert.NoError(t, err)

	_, ok = byRel[filepath.Join("share", "lua", "5.1", "re.lua")]
	assert.True(t, ok)
}

func TestCExtension_CompileFailureCarriesOutput(t *testing.T) {
	stubCompiler(t, failingCompiler)

	in := buildInput(t, descriptor("lpeg", domain.BuildSpec{
		Type:    domain.BuildCExtension,
		Modules: map[string]domain.ModuleSpec{"lpeg": {Sources: []string{"lpcap.c"}}},
	}))
	writeSource(t, in.SourceDir, "lpcap.c", "broken")

	_, err := build.NewCExtension(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrCompileFailed)
}

func TestCExtension_MissingSourcesFailBeforeCompiling(t *testing.T) {
	stubCompiler(t, failingCompiler) // must never run

	in := buildInput(t, descriptor("lpeg", domain.BuildSpec{
		Type:    domain.BuildCExtension,
		Modules: map[string]domain.ModuleSpec{"lpeg": {Sources: []string{"gone.c", "also-gone.c"}}},
	}))

	_, err := build.NewCExtension(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrMissingFile)
	assert.Contains(t, err.Error(), "gone.c")
	assert.Contains(t, err.Error(), "also-gone.c")
	assert.NotErrorIs(t, err, domain.ErrCompileFailed)
}

func TestCExtension_CompilerNotFound(t *testing.T) {
	t.Setenv("CC", "definitely-not-a-compiler-loam")

	in := buildInput(t, descriptor("lpeg", domain.BuildSpec{
		Type:    domain.BuildCExtension,
		Modules: map[string]domain.ModuleSpec{"lpeg": {Sources: []string{"lpcap.c"}}},
	}))
	writeSource(t, in.SourceDir, "lpcap.c", "int x;")

	_, err := build.NewCExtension(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestCExtension_ExternalDependencyProbe(t *testing.T) {
	stubCompiler(t, succeedingCompiler)

	probeDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(probeDir, "zlib.h"), []byte("/* zlib */"), 0o644))

	desc := descriptor("lzlib", domain.BuildSpec{
		Type:    domain.BuildCExtension,
		Modules: map[string]domain.ModuleSpec{"lzlib": {Sources: []string{"lzlib.c"}, Libraries: []string{"z"}}},
	})
	desc.External = map[string]domain.ExternalDependency{
		"ZLIB": {Header: "zlib.h", Library: "z"},
	}

	in := buildInput(t, desc)
	writeSource(t, in.SourceDir, "lzlib.c", "int x;")

	_, err := build.NewCExtensionWithDirs(nopLogger{}, []string{probeDir}).Build(context.Background(), in)
	require.NoError(t, err)

	_, err = build.NewCExtensionWithDirs(nopLogger{}, []string{t.TempDir()}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrExternalDependencyNotFound)
	assert.Contains(t, err.Error(), "zlib.h")
}
