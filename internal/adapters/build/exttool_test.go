package build_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/loam/internal/adapters/build"
	"go.trai.ch/loam/internal/core/domain"
)

// stubTool installs a fake build tool ahead of the real one on PATH.
func stubTool(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub tool scripts require a POSIX shell")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

// fakeMake records its arguments and materializes one module on install.
const fakeMake = `#!/bin/sh
prefix=""
for a in "$@"; do
  case "$a" in PREFIX=*) prefix="${a#PREFIX=}";; esac
  echo "$a" >> "${MAKE_ARGS_LOG}"
done
if [ "$1" = "install" ]; then
  mkdir -p "$prefix/share/lua/5.1"
  echo "return {}" > "$prefix/share/lua/5.1/lfs.lua"
fi
exit 0
`

const failingMake = `#!/bin/sh
echo "make: *** No rule to make target 'all'." >&2
exit 2
`

func TestMake_BuildsAndCollectsStagedFiles(t *testing.T) {
	stubTool(t, "make", fakeMake)
	argsLog := filepath.Join(t.TempDir(), "args.log")
	t.Setenv("MAKE_ARGS_LOG", argsLog)

	desc := descriptor("luafilesystem", domain.BuildSpec{
		Type:           domain.BuildMake,
		BuildVariables: map[string]string{"CFLAGS": "$(CFLAGS) -DEXTRA"},
	})
	in := buildInput(t, desc)

	files, err := build.NewMake(nopLogger{}).Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("share", "lua", "5.1", "lfs.lua"), files[0].Rel)

	logged, err := os.ReadFile(argsLog)
	require.NoError(t, err)
	// $(CFLAGS) expands against the injected standard variable set.
	assert.Contains(t, string(logged), "CFLAGS=-O2 -fPIC -DEXTRA")
	assert.Contains(t, string(logged), "PREFIX="+in.StageDir)
}

func TestMake_ToolFailure(t *testing.T) {
	stubTool(t, "make", failingMake)

	in := buildInput(t, descriptor("broken", domain.BuildSpec{Type: domain.BuildMake}))
	_, err := build.NewMake(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrToolFailed)
}

func TestMake_ToolNotFound(t *testing.T) {
	// A PATH with no make in it.
	t.Setenv("PATH", t.TempDir())

	in := buildInput(t, descriptor("broken", domain.BuildSpec{Type: domain.BuildMake}))
	_, err := build.NewMake(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrToolNotFound)
	assert.Contains(t, err.Error(), "make")
}

// fakeCMake materializes a native module on --install and succeeds otherwise.
const fakeCMake = `#!/bin/sh
prefix=""
for a in "$@"; do
  case "$a" in -DCMAKE_INSTALL_PREFIX=*) prefix="${a#-DCMAKE_INSTALL_PREFIX=}";; esac
done
if [ -n "$prefix" ]; then
  echo "$prefix" > "${CMAKE_PREFIX_LOG}"
fi
if [ "$1" = "--install" ]; then
  prefix="$(cat "${CMAKE_PREFIX_LOG}")"
  mkdir -p "$prefix/lib/lua/5.1"
  printf 'ELF' > "$prefix/lib/lua/5.1/cjson.so"
  chmod +x "$prefix/lib/lua/5.1/cjson.so"
fi
exit 0
`

func TestCMake_ConfiguresBuildsAndInstalls(t *testing.T) {
	stubTool(t, "cmake", fakeCMake)
	prefixLog := filepath.Join(t.TempDir(), "prefix.log")
	t.Setenv("CMAKE_PREFIX_LOG", prefixLog)

	in := buildInput(t, descriptor("lua-cjson", domain.BuildSpec{Type: domain.BuildCMake}))

	files, err := build.NewCMake(nopLogger{}).Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("lib", "lua", "5.1", "cjson.so"), files[0].Rel)
	assert.True(t, files[0].Executable)

	logged, err := os.ReadFile(prefixLog)
	require.NoError(t, err)
	assert.Equal(t, in.StageDir, strings.TrimSpace(string(logged)))
}
