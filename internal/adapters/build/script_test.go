package build_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/loam/internal/adapters/build"
	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
)

func scriptInput(t *testing.T, script string) ports.BuildInput {
	t.Helper()
	in := buildInput(t, descriptor("scripted", domain.BuildSpec{
		Type:   domain.BuildScript,
		Script: "build.lua",
	}))
	writeSource(t, in.SourceDir, "build.lua", script)
	return in
}

func TestScript_StagesFiles(t *testing.T) {
	in := scriptInput(t, `
copy("init.lua", "share/lua/" .. lua_version .. "/scripted.lua")
install("bin", "scripted.sh", "scripted")
`)
	writeSource(t, in.SourceDir, "init.lua", "return {}")
	writeSource(t, in.SourceDir, "scripted.sh", "#!/bin/sh")

	files, err := build.NewScript(nopLogger{}).Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byRel := map[string]domain.InstalledFile{}
	for _, file := range files {
		byRel[file.Rel] = file
	}
	_, ok := byRel[filepath.Join("share", "lua", "5.1", "scripted.lua")]
	assert.True(t, ok)
	bin, ok := byRel[filepath.Join("bin", "scripted")]
	require.True(t, ok)
	assert.True(t, bin.Executable)
}

func TestScript_TraversalIsRejected(t *testing.T) {
	in := scriptInput(t, `copy("init.lua", "../../outside.lua")`)
	writeSource(t, in.SourceDir, "init.lua", "return {}")

	_, err := build.NewScript(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrScriptEscape)

	// Nothing may exist outside the stage dir.
	_, statErr := os.Stat(filepath.Join(filepath.Dir(in.StageDir), "outside.lua"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestScript_AbsolutePathsAreRejected(t *testing.T) {
	in := scriptInput(t, `copy("/etc/passwd", "stolen")`)

	_, err := build.NewScript(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrScriptEscape)
}

func TestScript_NoIOLibrary(t *testing.T) {
	in := scriptInput(t, `io.open("/etc/passwd")`)

	_, err := build.NewScript(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrScriptFailed)
}

func TestScript_RuntimeErrorFails(t *testing.T) {
	in := scriptInput(t, `error("explosion in build step")`)

	_, err := build.NewScript(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrScriptFailed)
	assert.Contains(t, err.Error(), "build.lua")
}

func TestScript_DeadlineBoundsRunawayScripts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	in := scriptInput(t, `while true do end`)

	_, err := build.NewScript(nopLogger{}).Build(ctx, in)
	require.ErrorIs(t, err, domain.ErrScriptTimeout)
}

func TestScript_MissingScript(t *testing.T) {
	in := buildInput(t, descriptor("scripted", domain.BuildSpec{
		Type:   domain.BuildScript,
		Script: "does-not-exist.lua",
	}))

	_, err := build.NewScript(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrScriptFailed)
}
