package build_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/loam/internal/adapters/build"
	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(error)          {}

func writeSource(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func buildInput(t *testing.T, desc *domain.PackageDescriptor) ports.BuildInput {
	t.Helper()
	return ports.BuildInput{
		Descriptor: desc,
		SourceDir:  t.TempDir(),
		StageDir:   t.TempDir(),
		Tree:       domain.TreePaths{Root: "/unused", LuaVersion: "5.1"},
		LuaIncDir:  "/usr/include/lua5.1",
	}
}

func descriptor(name string, spec domain.BuildSpec) *domain.PackageDescriptor {
	return &domain.PackageDescriptor{
		Name:    domain.MustParsePackageName(name),
		Version: domain.MustParseVersion("1.0.0-1"),
		Build:   spec,
	}
}

func TestBuiltin_StagesDeclaredModules(t *testing.T) {
	in := buildInput(t, descriptor("say", domain.BuildSpec{
		Type: domain.BuildBuiltin,
		Modules: map[string]domain.ModuleSpec{
			"say":      {Path: "src/say/init.lua"},
			"say.util": {Path: "src/say/util.lua"},
		},
	}))
	writeSource(t, in.SourceDir, "src/say/init.lua", "return {}")
	writeSource(t, in.SourceDir, "src/say/util.lua", "return {}")

	files, err := build.NewBuiltin(nopLogger{}).Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, files, 2)

	rels := []string{files[0].Rel, files[1].Rel}
	assert.Contains(t, rels, filepath.Join("share", "lua", "5.1", "say.lua"))
	assert.Contains(t, rels, filepath.Join("share", "lua", "5.1", "say", "util.lua"))

	for _, file := range files {
		_, err := os.Stat(file.Source)
		assert.NoError(t, err)
		assert.False(t, file.Executable)
	}
}

func TestBuiltin_InfersConventionalPaths(t *testing.T) {
	in := buildInput(t, descriptor("inspect", domain.BuildSpec{
		Type:    domain.BuildBuiltin,
		Modules: map[string]domain.ModuleSpec{"inspect": {}},
	}))
	writeSource(t, in.SourceDir, "src/inspect.lua", "return {}")

	files, err := build.NewBuiltin(nopLogger{}).Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join("share", "lua", "5.1", "inspect.lua"), files[0].Rel)
}

func TestBuiltin_CollectsEveryMissingFile(t *testing.T) {
	in := buildInput(t, descriptor("broken", domain.BuildSpec{
		Type: domain.BuildBuiltin,
		Modules: map[string]domain.ModuleSpec{
			"a": {Path: "a.lua"},
			"b": {Path: "b.lua"},
		},
	}))

	_, err := build.NewBuiltin(nopLogger{}).Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrMissingFile)
	assert.Contains(t, err.Error(), "a.lua")
	assert.Contains(t, err.Error(), "b.lua")
}

func TestBuiltin_InstallSections(t *testing.T) {
	in := buildInput(t, descriptor("cli", domain.BuildSpec{
		Type: domain.BuildBuiltin,
		Install: map[string]map[string]string{
			"bin":  {"cli": "bin/cli"},
			"conf": {"cli.cfg": "etc/cli.cfg"},
		},
	}))
	writeSource(t, in.SourceDir, "bin/cli", "#!/usr/bin/env lua")
	writeSource(t, in.SourceDir, "etc/cli.cfg", "{}")

	files, err := build.NewBuiltin(nopLogger{}).Build(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, files, 2)

	byRel := map[string]domain.InstalledFile{}
	for _, file := range files {
		byRel[file.Rel] = file
	}
	bin, ok := byRel[filepath.Join("bin", "cli")]
	require.True(t, ok)
	assert.True(t, bin.Executable)

	conf, ok := byRel[filepath.Join("conf", "cli.cfg")]
	require.True(t, ok)
	assert.False(t, conf.Executable)
}

func TestRegistry_DispatchesByType(t *testing.T) {
	registry := build.NewRegistry(nopLogger{})

	for _, typ := range []domain.BuildType{
		domain.BuildBuiltin, domain.BuildCExtension, domain.BuildMake, domain.BuildCMake, domain.BuildScript,
	} {
		backend, err := registry.For(typ)
		require.NoError(t, err, "type %s", typ)
		assert.NotNil(t, backend)
	}

	_, err := registry.For(domain.BuildType("rust"))
	require.ErrorIs(t, err, domain.ErrUnsupportedBuildType)
	assert.Contains(t, err.Error(), "rust")
}
