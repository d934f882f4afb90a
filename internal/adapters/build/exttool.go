package build

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// standardVariables is the substitution set injected into external build
// tools, mirroring what rockspecs conventionally reference as $(NAME).
func standardVariables(in ports.BuildInput) map[string]string {
	return map[string]string{
		"PREFIX":      in.StageDir,
		"LUA_INCDIR":  in.LuaIncDir,
		"LUA_LIBDIR":  in.LuaLibDir,
		"LUA_VERSION": in.Tree.LuaVersion,
		"LUADIR":      stageTree(in).LuaDir(),
		"LIBDIR":      stageTree(in).LibDir(),
		"BINDIR":      stageTree(in).BinDir(),
		"CFLAGS":      "-O2 -fPIC",
		"LIBFLAG":     "-shared",
	}
}

// expandVariables substitutes $(NAME) references against the standard set.
// Unknown references expand to the empty string, matching make semantics for
// undefined variables.
func expandVariables(value string, vars map[string]string) string {
	var out strings.Builder
	for {
		start := strings.Index(value, "$(")
		if start < 0 {
			out.WriteString(value)
			return out.String()
		}
		end := strings.IndexByte(value[start:], ')')
		if end < 0 {
			out.WriteString(value)
			return out.String()
		}
		out.WriteString(value[:start])
		out.WriteString(vars[value[start+2:start+end]])
		value = value[start+end+1:]
	}
}

// toolArgs renders a variable map as sorted KEY=VALUE tool arguments, with
// $(NAME) references expanded.
func toolArgs(declared, vars map[string]string) []string {
	keys := make([]string, 0, len(declared))
	for key := range declared {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, key := range keys {
		args = append(args, key+"="+expandVariables(declared[key], vars))
	}
	return args
}

// runTool executes one external tool invocation in the source directory.
func runTool(ctx context.Context, logger ports.Logger, dir, tool string, args []string) error {
	path, err := exec.LookPath(tool)
	if err != nil {
		return zerr.With(
			zerr.Wrap(domain.ErrToolNotFound, tool+" not found on PATH"),
			"tool", tool,
		)
	}

	logger.Debug("running build tool", "tool", tool, "args", strings.Join(args, " "))

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...) //nolint:gosec // tool invocation is the backend's purpose
	cmd.Dir = dir
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrToolFailed, tool+" "+strings.Join(args, " ")+" failed"), "tool", tool), "output", strings.TrimSpace(output.String()))
	}
	return nil
}

// Make drives a package-provided Makefile: a build pass with the declared
// build variables, then an install pass targeting the stage area.
type Make struct {
	logger ports.Logger
}

// NewMake creates the make backend.
func NewMake(logger ports.Logger) *Make {
	return &Make{logger: logger}
}

// Build runs make and make install, then records whatever landed in the
// stage area.
func (m *Make) Build(ctx context.Context, in ports.BuildInput) (domain.InstalledFiles, error) {
	vars := standardVariables(in)

	buildArgs := toolArgs(in.Descriptor.Build.BuildVariables, vars)
	if err := runTool(ctx, m.logger, in.SourceDir, "make", buildArgs); err != nil {
		return nil, err
	}

	installArgs := append([]string{"install", "PREFIX=" + in.StageDir},
		toolArgs(in.Descriptor.Build.InstallVariables, vars)...)
	if err := runTool(ctx, m.logger, in.SourceDir, "make", installArgs); err != nil {
		return nil, err
	}

	if _, err := stageInstallSections(in, m.logger); err != nil {
		return nil, err
	}

	return collectStaged(in.StageDir)
}

// CMake drives a package-provided CMake project through configure, build and
// install into the stage area.
type CMake struct {
	logger ports.Logger
}

// NewCMake creates the cmake backend.
func NewCMake(logger ports.Logger) *CMake {
	return &CMake{logger: logger}
}

// Build configures, builds and installs the project, then records whatever
// landed in the stage area.
func (c *CMake) Build(ctx context.Context, in ports.BuildInput) (domain.InstalledFiles, error) {
	vars := standardVariables(in)
	buildDir := filepath.Join(in.SourceDir, ".loam-build")

	configureArgs := []string{
		"-S", in.SourceDir,
		"-B", buildDir,
		"-DCMAKE_INSTALL_PREFIX=" + in.StageDir,
		"-DLUA_INCDIR=" + in.LuaIncDir,
	}
	for _, arg := range toolArgs(in.Descriptor.Build.BuildVariables, vars) {
		configureArgs = append(configureArgs, "-D"+arg)
	}
	if err := runTool(ctx, c.logger, in.SourceDir, "cmake", configureArgs); err != nil {
		return nil, err
	}
	if err := runTool(ctx, c.logger, in.SourceDir, "cmake", []string{"--build", buildDir}); err != nil {
		return nil, err
	}
	if err := runTool(ctx, c.logger, in.SourceDir, "cmake", []string{"--install", buildDir}); err != nil {
		return nil, err
	}

	if _, err := stageInstallSections(in, c.logger); err != nil {
		return nil, err
	}

	return collectStaged(in.StageDir)
}
