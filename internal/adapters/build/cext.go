package build

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// CExtension compiles declared C sources into loadable native modules against
// the target runtime's headers. Pure-Lua modules in the same descriptor are
// staged the builtin way.
type CExtension struct {
	logger ports.Logger

	// probeDirs are searched for external dependency headers.
	probeDirs []string
}

// NewCExtension creates the C extension backend probing the usual system
// include locations.
func NewCExtension(logger ports.Logger) *CExtension {
	return NewCExtensionWithDirs(logger, []string{
		"/usr/include",
		"/usr/local/include",
		"/opt/homebrew/include",
	})
}

// NewCExtensionWithDirs creates the backend probing only the given dirs.
func NewCExtensionWithDirs(logger ports.Logger, probeDirs []string) *CExtension {
	return &CExtension{logger: logger, probeDirs: probeDirs}
}

// compiler honors the CC convention and falls back to the system default.
func compiler() string {
	if cc := os.Getenv("CC"); cc != "" {
		return cc
	}
	return "cc"
}

// Build probes external dependencies, compiles every native module and stages
// the rest. Failures across modules are collected so one run reports them all.
func (c *CExtension) Build(ctx context.Context, in ports.BuildInput) (domain.InstalledFiles, error) {
	if err := c.probeExternals(in); err != nil {
		return nil, err
	}

	cc, err := exec.LookPath(compiler())
	if err != nil && hasNativeModules(in.Descriptor.Build.Modules) {
		return nil, zerr.With(
			zerr.Wrap(domain.ErrToolNotFound, "no C compiler: "+compiler()),
			"tool", compiler(),
		)
	}

	stage := stageTree(in)
	var files domain.InstalledFiles
	var errs []error

	for _, name := range sortedModuleNames(in.Descriptor.Build.Modules) {
		mod := in.Descriptor.Build.Modules[name]
		if !mod.IsNative() {
			src, err := findModuleSource(in.SourceDir, name, mod)
			if err != nil {
				errs = append(errs, zerr.With(err, "module", name))
				continue
			}
			file, err := stageFile(in.StageDir, src, filepath.Join(stage.LuaDir(), modulePath(name, ".lua")), false)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			files = append(files, file)
			continue
		}

		out := filepath.Join(stage.LibDir(), modulePath(name, ".so"))
		if err := c.compile(ctx, cc, in, name, mod, out); err != nil {
			errs = append(errs, err)
			continue
		}
		rel, err := filepath.Rel(in.StageDir, out)
		if err != nil {
			errs = append(errs, zerr.Wrap(err, "compiled module outside stage root"))
			continue
		}
		files = append(files, domain.InstalledFile{Rel: rel, Source: out, Executable: true})
	}

	sectionFiles, err := stageInstallSections(in, c.logger)
	if err != nil {
		errs = append(errs, err)
	}
	files = append(files, sectionFiles...)

	if err := joinErrs(errs); err != nil {
		return nil, err
	}
	return files, nil
}

// probeExternals checks that every declared external dependency's header is
// present, collecting every miss.
func (c *CExtension) probeExternals(in ports.BuildInput) error {
	externals := in.Descriptor.External
	names := make([]string, 0, len(externals))
	for name := range externals {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		header := externals[name].Header
		if header == "" {
			continue
		}
		if !c.headerExists(header) {
			errs = append(errs, zerr.With(zerr.With(zerr.Wrap(domain.ErrExternalDependencyNotFound,
				"external dependency "+name+": header "+header+" not found"), "dependency", name), "header", header))
		}
	}
	return joinErrs(errs)
}

func (c *CExtension) headerExists(header string) bool {
	for _, dir := range c.probeDirs {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(header))); err == nil {
			return true
		}
	}
	return false
}

// compile invokes the C compiler for one module. Missing sources fail before
// the compiler runs; a non-zero exit carries the compiler's output.
func (c *CExtension) compile(
	ctx context.Context,
	cc string,
	in ports.BuildInput,
	name string,
	mod domain.ModuleSpec,
	out string,
) error {
	var missing []error
	sources := make([]string, 0, len(mod.Sources))
	for _, src := range mod.Sources {
		path := filepath.Join(in.SourceDir, filepath.FromSlash(src))
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, zerr.With(zerr.With(zerr.Wrap(domain.ErrMissingFile, "source "+src+" not found"), "module", name), "source", src))
			continue
		}
		sources = append(sources, path)
	}
	if err := joinErrs(missing); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create staging directory")
	}

	args := []string{"-O2", "-fPIC", "-shared", "-I", in.LuaIncDir}
	for _, dir := range mod.Incdirs {
		args = append(args, "-I", filepath.Join(in.SourceDir, filepath.FromSlash(dir)))
	}
	for _, def := range mod.Defines {
		args = append(args, "-D"+def)
	}
	args = append(args, sources...)
	for _, dir := range mod.Libdirs {
		args = append(args, "-L", filepath.Join(in.SourceDir, filepath.FromSlash(dir)))
	}
	if in.LuaLibDir != "" {
		args = append(args, "-L", in.LuaLibDir)
	}
	for _, lib := range mod.Libraries {
		args = append(args, "-l"+lib)
	}
	args = append(args, "-o", out)

	c.logger.Debug("compiling native module",
		"module", name,
		"compiler", cc,
		"sources", strings.Join(mod.Sources, " "),
	)

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, cc, args...) //nolint:gosec // compiler and args come from the build spec
	cmd.Dir = in.SourceDir
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrCompileFailed, "module "+name+" failed to compile"), "module", name), "output", strings.TrimSpace(output.String()))
	}
	return nil
}

func hasNativeModules(modules map[string]domain.ModuleSpec) bool {
	for _, mod := range modules {
		if mod.IsNative() {
			return true
		}
	}
	return false
}
