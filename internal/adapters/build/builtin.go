package build

import (
	"context"
	"os"
	"path/filepath"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// Builtin installs declared Lua modules by copying them into the tree layout.
// It never compiles anything; descriptors with native modules dispatch to the
// C extension backend instead.
type Builtin struct {
	logger ports.Logger
}

// NewBuiltin creates the builtin backend.
func NewBuiltin(logger ports.Logger) *Builtin {
	return &Builtin{logger: logger}
}

// Build stages every declared Lua module and install-section file. Missing
// files are collected so the error names all of them.
func (b *Builtin) Build(ctx context.Context, in ports.BuildInput) (domain.InstalledFiles, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stage := stageTree(in)
	var files domain.InstalledFiles
	var errs []error

	for _, name := range sortedModuleNames(in.Descriptor.Build.Modules) {
		mod := in.Descriptor.Build.Modules[name]
		if mod.IsNative() {
			errs = append(errs, zerr.With(
				zerr.Wrap(domain.ErrUnsupportedBuildType, "module "+name+" declares C sources in a pure-Lua build"),
				"module", name,
			))
			continue
		}

		src, err := findModuleSource(in.SourceDir, name, mod)
		if err != nil {
			errs = append(errs, zerr.With(zerr.With(err, "package", in.Descriptor.Name.String()), "module", name))
			continue
		}

		dest := filepath.Join(stage.LuaDir(), modulePath(name, ".lua"))
		file, err := stageFile(in.StageDir, src, dest, false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, file)
	}

	sectionFiles, err := stageInstallSections(in, b.logger)
	if err != nil {
		errs = append(errs, err)
	}
	files = append(files, sectionFiles...)

	if err := joinErrs(errs); err != nil {
		return nil, err
	}
	return files, nil
}

// findModuleSource resolves a module's source file. An explicit path wins;
// otherwise the conventional locations for the module name are probed.
func findModuleSource(sourceDir, name string, mod domain.ModuleSpec) (string, error) {
	if mod.Path != "" {
		path := filepath.Join(sourceDir, filepath.FromSlash(mod.Path))
		if _, err := os.Stat(path); err != nil {
			return "", zerr.With(
				zerr.Wrap(domain.ErrMissingFile, "module file "+mod.Path+" not found"),
				"path", mod.Path,
			)
		}
		return path, nil
	}

	rel := modulePath(name, ".lua")
	candidates := []string{
		rel,
		filepath.Join("src", rel),
		filepath.Join("lua", rel),
		filepath.Join(dotsToSlashes(name), "init.lua"),
	}
	for _, candidate := range candidates {
		path := filepath.Join(sourceDir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", zerr.With(
		zerr.Wrap(domain.ErrMissingFile, "no source file for module "+name),
		"module", name,
	)
}
