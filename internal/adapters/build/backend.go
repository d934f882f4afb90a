// Package build implements the build backends that turn unpacked package
// source into staged install trees, plus the workspace that promotes staged
// files into the real tree.
package build

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// joinErrs aggregates collected per-file failures so one build reports every
// problem at once instead of stopping at the first.
func joinErrs(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Registry dispatches build specs to backends by their type tag.
type Registry struct {
	backends map[domain.BuildType]ports.BuildBackend
}

// NewRegistry wires every supported backend.
func NewRegistry(logger ports.Logger) *Registry {
	return &Registry{
		backends: map[domain.BuildType]ports.BuildBackend{
			domain.BuildBuiltin:    NewBuiltin(logger),
			domain.BuildCExtension: NewCExtension(logger),
			domain.BuildMake:       NewMake(logger),
			domain.BuildCMake:      NewCMake(logger),
			domain.BuildScript:     NewScript(logger),
		},
	}
}

// For returns the backend handling the given build type.
func (r *Registry) For(buildType domain.BuildType) (ports.BuildBackend, error) {
	backend, ok := r.backends[buildType]
	if !ok {
		return nil, zerr.With(
			zerr.Wrap(domain.ErrUnsupportedBuildType, "no backend for build type "+string(buildType)),
			"build_type", string(buildType),
		)
	}
	return backend, nil
}

// stageTree mirrors the destination tree's layout under the scratch stage
// directory, so staged relative paths transfer to the real tree unchanged.
func stageTree(in ports.BuildInput) domain.TreePaths {
	return domain.TreePaths{Root: in.StageDir, LuaVersion: in.Tree.LuaVersion}
}

// sortedModuleNames yields a deterministic build order.
func sortedModuleNames(modules map[string]domain.ModuleSpec) []string {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// modulePath is the tree-relative file path a dot-separated module name maps
// to, e.g. "foo.bar" -> "foo/bar.lua".
func modulePath(name, ext string) string {
	return filepath.FromSlash(dotsToSlashes(name)) + ext
}

func dotsToSlashes(name string) string {
	out := []byte(name)
	for i := range out {
		if out[i] == '.' {
			out[i] = '/'
		}
	}
	return string(out)
}

// stageFile copies src into the stage area and returns the promoted file
// record. dest must be under the stage root.
func stageFile(stageRoot, src, dest string, executable bool) (domain.InstalledFile, error) {
	if err := os.MkdirAll(filepath.Dir(dest), domain.DirPerm); err != nil {
		return domain.InstalledFile{}, zerr.Wrap(err, "failed to create staging directory")
	}
	if err := copyFile(src, dest, executable); err != nil {
		return domain.InstalledFile{}, err
	}
	rel, err := filepath.Rel(stageRoot, dest)
	if err != nil {
		return domain.InstalledFile{}, zerr.Wrap(err, "staged file outside stage root")
	}
	return domain.InstalledFile{Rel: rel, Source: dest, Executable: executable}, nil
}

func copyFile(src, dest string, executable bool) error {
	in, err := os.Open(src) //nolint:gosec // paths come from validated build specs
	if err != nil {
		return zerr.Wrap(err, "failed to read "+src)
	}
	defer in.Close()

	perm := os.FileMode(domain.FilePerm)
	if executable {
		perm = domain.ExecPerm
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //nolint:gosec // dest is under the stage root
	if err != nil {
		return zerr.Wrap(err, "failed to create "+dest)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.Wrap(err, "failed to copy "+src)
	}
	return out.Close()
}

// collectStaged walks the stage directory and records every regular file.
// Backends that delegate to external tools cannot enumerate their outputs
// up front, so the stage area is the source of truth.
func collectStaged(stageRoot string) (domain.InstalledFiles, error) {
	var files domain.InstalledFiles
	err := filepath.WalkDir(stageRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stageRoot, path)
		if err != nil {
			return err
		}
		files = append(files, domain.InstalledFile{
			Rel:        rel,
			Source:     path,
			Executable: info.Mode()&0o111 != 0,
		})
		return nil
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to collect staged files")
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// stageInstallSections places the rockspec install table's extra files.
func stageInstallSections(in ports.BuildInput, logger ports.Logger) (domain.InstalledFiles, error) {
	stage := stageTree(in)
	var files domain.InstalledFiles
	var errs []error

	sections := make([]string, 0, len(in.Descriptor.Build.Install))
	for section := range in.Descriptor.Build.Install {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	for _, section := range sections {
		dir, ok := stage.SectionDir(section)
		if !ok {
			logger.Warn("skipping unknown install section",
				"package", in.Descriptor.Name.String(),
				"section", section,
			)
			continue
		}

		entries := in.Descriptor.Build.Install[section]
		names := make([]string, 0, len(entries))
		for name := range entries {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			src := filepath.Join(in.SourceDir, filepath.FromSlash(entries[name]))
			if _, err := os.Stat(src); err != nil {
				errs = append(errs, zerr.With(zerr.With(zerr.With(zerr.Wrap(domain.ErrMissingFile, "install file "+entries[name]+" not found"), "package", in.Descriptor.Name.String()), "section", section), "file", entries[name]))
				continue
			}
			file, err := stageFile(in.StageDir, src, filepath.Join(dir, name), section == "bin")
			if err != nil {
				errs = append(errs, err)
				continue
			}
			files = append(files, file)
		}
	}

	return files, joinErrs(errs)
}
