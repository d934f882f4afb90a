package config

import (
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SaveDependencies rewrites the project file's dependency list to match the
// project's current root requests. Every other setting is carried over as
// read; the write is atomic so a crash never leaves a truncated file.
func (l *Loader) SaveDependencies(project *Project) error {
	path := filepath.Join(project.Root, domain.ProjectFileName)

	data, err := os.ReadFile(path) //nolint:gosec // path comes from upward discovery
	if err != nil {
		return zerr.With(zerr.With(domain.ErrProjectParse, "path", path), "reason", err.Error())
	}
	var file ProjectFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return zerr.With(zerr.With(domain.ErrProjectParse, "path", path), "reason", err.Error())
	}

	declarations := make([]string, 0, len(project.Roots))
	for _, dep := range project.Roots {
		declaration := dep.Raw
		if declaration == "" {
			declaration = strings.TrimSpace(dep.Name.String() + " " + dep.Constraint.String())
		}
		declarations = append(declarations, declaration)
	}
	file.Dependencies = declarations

	out, err := yaml.Marshal(&file)
	if err != nil {
		return zerr.Wrap(err, "failed to serialize project file")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+domain.ProjectFileName+".*")
	if err != nil {
		return zerr.With(zerr.With(domain.ErrTreeWrite, "path", path), "reason", err.Error())
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.With(zerr.With(domain.ErrTreeWrite, "path", path), "reason", err.Error())
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.With(domain.ErrTreeWrite, "path", path), "reason", err.Error())
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.With(domain.ErrTreeWrite, "path", path), "reason", err.Error())
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.With(zerr.With(domain.ErrTreeWrite, "path", path), "reason", err.Error())
	}
	return nil
}
