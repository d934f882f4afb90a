package build

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// rockManifest is the per-package install record written next to the tree.
// Remove replays it to delete exactly what Promote created.
type rockManifest struct {
	Version string   `json:"version"`
	Files   []string `json:"files"`
}

// Workspace implements ports.Workspace over a project install tree and a
// scratch directory for in-flight builds.
type Workspace struct {
	tree    domain.TreePaths
	scratch string
	logger  ports.Logger
}

// NewWorkspace creates a Workspace. Scratch areas live under scratchDir and
// are dropped after each build.
func NewWorkspace(logger ports.Logger, tree domain.TreePaths, scratchDir string) *Workspace {
	return &Workspace{tree: tree, scratch: scratchDir, logger: logger}
}

// Installed reports whether the exact package version has a rock manifest in
// the tree.
func (w *Workspace) Installed(name domain.PackageName, version domain.Version) bool {
	_, err := os.Stat(w.manifestPath(name, version))
	return err == nil
}

// Prepare unpacks the fetched artifact into a fresh scratch area and resolves
// the source directory, honoring the descriptor's dir override.
func (w *Workspace) Prepare(ctx context.Context, node *domain.ResolvedNode, artifact ports.SourceArtifact) (ports.WorkDirs, error) {
	if err := ctx.Err(); err != nil {
		return ports.WorkDirs{}, err
	}

	base := w.scratchDir(node)
	// A leftover area from an interrupted run is stale; start clean.
	if err := os.RemoveAll(base); err != nil {
		return ports.WorkDirs{}, zerr.Wrap(err, "failed to clear scratch area")
	}

	unpackDir := filepath.Join(base, "src")
	stageDir := filepath.Join(base, "stage")
	for _, dir := range []string{unpackDir, stageDir} {
		if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
			return ports.WorkDirs{}, zerr.Wrap(err, "failed to create scratch area")
		}
	}

	if err := unpack(artifact.Path, unpackDir); err != nil {
		return ports.WorkDirs{}, zerr.With(zerr.With(err, "package", node.Name.String()), "artifact", artifact.Path)
	}

	sourceDir, err := resolveSourceDir(unpackDir, node.Descriptor.Source.Dir)
	if err != nil {
		return ports.WorkDirs{}, zerr.With(err, "package", node.Name.String())
	}

	return ports.WorkDirs{SourceDir: sourceDir, StageDir: stageDir}, nil
}

// resolveSourceDir applies the descriptor's source.dir override, falling back
// to a single unpacked top-level directory, then to the unpack root itself.
func resolveSourceDir(unpackDir, override string) (string, error) {
	if override != "" {
		dir := filepath.Join(unpackDir, filepath.FromSlash(override))
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
		return "", zerr.With(
			zerr.Wrap(domain.ErrUnpackFailed, "source directory "+override+" not found in archive"),
			"dir", override,
		)
	}

	entries, err := os.ReadDir(unpackDir)
	if err != nil {
		return "", zerr.Wrap(domain.ErrUnpackFailed, "unreadable unpack area")
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(unpackDir, entries[0].Name()), nil
	}
	return unpackDir, nil
}

// Promote copies staged files into the tree and writes the rock manifest.
// The manifest is written last, so a crash mid-promotion never yields a
// version that claims to be installed.
func (w *Workspace) Promote(node *domain.ResolvedNode, files domain.InstalledFiles) error {
	rels := make([]string, 0, len(files))
	for _, file := range files {
		dest := filepath.Join(w.tree.Root, file.Rel)
		if err := os.MkdirAll(filepath.Dir(dest), domain.DirPerm); err != nil {
			return zerr.With(
				zerr.Wrap(domain.ErrTreeWrite, "failed to create tree directory"),
				"file", file.Rel,
			)
		}
		if err := copyFile(file.Source, dest, file.Executable); err != nil {
			return zerr.With(
				zerr.Wrap(domain.ErrTreeWrite, "failed to install "+file.Rel),
				"file", file.Rel,
			)
		}
		rels = append(rels, file.Rel)
	}
	sort.Strings(rels)

	manifestPath := w.manifestPath(node.Name, node.Version)
	if err := os.MkdirAll(filepath.Dir(manifestPath), domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrTreeWrite, "failed to create package metadata directory")
	}
	data, err := json.MarshalIndent(rockManifest{Version: node.Version.String(), Files: rels}, "", "  ")
	if err != nil {
		return zerr.Wrap(domain.ErrTreeWrite, "failed to encode rock manifest")
	}
	if err := os.WriteFile(manifestPath, data, domain.FilePerm); err != nil {
		return zerr.Wrap(domain.ErrTreeWrite, "failed to write rock manifest")
	}

	w.logger.Debug("promoted package",
		"package", node.Name.String(),
		"version", node.Version.String(),
		"files", len(rels),
	)
	return nil
}

// Discard drops the scratch area for a package.
func (w *Workspace) Discard(node *domain.ResolvedNode) {
	if err := os.RemoveAll(w.scratchDir(node)); err != nil {
		w.logger.Warn("failed to remove scratch area",
			"package", node.Name.String(),
			"error", err.Error(),
		)
	}
}

// Remove deletes the files a package's manifest lists, then its metadata.
func (w *Workspace) Remove(name domain.PackageName, version domain.Version) error {
	data, err := os.ReadFile(w.manifestPath(name, version)) //nolint:gosec // path derives from the tree layout
	if err != nil {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrNotInstalled, name.String()+" "+version.String()+" is not installed"), "package", name.String()), "version", version.String())
	}

	var manifest rockManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return zerr.With(
			zerr.Wrap(domain.ErrTreeWrite, "corrupt rock manifest"),
			"package", name.String(),
		)
	}

	for _, rel := range manifest.Files {
		path := filepath.Join(w.tree.Root, filepath.FromSlash(rel))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return zerr.With(
				zerr.Wrap(domain.ErrTreeWrite, "failed to remove "+rel),
				"file", rel,
			)
		}
	}

	if err := os.RemoveAll(w.tree.PackageDir(name, version)); err != nil {
		return zerr.Wrap(domain.ErrTreeWrite, "failed to remove package metadata")
	}
	return nil
}

func (w *Workspace) manifestPath(name domain.PackageName, version domain.Version) string {
	return filepath.Join(w.tree.PackageDir(name, version), domain.RockManifestName)
}

func (w *Workspace) scratchDir(node *domain.ResolvedNode) string {
	return filepath.Join(w.scratch, node.Name.Short()+"-"+node.Version.String())
}
