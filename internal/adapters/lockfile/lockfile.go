// Package lockfile persists resolved graphs as a deterministic,
// version-controllable lockfile.
package lockfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/zerr"
)

// Load reads the lockfile at path. The second return is false when no
// lockfile exists yet; that is not an error. A present but unreadable or
// malformed file fails with domain.ErrLockParse.
func Load(path string) (*domain.LockfileData, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from project discovery
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewLockfileData(), false, nil
		}
		return nil, false, zerr.With(zerr.With(domain.ErrLockParse, "path", path), "reason", err.Error())
	}

	var lock domain.LockfileData
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, false, zerr.With(zerr.With(domain.ErrLockParse, "path", path), "reason", err.Error())
	}
	if lock.FormatVersion > domain.LockFormatVersion {
		return nil, false, zerr.With(zerr.With(zerr.With(domain.ErrLockParse, "path", path), "format_version", lock.FormatVersion), "reason", "lockfile written by a newer version")
	}
	if lock.Packages == nil {
		lock.Packages = make(map[string]domain.LockEntry)
	}

	return &lock, true, nil
}

// Save writes the lock atomically: the serialized form goes to a temporary
// file in the same directory and replaces the target via rename, so a crash
// mid-write never leaves a truncated lockfile behind. Serialization is
// deterministic; saving an unchanged lock produces a byte-identical file.
func Save(path string, lock *domain.LockfileData) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	// Constraint strings carry comparison operators; keep them readable.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(lock); err != nil {
		return zerr.Wrap(err, "failed to serialize lockfile")
	}
	data := buf.Bytes()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return zerr.With(zerr.With(domain.ErrTreeWrite, "path", path), "reason", err.Error())
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
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

// Diff reports how the pinned set moved between two locks, every slice in
// lexical order.
func Diff(old, updated *domain.LockfileData) domain.LockDiff {
	var diff domain.LockDiff

	for name, entry := range updated.Packages {
		prev, existed := old.Packages[name]
		switch {
		case !existed:
			diff.Added = append(diff.Added, domain.PackageName(name))
		case prev.Version != entry.Version:
			diff.Changed = append(diff.Changed, domain.LockChange{
				Name: domain.PackageName(name),
				Old:  prev.Version,
				New:  entry.Version,
			})
		}
	}
	for name := range old.Packages {
		if _, kept := updated.Packages[name]; !kept {
			diff.Removed = append(diff.Removed, domain.PackageName(name))
		}
	}

	slices.Sort(diff.Added)
	slices.Sort(diff.Removed)
	slices.SortFunc(diff.Changed, func(a, b domain.LockChange) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
	return diff
}
