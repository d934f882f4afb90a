// Package store implements content-addressed storage for downloaded source
// artifacts.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/zerr"
)

const digestPrefix = "sha256-"

// Store keeps source artifacts under a root directory, addressed by the
// sha256 digest of their contents. Identical archives fetched for different
// packages share one file.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Put streams r into the store, computing the digest as it writes. It
// returns the stored path and the "sha256-<hex>" digest. Re-putting existing
// content is a no-op that returns the existing path.
func (s *Store) Put(r io.Reader, hint string) (string, string, error) {
	if err := os.MkdirAll(s.root, domain.DirPerm); err != nil {
		return "", "", zerr.Wrap(err, "failed to create source store")
	}

	tmp, err := os.CreateTemp(s.root, ".incoming.*")
	if err != nil {
		return "", "", zerr.Wrap(err, "failed to create staging file")
	}
	tmpName := tmp.Name()

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", "", zerr.With(zerr.Wrap(err, "failed to store artifact"), "hint", hint)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", "", zerr.Wrap(err, "failed to store artifact")
	}

	digest := digestPrefix + hex.EncodeToString(hash.Sum(nil))
	path := s.pathFor(digest)

	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(tmpName)
		return path, digest, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		_ = os.Remove(tmpName)
		return "", "", zerr.Wrap(err, "failed to create store shard")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", "", zerr.Wrap(err, "failed to commit artifact")
	}

	return path, digest, nil
}

// Lookup returns the stored path for a digest, if present.
func (s *Store) Lookup(digest string) (string, bool) {
	path := s.pathFor(digest)
	if path == "" {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Verify recomputes the digest of the file at path and compares it against
// the expected digest. A mismatch fails with domain.ErrIntegrityViolation.
func (s *Store) Verify(path, digest string) error {
	f, err := os.Open(path) //nolint:gosec // path comes from the store itself
	if err != nil {
		return zerr.With(zerr.With(domain.ErrIntegrityViolation, "path", path), "reason", err.Error())
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return zerr.With(zerr.With(domain.ErrIntegrityViolation, "path", path), "reason", err.Error())
	}

	actual := digestPrefix + hex.EncodeToString(hash.Sum(nil))
	if actual != digest {
		return zerr.With(zerr.With(zerr.With(domain.ErrIntegrityViolation, "path", path), "expected", digest), "actual", actual)
	}
	return nil
}

// pathFor shards stored files by the first digest byte to keep directories
// small. Returns "" for digests in an unknown format.
func (s *Store) pathFor(digest string) string {
	hexPart, ok := strings.CutPrefix(digest, digestPrefix)
	if !ok || len(hexPart) != sha256.Size*2 {
		return ""
	}
	return filepath.Join(s.root, domain.SourcesDirName, hexPart[:2], hexPart)
}
