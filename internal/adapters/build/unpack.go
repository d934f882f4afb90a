package build

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/zerr"
)

// unpack extracts a source archive into dest. Tarballs (gzipped or not) and
// zip archives are supported; .src.rock files are zip archives by convention.
// Entries that would land outside dest fail the whole extraction.
func unpack(archivePath, dest string) error {
	name := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return unpackTar(archivePath, dest, true)
	case strings.HasSuffix(name, ".tar"):
		return unpackTar(archivePath, dest, false)
	case strings.HasSuffix(name, ".zip"), strings.HasSuffix(name, ".rock"):
		return unpackZip(archivePath, dest)
	default:
		// Registry artifacts are content-addressed and may lose their
		// extension; sniff the magic bytes.
		return unpackSniffed(archivePath, dest)
	}
}

func unpackSniffed(archivePath, dest string) error {
	f, err := os.Open(archivePath) //nolint:gosec // path comes from the source store
	if err != nil {
		return zerr.Wrap(domain.ErrUnpackFailed, "unreadable archive")
	}
	var magic [4]byte
	_, readErr := io.ReadFull(f, magic[:])
	_ = f.Close()
	if readErr != nil {
		return zerr.Wrap(domain.ErrUnpackFailed, "archive too short")
	}

	switch {
	case magic[0] == 0x1f && magic[1] == 0x8b:
		return unpackTar(archivePath, dest, true)
	case magic[0] == 'P' && magic[1] == 'K':
		return unpackZip(archivePath, dest)
	default:
		return unpackTar(archivePath, dest, false)
	}
}

func unpackTar(archivePath, dest string, gzipped bool) error {
	f, err := os.Open(archivePath) //nolint:gosec // path comes from the source store
	if err != nil {
		return zerr.Wrap(domain.ErrUnpackFailed, "unreadable archive")
	}
	defer f.Close()

	var reader io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrUnpackFailed, "invalid gzip stream"), "archive", archivePath)
		}
		defer gz.Close()
		reader = gz
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrUnpackFailed, "invalid tar stream"), "archive", archivePath)
		}

		target, err := entryPath(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return zerr.Wrap(domain.ErrUnpackFailed, "failed to create "+header.Name)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, header.FileInfo().Mode()); err != nil {
				return zerr.With(err, "entry", header.Name)
			}
		default:
			// Symlinks and special files are dropped; package sources are
			// plain trees and a link could point outside the scratch area.
			continue
		}
	}
}

func unpackZip(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrUnpackFailed, "invalid zip archive"), "archive", archivePath)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		target, err := entryPath(dest, entry.Name)
		if err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return zerr.Wrap(domain.ErrUnpackFailed, "failed to create "+entry.Name)
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrUnpackFailed, "unreadable zip entry"), "entry", entry.Name)
		}
		writeErr := writeEntry(target, rc, entry.FileInfo().Mode())
		_ = rc.Close()
		if writeErr != nil {
			return zerr.With(writeErr, "entry", entry.Name)
		}
	}
	return nil
}

// entryPath validates an archive entry name against traversal outside dest.
func entryPath(dest, name string) (string, error) {
	target := filepath.Clean(filepath.Join(dest, filepath.FromSlash(name)))
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return "", zerr.With(
			zerr.Wrap(domain.ErrUnpackFailed, "archive entry "+name+" escapes the extraction root"),
			"entry", name,
		)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrUnpackFailed, "failed to create parent directory")
	}
	perm := os.FileMode(domain.FilePerm)
	if mode&0o111 != 0 {
		perm = domain.ExecPerm
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm) //nolint:gosec // target validated by entryPath
	if err != nil {
		return zerr.Wrap(domain.ErrUnpackFailed, "failed to create file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return zerr.Wrap(domain.ErrUnpackFailed, "failed to write file")
	}
	return f.Close()
}
