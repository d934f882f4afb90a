// Package domain contains the core domain models for dependency resolution,
// the lockfile, and build orchestration.
package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// PackageName is a case-normalized package identifier, optionally namespaced
// as "namespace/name". It is the unique key into the registry index and into
// a resolved graph.
type PackageName string

// ParsePackageName normalizes and validates a package name.
func ParsePackageName(s string) (PackageName, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", zerr.With(ErrNameParse, "name", s)
	}

	parts := strings.Split(s, "/")
	if len(parts) > 2 {
		return "", zerr.With(ErrNameParse, "name", s)
	}
	for _, part := range parts {
		if part == "" || !validNamePart(part) {
			return "", zerr.With(ErrNameParse, "name", s)
		}
	}

	return PackageName(s), nil
}

// MustParsePackageName is a test helper that panics on malformed input.
func MustParsePackageName(s string) PackageName {
	n, err := ParsePackageName(s)
	if err != nil {
		panic(err)
	}
	return n
}

func validNamePart(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// Namespace returns the namespace component, or "" for unqualified names.
func (n PackageName) Namespace() string {
	if i := strings.IndexByte(string(n), '/'); i >= 0 {
		return string(n)[:i]
	}
	return ""
}

// Short returns the name without its namespace.
func (n PackageName) Short() string {
	if i := strings.IndexByte(string(n), '/'); i >= 0 {
		return string(n)[i+1:]
	}
	return string(n)
}

func (n PackageName) String() string {
	return string(n)
}
