package domain

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// Version is a package version in the ecosystem's "modrev-specrev" form: a
// user-facing module revision plus a numeric packaging revision. The modrev
// may use an arbitrary number of dotted components; anything past the third
// is folded into a pre-release identifier for comparison purposes. The
// modrevs "dev", "scm" and "git" denote development versions.
//
// Ordering is by modrev first, specrev second. Development versions sort
// below every release version.
type Version struct {
	modrev  string
	specrev int
	sv      *semver.Version // nil for development versions

	// extra holds numeric components past the third. They order above the
	// bare triple: 1.0.0.1 > 1.0.0.
	extra []int
}

// ParseVersion parses a version string such as "1.0.2-1", "2.1" or "scm-1".
// A missing specrev defaults to 1.
func ParseVersion(text string) (Version, error) {
	modrev, specrev, err := splitSpecrev(text)
	if err != nil {
		return Version{}, err
	}

	if isDevModrev(modrev) {
		return Version{modrev: modrev, specrev: specrev}, nil
	}

	triple, extra := splitExtraComponents(modrev)
	sv, err := semver.NewVersion(normalizeModrev(triple))
	if err != nil {
		return Version{}, zerr.With(zerr.With(ErrVersionParse, "version", text), "reason", err.Error())
	}
	return Version{modrev: modrev, specrev: specrev, sv: sv, extra: extra}, nil
}

// splitExtraComponents separates numeric components past the third so they
// can order above the bare triple. Non-numeric surplus components stay in the
// modrev and are folded into a pre-release identifier by normalizeModrev.
func splitExtraComponents(modrev string) (string, []int) {
	parts := strings.Split(modrev, ".")
	if len(parts) <= 3 {
		return modrev, nil
	}

	extra := make([]int, 0, len(parts)-3)
	for _, part := range parts[3:] {
		n, err := strconv.Atoi(part)
		if err != nil {
			return modrev, nil
		}
		extra = append(extra, n)
	}
	return strings.Join(parts[:3], "."), extra
}

// MustParseVersion is a test helper that panics on malformed input.
func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

// splitSpecrev splits "modrev-specrev". The specrev, when present, must be
// all digits; a trailing "-suffix" with non-digit characters belongs to the
// modrev only if a later digit-only segment follows it, which rfind handles
// for free.
func splitSpecrev(text string) (string, int, error) {
	pos := strings.LastIndexByte(text, '-')
	if pos < 0 {
		return text, 1, nil
	}

	suffix := text[pos+1:]
	if suffix == "" || !allDigits(suffix) {
		return "", 0, zerr.With(zerr.With(ErrVersionParse, "version", text), "specrev", suffix)
	}

	specrev, err := strconv.Atoi(suffix)
	if err != nil || specrev < 0 {
		return "", 0, zerr.With(zerr.With(ErrVersionParse, "version", text), "specrev", suffix)
	}
	return text[:pos], specrev, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isDevModrev(s string) bool {
	return s == "dev" || s == "scm" || s == "git"
}

// normalizeModrev turns the ecosystem's free-form dotted revisions into a
// parseable semver triple: missing components are padded with ".0" and any
// components past the third become a pre-release identifier, so "1.0.0.2"
// compares as "1.0.0-2".
func normalizeModrev(modrev string) string {
	for strings.Count(modrev, ".") < 2 {
		modrev += ".0"
	}
	parts := strings.Split(modrev, ".")
	if len(parts) > 3 {
		return strings.Join(parts[:3], ".") + "-" + strings.Join(parts[3:], ".")
	}
	return modrev
}

// String renders the version exactly as it was parsed.
func (v Version) String() string {
	if v.modrev == "" {
		return ""
	}
	return v.modrev + "-" + strconv.Itoa(v.specrev)
}

// IsDev reports whether this is a development ("dev", "scm", "git") version.
func (v Version) IsDev() bool {
	return v.sv == nil && v.modrev != ""
}

// Modrev returns the user-facing module revision.
func (v Version) Modrev() string {
	return v.modrev
}

// Specrev returns the packaging revision.
func (v Version) Specrev() int {
	return v.specrev
}

// SemVer returns the normalized comparison form, or nil for dev versions.
func (v Version) SemVer() *semver.Version {
	return v.sv
}

// Compare returns -1, 0 or 1 ordering v against o. Development versions sort
// below all release versions; among themselves they order by specrev, then
// modrev.
func (v Version) Compare(o Version) int {
	switch {
	case v.IsDev() && !o.IsDev():
		return -1
	case !v.IsDev() && o.IsDev():
		return 1
	case v.IsDev() && o.IsDev():
		if v.specrev != o.specrev {
			return cmpInt(v.specrev, o.specrev)
		}
		return strings.Compare(v.modrev, o.modrev)
	}

	if c := v.sv.Compare(o.sv); c != 0 {
		return c
	}
	if c := slices.Compare(v.extra, o.extra); c != 0 {
		return c
	}
	return cmpInt(v.specrev, o.specrev)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports whether two versions compare equal and render identically.
func (v Version) Equal(o Version) bool {
	return v.modrev == o.modrev && v.specrev == o.specrev
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// SortVersions orders versions ascending in place.
func SortVersions(versions []Version) {
	slices.SortFunc(versions, Version.Compare)
}
