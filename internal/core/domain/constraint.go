package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// Constraint is a predicate over versions, parsed from the ecosystem's
// constraint syntax: the operators ==, >=, <=, >, <, ~> and comma-separated
// conjunctions of them. A bare "dev"/"scm"/"git" token (optionally prefixed
// with "==") matches development versions only.
//
// Evaluation of release constraints is delegated to semver ranges after a
// textual transformation: "==" becomes "=", "@" becomes "=", and the
// pessimistic "~>" is expanded into a half-open range on its last given
// component.
type Constraint struct {
	raw string
	rng *semver.Constraints // nil for dev-only and any-constraints
	dev string              // dev token this constraint pins, e.g. "scm"
	any bool
}

// AnyConstraint matches every release version.
func AnyConstraint() Constraint {
	return Constraint{raw: "", any: true}
}

// ParseConstraint parses a constraint expression. Malformed input fails with
// ErrConstraintParse carrying the reason and the byte offset of the offending
// segment; it never panics.
func ParseConstraint(text string) (Constraint, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return AnyConstraint(), nil
	}

	if dev := strings.TrimSpace(strings.TrimPrefix(trimmed, "==")); isDevModrev(dev) {
		return Constraint{raw: trimmed, dev: dev}, nil
	}

	segments := strings.Split(trimmed, ",")
	transformed := make([]string, 0, len(segments))
	offset := 0
	for _, seg := range segments {
		t, err := transformSegment(seg)
		if err != nil {
			return Constraint{}, zerr.With(zerr.With(zerr.With(ErrConstraintParse, "constraint", text), "offset", offset), "reason", err.Error())
		}
		transformed = append(transformed, t)
		offset += len(seg) + 1
	}

	rng, err := semver.NewConstraint(strings.Join(transformed, ", "))
	if err != nil {
		return Constraint{}, zerr.With(zerr.With(zerr.With(ErrConstraintParse, "constraint", text), "offset", 0), "reason", err.Error())
	}

	return Constraint{raw: trimmed, rng: rng}, nil
}

// MustParseConstraint is a test helper that panics on malformed input.
func MustParseConstraint(text string) Constraint {
	c, err := ParseConstraint(text)
	if err != nil {
		panic(err)
	}
	return c
}

// transformSegment rewrites one comparator from the ecosystem's syntax into
// semver range syntax.
func transformSegment(seg string) (string, error) {
	s := unescapeEntities(strings.TrimSpace(seg))
	if s == "" {
		return "", zerr.New("empty comparator")
	}

	switch {
	case strings.HasPrefix(s, "~>"):
		return expandPessimistic(strings.TrimSpace(s[2:]))
	case strings.HasPrefix(s, "@"):
		return "=" + constraintVersion(strings.TrimSpace(s[1:]), true), nil
	case strings.HasPrefix(s, "=="):
		return "=" + constraintVersion(strings.TrimSpace(s[2:]), true), nil
	case strings.HasPrefix(s, ">="), strings.HasPrefix(s, "<="):
		return s[:2] + constraintVersion(strings.TrimSpace(s[2:]), false), nil
	case strings.HasPrefix(s, ">"), strings.HasPrefix(s, "<"), strings.HasPrefix(s, "="):
		return s[:1] + constraintVersion(strings.TrimSpace(s[1:]), false), nil
	default:
		// A bare version is an exact match.
		return "=" + constraintVersion(s, true), nil
	}
}

// constraintVersion prepares a version literal for the range parser: the
// packaging revision and any surplus numeric components are dropped, since
// constraints range over modrev triples. Exact comparators additionally pad
// to a full triple so "== 1.0" means 1.0.0, not a wildcard.
func constraintVersion(ver string, exact bool) string {
	ver, _ = splitExtraComponents(stripConstraintSpecrev(ver))
	if exact {
		return normalizeModrev(ver)
	}
	return ver
}

// expandPessimistic rewrites "~> X" into ">= X, < bump(X)" where the bump
// increments the last component the user actually wrote.
func expandPessimistic(ver string) (string, error) {
	ver, _ = splitExtraComponents(stripConstraintSpecrev(ver))
	min, err := semver.NewVersion(normalizeModrev(ver))
	if err != nil {
		return "", zerr.Wrap(err, "invalid pessimistic constraint")
	}

	var max semver.Version
	switch strings.Count(ver, ".") {
	case 0:
		max = min.IncMajor()
	case 1:
		max = min.IncMinor()
	default:
		max = min.IncPatch()
	}

	return ">= " + min.String() + ", < " + max.String(), nil
}

// stripConstraintSpecrev drops a trailing "-<digits>" packaging revision from
// a version literal inside a constraint; constraints range over modrevs.
func stripConstraintSpecrev(ver string) string {
	if pos := strings.LastIndexByte(ver, '-'); pos > 0 && allDigits(ver[pos+1:]) {
		return ver[:pos]
	}
	return ver
}

// unescapeEntities decodes the HTML entities that registry manifests use for
// comparison operators.
var entityReplacer = strings.NewReplacer(
	"&gt;", ">",
	"&lt;", "<",
	"&quot;", `"`,
	"&amp;", "&",
)

func unescapeEntities(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	return entityReplacer.Replace(s)
}

// Satisfies reports whether the version is admitted by the constraint.
// Release constraints never admit development versions; a dev constraint
// admits only development versions whose modrev it names; the any-constraint
// admits everything. Keeping development versions out of ordinary resolution
// is BestMatch's job, not the predicate's.
func (c Constraint) Satisfies(v Version) bool {
	switch {
	case c.any:
		return true
	case c.dev != "":
		return v.IsDev() && strings.HasSuffix(c.dev, v.Modrev())
	case v.IsDev():
		return false
	default:
		return c.rng.Check(v.SemVer())
	}
}

// AllowsDev reports whether the constraint explicitly names a development
// version.
func (c Constraint) AllowsDev() bool {
	return c.dev != ""
}

// IsAny reports whether the constraint admits every release version.
func (c Constraint) IsAny() bool {
	return c.any
}

func (c Constraint) String() string {
	if c.any {
		return "any"
	}
	return c.raw
}

// ConstraintSet is the conjunction of every constraint recorded against one
// package name during resolution.
type ConstraintSet []Constraint

// Satisfies reports whether the version is admitted by every constraint in
// the set. The empty set admits everything.
func (cs ConstraintSet) Satisfies(v Version) bool {
	for _, c := range cs {
		if !c.Satisfies(v) {
			return false
		}
	}
	return true
}

// AllowsDev reports whether any constraint in the set names a development
// version.
func (cs ConstraintSet) AllowsDev() bool {
	for _, c := range cs {
		if c.AllowsDev() {
			return true
		}
	}
	return false
}

func (cs ConstraintSet) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}

// BestMatch returns the highest candidate satisfying every constraint in the
// set. Ties between equal modrevs are broken by the higher specrev through
// version ordering. Development versions are skipped unless includeDev is set
// or the set explicitly names one. The second return is false when no
// candidate qualifies.
func BestMatch(cs ConstraintSet, candidates []Version, includeDev bool) (Version, bool) {
	allowDev := includeDev || cs.AllowsDev()

	var best Version
	found := false
	for _, v := range candidates {
		if v.IsDev() && !allowDev {
			continue
		}
		if !cs.Satisfies(v) {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best = v
			found = true
		}
	}
	return best, found
}
