package domain

// LockEntry pins one resolved package in the lockfile. Entries are created or
// overwritten on successful resolution and fetch, read on every subsequent
// install to pin versions and verify artifact integrity, and removed only by
// explicit update or removal.
type LockEntry struct {
	Version string `json:"version"`

	// Integrity is the sha256 digest of the fetched source artifact in
	// "sha256-<hex>" form. It is recomputed and compared on every install
	// that reads this entry.
	Integrity string `json:"integrity,omitempty"`

	// Constraint is the accumulated constraint that produced this pin,
	// kept for display and diffing.
	Constraint string `json:"constraint,omitempty"`

	// Pinned entries are never moved by lock update.
	Pinned bool `json:"pinned,omitempty"`

	// Dependencies maps dependency names to the versions they resolved to.
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// LockfileData is the persisted record of a resolved graph. Packages are
// keyed by package name; serialization is deterministically ordered so the
// file diffs cleanly under version control.
type LockfileData struct {
	FormatVersion int `json:"format_version"`

	// Memo is a hash of the root request set that produced this lock; it
	// lets install detect that the project file changed underneath the lock.
	Memo string `json:"memo,omitempty"`

	Packages map[string]LockEntry `json:"packages"`
}

// NewLockfileData returns an empty lock at the current format version.
func NewLockfileData() *LockfileData {
	return &LockfileData{
		FormatVersion: LockFormatVersion,
		Packages:      make(map[string]LockEntry),
	}
}

// Entry returns the lock entry for a package name, if present.
func (l *LockfileData) Entry(name PackageName) (LockEntry, bool) {
	e, ok := l.Packages[name.String()]
	return e, ok
}

// LockChange describes one package whose pin moved between two locks.
type LockChange struct {
	Name PackageName
	Old  string
	New  string
}

// LockDiff is the difference between two locks, with every slice in lexical
// order.
type LockDiff struct {
	Added   []PackageName
	Removed []PackageName
	Changed []LockChange
}

// Empty reports whether the two locks were identical.
func (d LockDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}
