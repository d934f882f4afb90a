// Package app implements the application layer for loam.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/loam/internal/adapters/build"
	"go.trai.ch/loam/internal/adapters/config"
	"go.trai.ch/loam/internal/adapters/lockfile"
	"go.trai.ch/loam/internal/adapters/registry"
	"go.trai.ch/loam/internal/adapters/rockspec"
	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/loam/internal/engine/resolver"
	"go.trai.ch/loam/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// App represents the main application logic. It holds the long-lived,
// project-independent dependencies; everything that depends on the loaded
// project configuration is composed per operation.
type App struct {
	loader  *config.Loader
	store   ports.SourceStore
	runtime ports.RuntimeEnv
	logger  ports.Logger
	parser  *rockspec.Parser

	// workDir is where project discovery starts. Overridable for testing.
	workDir string
}

// New creates a new App instance.
func New(
	loader *config.Loader,
	store ports.SourceStore,
	runtime ports.RuntimeEnv,
	log ports.Logger,
) *App {
	return &App{
		loader:  loader,
		store:   store,
		runtime: runtime,
		logger:  log,
		parser:  rockspec.NewParser(),
		workDir: ".",
	}
}

// WithWorkDir overrides the directory project discovery starts from.
// This is primarily used for testing.
func (a *App) WithWorkDir(dir string) *App {
	a.workDir = dir
	return a
}

// session bundles the components built for one operation against one loaded
// project. The registry client's caches live exactly as long as the session,
// so a descriptor can never change mid-resolution.
type session struct {
	project      *config.Project
	client       *registry.Client
	resolver     *resolver.Resolver
	workspace    ports.Workspace
	orchestrator *scheduler.Orchestrator
}

func (a *App) newSession(project *config.Project) *session {
	cfg := project.Config
	client := registry.NewClient(a.parser, a.store, a.logger, cfg)
	backends := build.NewRegistry(a.logger)
	workspace := build.NewWorkspace(a.logger, cfg.Tree, filepath.Join(cfg.CacheDir, "scratch"))

	return &session{
		project:      project,
		client:       client,
		resolver:     resolver.New(client, a.logger, cfg),
		workspace:    workspace,
		orchestrator: scheduler.NewOrchestrator(client, backends, workspace, a.store, a.runtime, a.logger, cfg),
	}
}

func (a *App) loadProject() (*config.Project, error) {
	project, err := a.loader.Load(a.workDir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load project")
	}
	return project, nil
}

// InstallOptions configuration for the Install method.
type InstallOptions struct {
	// Frozen refuses to re-resolve: the lockfile must exist and match the
	// project file, and the locked set is installed exactly as pinned.
	Frozen bool
}

// InstallSummary reports what an install run did to the tree and the lock.
type InstallSummary struct {
	Installed int
	Skipped   int
	Diff      domain.LockDiff
}

// Install resolves the project's root requests and installs the resulting
// graph. A lockfile that still matches the project file pins every package to
// its locked version; a stale lock is re-resolved, moving only unpinned
// entries. The lockfile is rewritten only when every node installed.
func (a *App) Install(ctx context.Context, opts InstallOptions) (*InstallSummary, error) {
	project, err := a.loadProject()
	if err != nil {
		return nil, err
	}
	return a.install(ctx, project, opts)
}

func (a *App) install(ctx context.Context, project *config.Project, opts InstallOptions) (*InstallSummary, error) {
	s := a.newSession(project)

	lock, present, err := lockfile.Load(project.LockPath())
	if err != nil {
		return nil, err
	}

	memo := rootsMemo(project.Roots)
	fresh := present && lock.Memo == memo
	if opts.Frozen && !fresh {
		return nil, zerr.With(
			zerr.Wrap(domain.ErrLockStale, "lockfile is missing or stale, run install to update it"),
			"path", project.LockPath(),
		)
	}

	roots := project.Roots
	if fresh {
		roots, err = pinLockedRoots(roots, lock, false)
	} else {
		// Re-resolution still honors explicit pins.
		roots, err = pinLockedRoots(roots, lock, true)
	}
	if err != nil {
		return nil, err
	}

	graph, err := s.resolver.Resolve(ctx, roots)
	if err != nil {
		return nil, err
	}

	report, err := s.orchestrator.Run(ctx, graph, lock)
	if err != nil {
		return nil, zerr.Wrap(err, "install failed")
	}

	updated := lockFromRun(graph, project.Roots, report, lock, memo)
	if err := lockfile.Save(project.LockPath(), updated); err != nil {
		return nil, err
	}

	diff := lockfile.Diff(lock, updated)
	a.logDiff(diff)

	return &InstallSummary{
		Installed: len(report.Installed),
		Skipped:   len(report.Skipped),
		Diff:      diff,
	}, nil
}

// AddOptions configuration for the Add method.
type AddOptions struct {
	// Pin marks the added packages' lock entries pinned, so lock update
	// never moves them.
	Pin bool
}

// Add records new root dependencies, installs the updated graph and, on
// success, persists the declarations to the project file. A declaration for
// an existing root replaces its constraint.
func (a *App) Add(ctx context.Context, declarations []string, opts AddOptions) (*InstallSummary, error) {
	project, err := a.loadProject()
	if err != nil {
		return nil, err
	}

	added := make([]domain.Dependency, 0, len(declarations))
	for _, declaration := range declarations {
		dep, err := domain.ParseDependency(declaration)
		if err != nil {
			return nil, err
		}
		if dep.Name == domain.LuaName {
			return nil, zerr.With(
				zerr.Wrap(domain.ErrDependencyParse, "the lua runtime version is set in the project file, not added as a dependency"),
				"declaration", declaration,
			)
		}
		added = append(added, dep)
	}

	for _, dep := range added {
		replaced := false
		for i, root := range project.Roots {
			if root.Name == dep.Name {
				project.Roots[i] = dep
				replaced = true
				break
			}
		}
		if !replaced {
			project.Roots = append(project.Roots, dep)
		}
	}

	summary, err := a.install(ctx, project, InstallOptions{})
	if err != nil {
		return nil, err
	}

	if opts.Pin {
		if err := a.pinEntries(project, added); err != nil {
			return nil, err
		}
	}

	// The project file is rewritten only after the install succeeded, so a
	// failed add leaves both the file and the lock untouched.
	if err := a.loader.SaveDependencies(project); err != nil {
		return nil, err
	}

	for _, dep := range added {
		a.logger.Info("added dependency", "package", dep.Name.String(), "constraint", dep.Constraint.String())
	}
	return summary, nil
}

func (a *App) pinEntries(project *config.Project, deps []domain.Dependency) error {
	lock, _, err := lockfile.Load(project.LockPath())
	if err != nil {
		return err
	}
	for _, dep := range deps {
		entry, ok := lock.Entry(dep.Name)
		if !ok {
			continue
		}
		entry.Pinned = true
		lock.Packages[dep.Name.String()] = entry
	}
	return lockfile.Save(project.LockPath(), lock)
}

// Update re-resolves the project against the live registry and installs the
// result. With names given, only those packages may move; everything else
// stays at its locked version. Pinned entries never move either way.
func (a *App) Update(ctx context.Context, names []string) (*InstallSummary, error) {
	project, err := a.loadProject()
	if err != nil {
		return nil, err
	}
	s := a.newSession(project)

	lock, _, err := lockfile.Load(project.LockPath())
	if err != nil {
		return nil, err
	}

	updating := make(map[domain.PackageName]bool, len(names))
	for _, raw := range names {
		name, err := domain.ParsePackageName(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := lock.Entry(name); !ok {
			return nil, zerr.With(
				zerr.Wrap(domain.ErrNotInstalled, "package "+name.String()+" is not in the lockfile"),
				"package", name.String(),
			)
		}
		updating[name] = true
	}

	roots := slices.Clone(project.Roots)
	for _, nameText := range sortedLockNames(lock) {
		entry := lock.Packages[nameText]
		name := domain.PackageName(nameText)
		hold := entry.Pinned || (len(updating) > 0 && !updating[name])
		if !hold {
			continue
		}
		dep, err := lockPin(name, entry)
		if err != nil {
			return nil, err
		}
		roots = append(roots, dep)
	}

	graph, err := s.resolver.Resolve(ctx, roots)
	if err != nil {
		return nil, err
	}

	report, err := s.orchestrator.Run(ctx, graph, lock)
	if err != nil {
		return nil, zerr.Wrap(err, "update failed")
	}

	memo := rootsMemo(project.Roots)
	updated := lockFromRun(graph, project.Roots, report, lock, memo)
	if err := lockfile.Save(project.LockPath(), updated); err != nil {
		return nil, err
	}

	diff := lockfile.Diff(lock, updated)
	a.logDiff(diff)

	return &InstallSummary{
		Installed: len(report.Installed),
		Skipped:   len(report.Skipped),
		Diff:      diff,
	}, nil
}

// Remove uninstalls a package, drops its lock entry and, when it was a root
// request, removes it from the project file. Refuses while other locked
// packages still depend on it.
func (a *App) Remove(_ context.Context, rawName string) error {
	name, err := domain.ParsePackageName(rawName)
	if err != nil {
		return err
	}

	project, err := a.loadProject()
	if err != nil {
		return err
	}
	s := a.newSession(project)

	lock, present, err := lockfile.Load(project.LockPath())
	if err != nil {
		return err
	}
	entry, locked := lock.Entry(name)
	if !present || !locked {
		return zerr.With(
			zerr.Wrap(domain.ErrNotInstalled, "package "+name.String()+" is not in the lockfile"),
			"package", name.String(),
		)
	}

	var dependents []string
	for _, other := range sortedLockNames(lock) {
		if other == name.String() {
			continue
		}
		if _, depends := lock.Packages[other].Dependencies[name.String()]; depends {
			dependents = append(dependents, other)
		}
	}
	if len(dependents) > 0 {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrDependentsRemain,
			"cannot remove "+name.String()+", still required by "+joinNames(dependents)), "package", name.String()), "dependents", joinNames(dependents))
	}

	version, err := domain.ParseVersion(entry.Version)
	if err != nil {
		return zerr.With(zerr.With(domain.ErrLockParse, "package", name.String()), "version", entry.Version)
	}
	if err := s.workspace.Remove(name, version); err != nil {
		if !errors.Is(err, domain.ErrNotInstalled) {
			return err
		}
		a.logger.Warn("package missing from tree, dropping lock entry anyway",
			"package", name.String(),
			"version", entry.Version,
		)
	}

	delete(lock.Packages, name.String())

	wasRoot := false
	kept := project.Roots[:0]
	for _, root := range project.Roots {
		if root.Name == name {
			wasRoot = true
			continue
		}
		kept = append(kept, root)
	}
	project.Roots = kept

	if wasRoot {
		lock.Memo = rootsMemo(project.Roots)
		if err := a.loader.SaveDependencies(project); err != nil {
			return err
		}
	}

	if err := lockfile.Save(project.LockPath(), lock); err != nil {
		return err
	}

	a.logger.Info("removed package", "package", name.String(), "version", entry.Version)
	return nil
}

func (a *App) logDiff(diff domain.LockDiff) {
	for _, name := range diff.Added {
		a.logger.Info("locked package", "package", name.String())
	}
	for _, change := range diff.Changed {
		a.logger.Info("moved package",
			"package", change.Name.String(),
			"from", change.Old,
			"to", change.New,
		)
	}
	for _, name := range diff.Removed {
		a.logger.Info("unlocked package", "package", name.String())
	}
}

// rootsMemo hashes the root request set so a later install can tell whether
// the lockfile still corresponds to the project file.
func rootsMemo(roots []domain.Dependency) string {
	lines := make([]string, 0, len(roots))
	for _, dep := range roots {
		lines = append(lines, dep.Name.String()+" "+dep.Constraint.String())
	}
	slices.Sort(lines)

	digest := xxhash.New()
	for _, line := range lines {
		_, _ = digest.WriteString(line)
		_, _ = digest.WriteString("\n")
	}
	return fmt.Sprintf("xxh64-%016x", digest.Sum64())
}

// pinLockedRoots appends exact-version requests for locked packages, so the
// resolver reproduces the locked graph. With pinnedOnly, only entries the
// user explicitly pinned are held.
func pinLockedRoots(roots []domain.Dependency, lock *domain.LockfileData, pinnedOnly bool) ([]domain.Dependency, error) {
	out := slices.Clone(roots)
	for _, nameText := range sortedLockNames(lock) {
		entry := lock.Packages[nameText]
		if pinnedOnly && !entry.Pinned {
			continue
		}
		dep, err := lockPin(domain.PackageName(nameText), entry)
		if err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, nil
}

func lockPin(name domain.PackageName, entry domain.LockEntry) (domain.Dependency, error) {
	constraint, err := domain.ParseConstraint("== " + entry.Version)
	if err != nil {
		return domain.Dependency{}, zerr.With(zerr.With(domain.ErrLockParse, "package", name.String()), "version", entry.Version)
	}
	return domain.Dependency{Name: name, Constraint: constraint}, nil
}

// lockFromRun assembles the successor lockfile from a fully successful run.
// Constraints are recorded from the project roots and the graph edges, never
// from synthesized lock pins, so an unchanged project round-trips to an
// identical file.
func lockFromRun(
	graph *domain.ResolvedGraph,
	roots []domain.Dependency,
	report *scheduler.Report,
	previous *domain.LockfileData,
	memo string,
) *domain.LockfileData {
	integrity := make(map[domain.PackageName]string, len(report.Installed))
	for _, res := range report.Installed {
		integrity[res.Name] = res.Integrity
	}

	constraints := make(map[domain.PackageName][]string)
	record := func(name domain.PackageName, c domain.Constraint) {
		text := c.String()
		if text == "" {
			return
		}
		if !slices.Contains(constraints[name], text) {
			constraints[name] = append(constraints[name], text)
		}
	}
	for _, root := range roots {
		record(root.Name, root.Constraint)
	}
	for node := range graph.Walk() {
		for _, edge := range node.Dependencies {
			record(edge.Name, edge.Constraint)
		}
	}

	updated := domain.NewLockfileData()
	updated.Memo = memo
	for node := range graph.Walk() {
		entry := domain.LockEntry{Version: node.Version.String()}

		if digest, ok := integrity[node.Name]; ok {
			entry.Integrity = digest
		} else if prev, ok := previous.Entry(node.Name); ok {
			entry.Integrity = prev.Integrity
		}

		if recorded := constraints[node.Name]; len(recorded) > 0 {
			slices.Sort(recorded)
			entry.Constraint = joinNames(recorded)
		}

		if prev, ok := previous.Entry(node.Name); ok {
			entry.Pinned = prev.Pinned
		}

		if len(node.Dependencies) > 0 {
			entry.Dependencies = make(map[string]string, len(node.Dependencies))
			for _, edge := range node.Dependencies {
				if target, ok := graph.Node(edge.Name); ok {
					entry.Dependencies[edge.Name.String()] = target.Version.String()
				}
			}
		}

		updated.Packages[node.Name.String()] = entry
	}
	return updated
}

func sortedLockNames(lock *domain.LockfileData) []string {
	names := make([]string, 0, len(lock.Packages))
	for name := range lock.Packages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
