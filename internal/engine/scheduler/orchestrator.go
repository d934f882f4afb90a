// Package scheduler executes a resolved dependency graph: it fetches,
// builds and installs packages concurrently, never starting a package
// before its dependencies are installed.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// InstallStatus represents the lifecycle state of one package during a run.
type InstallStatus string

const (
	// StatusPending indicates the package is waiting on its dependencies.
	StatusPending InstallStatus = "Pending"
	// StatusFetching indicates the source artifact is being downloaded.
	StatusFetching InstallStatus = "Fetching"
	// StatusBuilding indicates the build backend is running.
	StatusBuilding InstallStatus = "Building"
	// StatusInstalled indicates staged files were promoted into the tree.
	StatusInstalled InstallStatus = "Installed"
	// StatusSkipped indicates the exact version was already installed.
	StatusSkipped InstallStatus = "Skipped"
	// StatusFailed indicates the package failed, or a dependency of it did.
	StatusFailed InstallStatus = "Failed"
)

// InstallResult records one successfully installed package.
type InstallResult struct {
	Name      domain.PackageName
	Version   domain.Version
	Integrity string
	Files     domain.InstalledFiles
}

// Report is the outcome of a fully successful run, in install order.
// The caller persists it to the lockfile; the orchestrator itself never
// touches the lockfile.
type Report struct {
	Installed []InstallResult
	Skipped   []domain.PackageName
}

// Orchestrator drives the install state machine over a validated graph.
// Independent subtrees build concurrently up to the configured parallelism;
// a failure poisons only the failing package's transitive dependents while
// siblings continue.
type Orchestrator struct {
	manifest  ports.ManifestClient
	backends  ports.BackendRegistry
	workspace ports.Workspace
	store     ports.SourceStore
	runtime   ports.RuntimeEnv
	logger    ports.Logger
	cfg       domain.Config

	mu     sync.RWMutex
	status map[domain.PackageName]InstallStatus
}

// NewOrchestrator creates an Orchestrator with the given dependencies.
func NewOrchestrator(
	manifest ports.ManifestClient,
	backends ports.BackendRegistry,
	workspace ports.Workspace,
	store ports.SourceStore,
	runtime ports.RuntimeEnv,
	logger ports.Logger,
	cfg domain.Config,
) *Orchestrator {
	return &Orchestrator{
		manifest:  manifest,
		backends:  backends,
		workspace: workspace,
		store:     store,
		runtime:   runtime,
		logger:    logger,
		cfg:       cfg,
		status:    make(map[domain.PackageName]InstallStatus),
	}
}

// Status returns the current lifecycle state of a package.
func (o *Orchestrator) Status(name domain.PackageName) InstallStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status[name]
}

func (o *Orchestrator) setStatus(name domain.PackageName, status InstallStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status[name] = status
}

// Run installs every package in the graph. lock carries the previous
// lockfile state for integrity verification and skip decisions; pass an
// empty LockfileData when none exists. On any failure the aggregate error
// covers every directly failed package and no Report is returned.
func (o *Orchestrator) Run(
	ctx context.Context,
	graph *domain.ResolvedGraph,
	lock *domain.LockfileData,
) (*Report, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	// Locate the runtime once up front; every native build shares it.
	paths, err := o.runtime.Locate(ctx, o.cfg.LuaVersion)
	if err != nil {
		return nil, err
	}

	state := o.newRunState(ctx, graph, lock, paths)

	o.mu.Lock()
	for _, name := range graph.Names() {
		o.status[name] = StatusPending
	}
	o.mu.Unlock()

	return state.runExecutionLoop()
}

type result struct {
	name      domain.PackageName
	version   domain.Version
	integrity string
	files     domain.InstalledFiles
	skipped   bool
	err       error
}

type installRunState struct {
	o           *Orchestrator
	graph       *domain.ResolvedGraph
	lock        *domain.LockfileData
	paths       ports.RuntimePaths
	inDegree    map[domain.PackageName]int
	ready       []domain.PackageName
	failed      map[domain.PackageName]bool
	done        map[domain.PackageName]result
	active      int
	resultsCh   chan result
	errs        error
	ctx         context.Context
	parallelism int
}

func (o *Orchestrator) newRunState(
	ctx context.Context,
	graph *domain.ResolvedGraph,
	lock *domain.LockfileData,
	paths ports.RuntimePaths,
) *installRunState {
	parallelism := o.cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	// In-degree counts distinct dependency names: Dependents reports each
	// dependent once, so a node carrying duplicate edges to one name must
	// not wait for two completions.
	inDegree := make(map[domain.PackageName]int, graph.Len())
	var ready []domain.PackageName
	for node := range graph.Walk() {
		deps := make(map[domain.PackageName]bool, len(node.Dependencies))
		for _, edge := range node.Dependencies {
			deps[edge.Name] = true
		}
		inDegree[node.Name] = len(deps)
		if len(deps) == 0 {
			ready = append(ready, node.Name)
		}
	}

	return &installRunState{
		o:           o,
		graph:       graph,
		lock:        lock,
		paths:       paths,
		inDegree:    inDegree,
		ready:       ready,
		failed:      make(map[domain.PackageName]bool),
		done:        make(map[domain.PackageName]result),
		resultsCh:   make(chan result, parallelism),
		ctx:         ctx,
		parallelism: parallelism,
	}
}

func (state *installRunState) runExecutionLoop() (*Report, error) {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil && state.active == 0 {
			return nil, errors.Join(state.errs, state.ctx.Err())
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
		}
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}
	if state.errs != nil {
		return nil, state.errs
	}

	return state.report(), nil
}

func (state *installRunState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *installRunState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		name := state.ready[0]
		state.ready = state.ready[1:]

		if state.failed[name] {
			continue
		}

		state.active++
		node, _ := state.graph.Node(name)
		go state.executeNode(node)
	}
}

func (state *installRunState) executeNode(node *domain.ResolvedNode) {
	state.resultsCh <- state.installOne(node)
}

// installOne runs the per-package state machine: skip check, fetch,
// integrity verification, build in scratch, then promotion. The tree is
// mutated only by the final promotion step.
func (state *installRunState) installOne(node *domain.ResolvedNode) result {
	o := state.o
	res := result{name: node.Name, version: node.Version}

	entry, locked := state.lock.Entry(node.Name)
	if locked && entry.Version == node.Version.String() &&
		o.workspace.Installed(node.Name, node.Version) {
		res.skipped = true
		res.integrity = entry.Integrity
		o.logger.Debug("package already installed",
			"package", node.Name.String(),
			"version", node.Version.String(),
		)
		return res
	}

	o.setStatus(node.Name, StatusFetching)
	artifact, err := state.fetchArtifact(node, entry, locked)
	if err != nil {
		res.err = zerr.With(err, "package", node.Name.String())
		return res
	}

	if locked && entry.Version == node.Version.String() &&
		entry.Integrity != "" && entry.Integrity != artifact.Integrity {
		res.err = zerr.With(zerr.With(zerr.With(zerr.With(domain.ErrIntegrityViolation, "package", node.Name.String()), "version", node.Version.String()), "expected", entry.Integrity), "actual", artifact.Integrity)
		return res
	}
	res.integrity = artifact.Integrity

	o.setStatus(node.Name, StatusBuilding)
	dirs, err := o.workspace.Prepare(state.ctx, node, artifact)
	if err != nil {
		res.err = zerr.With(err, "package", node.Name.String())
		return res
	}

	backend, err := o.backends.For(node.Descriptor.Build.Type)
	if err != nil {
		o.workspace.Discard(node)
		res.err = zerr.With(err, "package", node.Name.String())
		return res
	}

	files, err := backend.Build(state.ctx, ports.BuildInput{
		Descriptor: node.Descriptor,
		SourceDir:  dirs.SourceDir,
		StageDir:   dirs.StageDir,
		Tree:       o.cfg.Tree,
		LuaIncDir:  state.paths.IncDir,
		LuaLibDir:  state.paths.LibDir,
	})
	if err != nil {
		o.workspace.Discard(node)
		res.err = zerr.With(err, "package", node.Name.String())
		return res
	}

	// A cancelled run must not promote: the tree stays untouched even
	// though the build itself completed.
	if err := state.ctx.Err(); err != nil {
		o.workspace.Discard(node)
		res.err = err
		return res
	}

	if err := o.workspace.Promote(node, files); err != nil {
		o.workspace.Discard(node)
		res.err = zerr.With(err, "package", node.Name.String())
		return res
	}

	res.files = files
	return res
}

// fetchArtifact reuses the cached source artifact when the lockfile pins the
// exact version being installed. A cached file that fails verification is
// fatal for the node; the mismatch is never masked by a fresh download. Only
// a true cache miss reaches the network.
func (state *installRunState) fetchArtifact(
	node *domain.ResolvedNode,
	entry domain.LockEntry,
	locked bool,
) (ports.SourceArtifact, error) {
	o := state.o

	if locked && entry.Version == node.Version.String() && entry.Integrity != "" {
		if path, ok := o.store.Lookup(entry.Integrity); ok {
			if err := o.store.Verify(path, entry.Integrity); err != nil {
				return ports.SourceArtifact{}, err
			}
			o.logger.Debug("reusing cached source artifact",
				"package", node.Name.String(),
				"digest", entry.Integrity,
			)
			return ports.SourceArtifact{Path: path, Integrity: entry.Integrity}, nil
		}
	}

	return o.manifest.FetchSource(state.ctx, node.Descriptor)
}

func (state *installRunState) handleResult(res result) {
	state.active--

	if res.err != nil {
		state.errs = errors.Join(state.errs, res.err)
		state.o.setStatus(res.name, StatusFailed)
		state.failDependents(res.name)
		return
	}

	if res.skipped {
		state.o.setStatus(res.name, StatusSkipped)
	} else {
		state.o.setStatus(res.name, StatusInstalled)
		state.o.logger.Info("installed package",
			"package", res.name.String(),
			"version", res.version.String(),
		)
	}
	state.done[res.name] = res

	for _, dep := range state.graph.Dependents(res.name) {
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 && !state.failed[dep] {
			state.ready = append(state.ready, dep)
		}
	}
}

// failDependents poisons every transitive dependent of a failed package so
// it never becomes ready. Unrelated subtrees keep building.
func (state *installRunState) failDependents(name domain.PackageName) {
	queue := []domain.PackageName{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range state.graph.Dependents(current) {
			if state.failed[dep] {
				continue
			}
			state.failed[dep] = true
			state.o.setStatus(dep, StatusFailed)
			state.o.logger.Warn("skipping package: dependency failed",
				"package", dep.String(),
				"dependency", name.String(),
			)
			queue = append(queue, dep)
		}
	}
}

func (state *installRunState) report() *Report {
	report := &Report{}
	for node := range state.graph.Walk() {
		res, ok := state.done[node.Name]
		if !ok {
			continue
		}
		if res.skipped {
			report.Skipped = append(report.Skipped, res.name)
			continue
		}
		report.Installed = append(report.Installed, InstallResult{
			Name:      res.name,
			Version:   res.version,
			Integrity: res.integrity,
			Files:     res.files,
		})
	}
	return report
}
