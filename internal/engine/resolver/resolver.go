// Package resolver turns root version requests into a consistent dependency
// graph of concrete package versions.
package resolver

import (
	"context"
	"slices"
	"strings"

	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports"
	"go.trai.ch/zerr"
)

// maxReresolutions bounds how often one name may be re-resolved after a
// later constraint invalidates its chosen version. The worklist is monotone
// otherwise, so the cap guarantees termination.
const maxReresolutions = 8

// Resolver implements greedy highest-first resolution by iterative constraint
// propagation. It does not backtrack: the registry is assumed to carry enough
// versions that the accumulated-intersection strategy succeeds, and a genuine
// conflict surfaces as ErrConstraintConflict rather than triggering a search.
type Resolver struct {
	manifest ports.ManifestClient
	logger   ports.Logger
	cfg      domain.Config
}

// New creates a Resolver.
func New(manifest ports.ManifestClient, logger ports.Logger, cfg domain.Config) *Resolver {
	return &Resolver{manifest: manifest, logger: logger, cfg: cfg}
}

// recorded is one constraint against a name together with the node that
// contributed it. Provenance lets re-resolution drop the constraints an
// abandoned version choice contributed.
type recorded struct {
	constraint domain.Constraint
	origin     string
}

type candidate struct {
	constraints []recorded
	chosen      domain.Version
	descriptor  *domain.PackageDescriptor
	resolved    bool
	attempts    int
}

func (c *candidate) set() domain.ConstraintSet {
	cs := make(domain.ConstraintSet, len(c.constraints))
	for i, r := range c.constraints {
		cs[i] = r.constraint
	}
	return cs
}

func (c *candidate) origins() []string {
	seen := make(map[string]bool, len(c.constraints))
	var out []string
	for _, r := range c.constraints {
		if !seen[r.origin] {
			seen[r.origin] = true
			out = append(out, r.origin+" ("+r.constraint.String()+")")
		}
	}
	return out
}

type resolveState struct {
	r          *Resolver
	runtime    domain.Version
	candidates map[domain.PackageName]*candidate
	frontier   []domain.PackageName
	queued     map[domain.PackageName]bool
}

// Resolve produces a validated ResolvedGraph for the root requests, or a
// resolution error. No filesystem mutation happens here; a failure aborts
// the whole operation before any build starts.
func (r *Resolver) Resolve(ctx context.Context, roots []domain.Dependency) (*domain.ResolvedGraph, error) {
	runtime, err := r.cfg.RuntimeVersion()
	if err != nil {
		return nil, err
	}

	state := &resolveState{
		r:          r,
		runtime:    runtime,
		candidates: make(map[domain.PackageName]*candidate),
		queued:     make(map[domain.PackageName]bool),
	}

	for _, root := range roots {
		if root.Name == domain.LuaName {
			continue
		}
		if err := state.record(root.Name, root.Constraint, "root request"); err != nil {
			return nil, err
		}
	}

	for len(state.frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := state.frontier[0]
		state.frontier = state.frontier[1:]
		state.queued[name] = false

		if err := state.resolveOne(ctx, name); err != nil {
			return nil, err
		}
	}

	reachable := state.reachable(roots)

	graph := domain.NewResolvedGraph(roots)
	for name, cand := range state.candidates {
		if !reachable[name] {
			r.logger.Debug("dropping unreferenced package",
				"package", name.String(),
			)
			continue
		}
		node := &domain.ResolvedNode{
			Name:       name,
			Version:    cand.chosen,
			Descriptor: cand.descriptor,
		}
		// A name declared as both a runtime and a build dependency
		// contributes one edge; the scheduler counts edges as in-degree.
		edged := make(map[domain.PackageName]bool, len(cand.descriptor.Dependencies))
		for _, dep := range packageDeps(cand.descriptor) {
			if edged[dep.Name] {
				continue
			}
			edged[dep.Name] = true
			node.Dependencies = append(node.Dependencies, domain.ResolvedEdge{
				Name:       dep.Name,
				Constraint: dep.Constraint,
			})
		}
		if err := graph.AddNode(node); err != nil {
			return nil, err
		}
	}

	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph, nil
}

// record accumulates a constraint against a name and queues the name for
// (re-)resolution when needed.
func (s *resolveState) record(name domain.PackageName, c domain.Constraint, origin string) error {
	cand, ok := s.candidates[name]
	if !ok {
		cand = &candidate{}
		s.candidates[name] = cand
	}
	cand.constraints = append(cand.constraints, recorded{constraint: c, origin: origin})

	if cand.resolved && !cand.set().Satisfies(cand.chosen) {
		if err := s.invalidate(name, cand); err != nil {
			return err
		}
	}
	s.enqueue(name)
	return nil
}

// invalidate abandons a previous version choice: the constraints that choice
// contributed to other names are dropped, and the name is re-queued.
func (s *resolveState) invalidate(name domain.PackageName, cand *candidate) error {
	cand.attempts++
	if cand.attempts > maxReresolutions {
		return zerr.With(zerr.With(domain.ErrResolutionDidNotConverge, "package", name.String()), "attempts", cand.attempts)
	}

	s.r.logger.Debug("re-resolving package",
		"package", name.String(),
		"previous", cand.chosen.String(),
	)

	s.dropContributions(originOf(name, cand.chosen))
	cand.resolved = false
	cand.chosen = domain.Version{}
	cand.descriptor = nil
	return nil
}

// dropContributions removes every constraint a given origin contributed.
// Loosening a set never invalidates a satisfied choice, so targets keep
// their versions.
func (s *resolveState) dropContributions(origin string) {
	for _, cand := range s.candidates {
		kept := cand.constraints[:0]
		for _, rec := range cand.constraints {
			if rec.origin != origin {
				kept = append(kept, rec)
			}
		}
		cand.constraints = kept
	}
}

// reachable walks the chosen descriptors from the root requests. A version
// choice abandoned during re-resolution leaves the dependencies it introduced
// behind in the candidate map; only names a surviving choice still references
// belong in the final graph.
func (s *resolveState) reachable(roots []domain.Dependency) map[domain.PackageName]bool {
	seen := make(map[domain.PackageName]bool, len(s.candidates))
	var queue []domain.PackageName
	for _, root := range roots {
		if root.Name == domain.LuaName || seen[root.Name] {
			continue
		}
		seen[root.Name] = true
		queue = append(queue, root.Name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		cand, ok := s.candidates[name]
		if !ok || cand.descriptor == nil {
			continue
		}
		for _, dep := range packageDeps(cand.descriptor) {
			if !seen[dep.Name] {
				seen[dep.Name] = true
				queue = append(queue, dep.Name)
			}
		}
	}
	return seen
}

func (s *resolveState) enqueue(name domain.PackageName) {
	cand := s.candidates[name]
	if cand.resolved || s.queued[name] {
		return
	}
	s.queued[name] = true
	s.frontier = append(s.frontier, name)
}

// resolveOne picks the best version for one name under its accumulated
// constraints and propagates the chosen descriptor's dependencies.
func (s *resolveState) resolveOne(ctx context.Context, name domain.PackageName) error {
	cand := s.candidates[name]
	if cand.resolved {
		return nil
	}

	versions, err := s.r.manifest.ListVersions(ctx, name)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to resolve "+name.String()), "package", name.String())
	}

	version, desc, err := s.pick(ctx, name, cand, versions)
	if err != nil {
		return err
	}

	cand.chosen = version
	cand.descriptor = desc
	cand.resolved = true

	origin := originOf(name, version)
	for _, dep := range packageDeps(desc) {
		if err := s.record(dep.Name, dep.Constraint, origin); err != nil {
			return err
		}
	}
	return nil
}

// pick walks candidate versions highest-first, skipping versions the
// constraint set rejects and descriptors the target runtime cannot use.
func (s *resolveState) pick(
	ctx context.Context,
	name domain.PackageName,
	cand *candidate,
	versions []domain.Version,
) (domain.Version, *domain.PackageDescriptor, error) {
	cs := cand.set()
	allowDev := s.r.cfg.IncludeDev || cs.AllowsDev()

	sorted := slices.Clone(versions)
	domain.SortVersions(sorted)
	slices.Reverse(sorted)

	for _, v := range sorted {
		if v.IsDev() && !allowDev {
			continue
		}
		if !cs.Satisfies(v) {
			continue
		}

		desc, err := s.r.manifest.FetchDescriptor(ctx, name, v)
		if err != nil {
			return domain.Version{}, nil, zerr.With(zerr.With(err, "package", name.String()), "version", v.String())
		}
		if !desc.RuntimeCompatible(s.runtime) {
			s.r.logger.Debug("descriptor incompatible with target runtime",
				"package", name.String(),
				"version", v.String(),
				"runtime", s.runtime.String(),
			)
			continue
		}
		return v, desc, nil
	}

	required := strings.Join(cand.origins(), "; ")
	return domain.Version{}, nil, zerr.With(zerr.With(zerr.With(zerr.Wrap(domain.ErrConstraintConflict,
		"no version of "+name.String()+" satisfies "+cs.String()+", required by "+required), "package", name.String()), "constraints", cs.String()), "required_by", required)
}

// packageDeps returns the resolvable dependencies of a descriptor: declared
// runtime and build dependencies, minus the Lua runtime pseudo-package.
func packageDeps(desc *domain.PackageDescriptor) []domain.Dependency {
	out := make([]domain.Dependency, 0, len(desc.Dependencies)+len(desc.BuildDeps))
	for _, dep := range desc.Dependencies {
		if dep.Name != domain.LuaName {
			out = append(out, dep)
		}
	}
	for _, dep := range desc.BuildDeps {
		if dep.Name != domain.LuaName {
			out = append(out, dep)
		}
	}
	return out
}

func originOf(name domain.PackageName, v domain.Version) string {
	return name.String() + "@" + v.String()
}
