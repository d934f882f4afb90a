package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// ResolvedNode is one package pinned to a concrete version, with edges to the
// nodes satisfying its dependencies.
type ResolvedNode struct {
	Name       PackageName
	Version    Version
	Descriptor *PackageDescriptor

	// Dependencies holds the resolved edge targets in declaration order,
	// paired with the constraint that produced each edge.
	Dependencies []ResolvedEdge
}

// ResolvedEdge records a dependency edge and its originating constraint.
type ResolvedEdge struct {
	Name       PackageName
	Constraint Constraint
}

// ResolvedGraph is a consistent single-version-per-name dependency graph.
// Invariants, enforced by Validate: no two nodes share a name, every edge
// resolves to a node in the graph, every edge's pinned version satisfies the
// constraint that produced it, and the graph is acyclic.
type ResolvedGraph struct {
	nodes map[PackageName]*ResolvedNode
	roots []Dependency

	// installOrder is populated by Validate: dependencies before dependents.
	installOrder []PackageName
}

// NewResolvedGraph creates an empty graph for the given root requests.
func NewResolvedGraph(roots []Dependency) *ResolvedGraph {
	return &ResolvedGraph{
		nodes: make(map[PackageName]*ResolvedNode),
		roots: roots,
	}
}

// AddNode inserts a node. Two nodes may never share a name.
func (g *ResolvedGraph) AddNode(n *ResolvedNode) error {
	if _, exists := g.nodes[n.Name]; exists {
		return zerr.With(ErrDuplicateNode, "package", n.Name.String())
	}
	g.nodes[n.Name] = n
	return nil
}

// Node returns the node for a name, if present.
func (g *ResolvedGraph) Node(name PackageName) (*ResolvedNode, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Roots returns the root request list.
func (g *ResolvedGraph) Roots() []Dependency {
	return g.roots
}

// Len returns the number of resolved nodes.
func (g *ResolvedGraph) Len() int {
	return len(g.nodes)
}

// Names returns all node names in lexical order.
func (g *ResolvedGraph) Names() []PackageName {
	names := make([]PackageName, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks every graph invariant and populates the install order via
// a depth-first topological sort. Node names are visited lexically so the
// resulting order is deterministic for a given graph.
func (g *ResolvedGraph) Validate() error {
	g.installOrder = make([]PackageName, 0, len(g.nodes))
	visited := make(map[PackageName]int, len(g.nodes)) // 0 unvisited, 1 on path, 2 done
	var path []PackageName

	var visit func(name PackageName) error
	visit = func(name PackageName) error {
		visited[name] = 1
		path = append(path, name)

		node, exists := g.nodes[name]
		if !exists {
			return zerr.With(ErrMissingNode, "package", name.String())
		}

		for _, edge := range node.Dependencies {
			target, exists := g.nodes[edge.Name]
			if !exists {
				return zerr.With(zerr.With(ErrMissingNode, "package", edge.Name.String()), "required_by", name.String())
			}
			if !edge.Constraint.Satisfies(target.Version) {
				return zerr.With(zerr.With(zerr.With(zerr.With(ErrConstraintConflict, "package", edge.Name.String()), "version", target.Version.String()), "constraint", edge.Constraint.String()), "required_by", name.String())
			}
			if visited[edge.Name] == 1 {
				return cycleError(path, edge.Name)
			}
			if visited[edge.Name] == 0 {
				if err := visit(edge.Name); err != nil {
					return err
				}
			}
		}

		visited[name] = 2
		path = path[:len(path)-1]
		g.installOrder = append(g.installOrder, name)
		return nil
	}

	for _, name := range g.Names() {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// cycleError renders the dependency chain that closed the cycle.
func cycleError(path []PackageName, dep PackageName) error {
	start := slices.Index(path, dep)
	if start < 0 {
		start = 0
	}
	parts := make([]string, 0, len(path)-start+1)
	for _, node := range path[start:] {
		parts = append(parts, node.String())
	}
	parts = append(parts, dep.String())
	chain := strings.Join(parts, " -> ")
	return zerr.With(zerr.Wrap(ErrCycleDetected, "dependency cycle: "+chain), "cycle", chain)
}

// Walk yields nodes in install order: every dependency before its dependents.
// Validate must have succeeded first.
func (g *ResolvedGraph) Walk() iter.Seq[*ResolvedNode] {
	return func(yield func(*ResolvedNode) bool) {
		for _, name := range g.installOrder {
			if !yield(g.nodes[name]) {
				return
			}
		}
	}
}

// Dependents returns the names of nodes that depend directly on name.
func (g *ResolvedGraph) Dependents(name PackageName) []PackageName {
	var out []PackageName
	for _, candidate := range g.Names() {
		for _, edge := range g.nodes[candidate].Dependencies {
			if edge.Name == name {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}
