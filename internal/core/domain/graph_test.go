package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/loam/internal/core/domain"
)

func node(t *testing.T, name, version string, deps map[string]string) *domain.ResolvedNode {
	t.Helper()
	n := &domain.ResolvedNode{
		Name:    domain.MustParsePackageName(name),
		Version: domain.MustParseVersion(version),
	}
	for depName, constraint := range deps {
		n.Dependencies = append(n.Dependencies, domain.ResolvedEdge{
			Name:       domain.MustParsePackageName(depName),
			Constraint: domain.MustParseConstraint(constraint),
		})
	}
	return n
}

func TestResolvedGraph_Validate(t *testing.T) {
	g := domain.NewResolvedGraph(nil)
	require.NoError(t, g.AddNode(node(t, "app", "1.0-1", map[string]string{"lib": ">= 1.0"})))
	require.NoError(t, g.AddNode(node(t, "lib", "1.2-1", map[string]string{"base": ""})))
	require.NoError(t, g.AddNode(node(t, "base", "0.5-1", nil)))

	require.NoError(t, g.Validate())

	// Install order puts dependencies before dependents.
	pos := map[domain.PackageName]int{}
	i := 0
	for n := range g.Walk() {
		pos[n.Name] = i
		i++
	}
	assert.Less(t, pos["base"], pos["lib"])
	assert.Less(t, pos["lib"], pos["app"])
}

func TestResolvedGraph_DuplicateName(t *testing.T) {
	g := domain.NewResolvedGraph(nil)
	require.NoError(t, g.AddNode(node(t, "lib", "1.0-1", nil)))
	err := g.AddNode(node(t, "lib", "2.0-1", nil))
	assert.ErrorIs(t, err, domain.ErrDuplicateNode)
}

func TestResolvedGraph_CycleDetected(t *testing.T) {
	g := domain.NewResolvedGraph(nil)
	require.NoError(t, g.AddNode(node(t, "a", "1.0-1", map[string]string{"b": ""})))
	require.NoError(t, g.AddNode(node(t, "b", "1.0-1", map[string]string{"a": ""})))

	err := g.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
}

func TestResolvedGraph_MissingEdgeTarget(t *testing.T) {
	g := domain.NewResolvedGraph(nil)
	require.NoError(t, g.AddNode(node(t, "a", "1.0-1", map[string]string{"ghost": ""})))

	err := g.Validate()
	assert.ErrorIs(t, err, domain.ErrMissingNode)
}

func TestResolvedGraph_EdgeConstraintViolated(t *testing.T) {
	g := domain.NewResolvedGraph(nil)
	require.NoError(t, g.AddNode(node(t, "a", "1.0-1", map[string]string{"b": ">= 2.0"})))
	require.NoError(t, g.AddNode(node(t, "b", "1.0-1", nil)))

	err := g.Validate()
	assert.ErrorIs(t, err, domain.ErrConstraintConflict)
}

func TestResolvedGraph_Dependents(t *testing.T) {
	g := domain.NewResolvedGraph(nil)
	require.NoError(t, g.AddNode(node(t, "app", "1.0-1", map[string]string{"lib": ""})))
	require.NoError(t, g.AddNode(node(t, "cli", "1.0-1", map[string]string{"lib": ""})))
	require.NoError(t, g.AddNode(node(t, "lib", "1.0-1", nil)))

	deps := g.Dependents(domain.MustParsePackageName("lib"))
	assert.Equal(t, []domain.PackageName{"app", "cli"}, deps)
}

func TestParsePackageName(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "LPeg", want: "lpeg", ok: true},
		{input: "  luasocket ", want: "luasocket", ok: true},
		{input: "leafo/lapis", want: "leafo/lapis", ok: true},
		{input: "a/b/c", ok: false},
		{input: "", ok: false},
		{input: "bad name", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := domain.ParsePackageName(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, domain.ErrNameParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
			if tt.want == "leafo/lapis" {
				assert.Equal(t, "leafo", n.Namespace())
				assert.Equal(t, "lapis", n.Short())
			}
		})
	}
}

func TestParseDependency(t *testing.T) {
	d, err := domain.ParseDependency("lpeg >= 1.0, < 2.0")
	require.NoError(t, err)
	assert.Equal(t, domain.PackageName("lpeg"), d.Name)
	assert.True(t, d.Constraint.Satisfies(domain.MustParseVersion("1.5-1")))
	assert.False(t, d.Constraint.Satisfies(domain.MustParseVersion("2.0-1")))

	bare, err := domain.ParseDependency("luafilesystem")
	require.NoError(t, err)
	assert.True(t, bare.Constraint.IsAny())

	_, err = domain.ParseDependency("   ")
	assert.ErrorIs(t, err, domain.ErrDependencyParse)
}
