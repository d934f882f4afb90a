package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/loam/internal/core/ports/mocks"
	"go.trai.ch/loam/internal/engine/resolver"
	"go.uber.org/mock/gomock"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(error)          {}

func testConfig() domain.Config {
	return domain.Config{LuaVersion: "5.1"}
}

func vers(ss ...string) []domain.Version {
	out := make([]domain.Version, len(ss))
	for i, s := range ss {
		out[i] = domain.MustParseVersion(s)
	}
	return out
}

func deps(t *testing.T, declarations ...string) []domain.Dependency {
	t.Helper()
	out := make([]domain.Dependency, len(declarations))
	for i, raw := range declarations {
		d, err := domain.ParseDependency(raw)
		require.NoError(t, err)
		out[i] = d
	}
	return out
}

func descFor(t *testing.T, name, version string, dependencies ...string) *domain.PackageDescriptor {
	t.Helper()
	return &domain.PackageDescriptor{
		Name:         domain.MustParsePackageName(name),
		Version:      domain.MustParseVersion(version),
		Lua:          domain.MustParseConstraint(">= 5.1"),
		Dependencies: deps(t, dependencies...),
		Build:        domain.BuildSpec{Type: domain.BuildBuiltin},
	}
}

func newResolver(t *testing.T, manifest *mocks.MockManifestClient) *resolver.Resolver {
	t.Helper()
	return resolver.New(manifest, nopLogger{}, testConfig())
}

func TestResolve_PicksHighestSatisfyingVersion(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	manifest.EXPECT().ListVersions(gomock.Any(), foo).
		Return(vers("1.0.0-1", "1.5.0-1", "2.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.5.0-1")).
		Return(descFor(t, "foo", "1.5.0-1"), nil)

	graph, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "foo >= 1.0, < 2.0"))
	require.NoError(t, err)

	node, ok := graph.Node(foo)
	require.True(t, ok)
	assert.Equal(t, "1.5.0-1", node.Version.String())
	assert.Equal(t, 1, graph.Len())
}

func TestResolve_TransitiveDependenciesInInstallOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	bar := domain.MustParsePackageName("bar")

	manifest.EXPECT().ListVersions(gomock.Any(), foo).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "foo", "1.0.0-1", "bar >= 1.0"), nil)
	manifest.EXPECT().ListVersions(gomock.Any(), bar).Return(vers("1.2.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), bar, domain.MustParseVersion("1.2.0-1")).
		Return(descFor(t, "bar", "1.2.0-1"), nil)

	graph, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "foo == 1.0"))
	require.NoError(t, err)
	require.Equal(t, 2, graph.Len())

	var order []domain.PackageName
	for node := range graph.Walk() {
		order = append(order, node.Name)
	}
	assert.Equal(t, []domain.PackageName{bar, foo}, order)
}

func TestResolve_LuaPseudoPackageIsNeverResolved(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	manifest.EXPECT().ListVersions(gomock.Any(), foo).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "foo", "1.0.0-1", "lua >= 5.1"), nil)

	graph, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "foo", "lua >= 5.1"))
	require.NoError(t, err)
	assert.Equal(t, 1, graph.Len())
}

func TestResolve_ConstraintConflictNamesThePackage(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	bar := domain.MustParsePackageName("bar")

	manifest.EXPECT().ListVersions(gomock.Any(), foo).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "foo", "1.0.0-1", "bar == 1.0"), nil)
	manifest.EXPECT().ListVersions(gomock.Any(), bar).
		Return(vers("1.0.0-1", "2.0.0-1"), nil)

	_, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "foo == 1.0", "bar >= 2.0"))
	require.ErrorIs(t, err, domain.ErrConstraintConflict)
	assert.Contains(t, err.Error(), "bar")
	assert.Contains(t, err.Error(), "foo@1.0.0-1")
}

func TestResolve_CycleIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	a := domain.MustParsePackageName("a")
	b := domain.MustParsePackageName("b")

	manifest.EXPECT().ListVersions(gomock.Any(), a).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), a, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "a", "1.0.0-1", "b >= 1.0"), nil)
	manifest.EXPECT().ListVersions(gomock.Any(), b).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), b, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "b", "1.0.0-1", "a >= 1.0"), nil)

	_, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "a"))
	require.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestResolve_LaterConstraintForcesReResolution(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	a := domain.MustParsePackageName("a")
	b := domain.MustParsePackageName("b")
	c := domain.MustParsePackageName("c")

	manifest.EXPECT().ListVersions(gomock.Any(), a).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), a, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "a", "1.0.0-1", "b", "c"), nil)

	// b is first chosen at 2.0.0, then forced down to 1.5.0 once c's
	// constraint arrives.
	manifest.EXPECT().ListVersions(gomock.Any(), b).
		Return(vers("1.5.0-1", "2.0.0-1"), nil).Times(2)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), b, domain.MustParseVersion("2.0.0-1")).
		Return(descFor(t, "b", "2.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), b, domain.MustParseVersion("1.5.0-1")).
		Return(descFor(t, "b", "1.5.0-1"), nil)

	manifest.EXPECT().ListVersions(gomock.Any(), c).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), c, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "c", "1.0.0-1", "b < 2.0"), nil)

	graph, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "a"))
	require.NoError(t, err)

	node, ok := graph.Node(b)
	require.True(t, ok)
	assert.Equal(t, "1.5.0-1", node.Version.String())
}

func TestResolve_DualDeclaredDependencyYieldsOneEdge(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	bar := domain.MustParsePackageName("bar")

	// bar is declared as both a runtime and a build dependency, which real
	// rockspecs do for pure-Lua helper packages.
	desc := descFor(t, "foo", "1.0.0-1", "bar >= 1.0")
	desc.BuildDeps = deps(t, "bar >= 1.0")

	manifest.EXPECT().ListVersions(gomock.Any(), foo).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.0.0-1")).
		Return(desc, nil)
	manifest.EXPECT().ListVersions(gomock.Any(), bar).Return(vers("1.2.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), bar, domain.MustParseVersion("1.2.0-1")).
		Return(descFor(t, "bar", "1.2.0-1"), nil)

	graph, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "foo"))
	require.NoError(t, err)

	node, ok := graph.Node(foo)
	require.True(t, ok)
	require.Len(t, node.Dependencies, 1)
	assert.Equal(t, bar, node.Dependencies[0].Name)
}

func TestResolve_DropsDependenciesOfAbandonedVersions(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	bar := domain.MustParsePackageName("bar")
	extra := domain.MustParsePackageName("extra")

	// foo is first chosen at 2.0.0, pulling in extra. bar then forces foo
	// down to 1.0.0, which needs nothing; extra must not linger in the
	// final graph.
	manifest.EXPECT().ListVersions(gomock.Any(), foo).
		Return(vers("1.0.0-1", "2.0.0-1"), nil).Times(2)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("2.0.0-1")).
		Return(descFor(t, "foo", "2.0.0-1", "extra >= 1.0"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "foo", "1.0.0-1"), nil)

	manifest.EXPECT().ListVersions(gomock.Any(), bar).Return(vers("1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), bar, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "bar", "1.0.0-1", "foo < 2.0"), nil)

	manifest.EXPECT().ListVersions(gomock.Any(), extra).
		Return(vers("1.0.0-1"), nil).AnyTimes()
	manifest.EXPECT().FetchDescriptor(gomock.Any(), extra, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "extra", "1.0.0-1"), nil).AnyTimes()

	graph, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "foo", "bar"))
	require.NoError(t, err)

	assert.Equal(t, 2, graph.Len())
	_, ok := graph.Node(extra)
	assert.False(t, ok, "abandoned foo@2.0.0-1 was the only referrer of extra")

	node, ok := graph.Node(foo)
	require.True(t, ok)
	assert.Equal(t, "1.0.0-1", node.Version.String())
}

func TestResolve_OscillationHitsConvergenceCap(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	a := domain.MustParsePackageName("a")
	b := domain.MustParsePackageName("b")

	manifest.EXPECT().ListVersions(gomock.Any(), a).
		Return(vers("1.0.0-1", "2.0.0-1"), nil).AnyTimes()
	manifest.EXPECT().ListVersions(gomock.Any(), b).
		Return(vers("1.0.0-1", "2.0.0-1"), nil).AnyTimes()

	// Each version of a demands the other version of b and vice versa, so
	// greedy propagation flips forever instead of settling.
	manifest.EXPECT().FetchDescriptor(gomock.Any(), a, domain.MustParseVersion("2.0.0-1")).
		Return(descFor(t, "a", "2.0.0-1", "b == 1.0"), nil).AnyTimes()
	manifest.EXPECT().FetchDescriptor(gomock.Any(), a, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "a", "1.0.0-1", "b == 2.0"), nil).AnyTimes()
	manifest.EXPECT().FetchDescriptor(gomock.Any(), b, domain.MustParseVersion("2.0.0-1")).
		Return(descFor(t, "b", "2.0.0-1", "a == 2.0"), nil).AnyTimes()
	manifest.EXPECT().FetchDescriptor(gomock.Any(), b, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "b", "1.0.0-1", "a == 1.0"), nil).AnyTimes()

	_, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "a", "b"))
	require.ErrorIs(t, err, domain.ErrResolutionDidNotConverge)
}

func TestResolve_SkipsRuntimeIncompatibleDescriptors(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	newest := descFor(t, "foo", "2.0.0-1")
	newest.Lua = domain.MustParseConstraint(">= 5.4")

	manifest.EXPECT().ListVersions(gomock.Any(), foo).
		Return(vers("1.0.0-1", "2.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("2.0.0-1")).
		Return(newest, nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "foo", "1.0.0-1"), nil)

	graph, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "foo"))
	require.NoError(t, err)

	node, ok := graph.Node(foo)
	require.True(t, ok)
	assert.Equal(t, "1.0.0-1", node.Version.String())
}

func TestResolve_DevVersionsExcludedUnlessNamed(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	manifest.EXPECT().ListVersions(gomock.Any(), foo).
		Return(vers("scm-1", "1.0.0-1"), nil).Times(2)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "foo", "1.0.0-1"), nil)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("scm-1")).
		Return(descFor(t, "foo", "scm-1"), nil)

	r := newResolver(t, manifest)

	graph, err := r.Resolve(context.Background(), deps(t, "foo"))
	require.NoError(t, err)
	node, _ := graph.Node(foo)
	assert.Equal(t, "1.0.0-1", node.Version.String())

	graph, err = r.Resolve(context.Background(), deps(t, "foo == scm"))
	require.NoError(t, err)
	node, _ = graph.Node(foo)
	assert.Equal(t, "scm-1", node.Version.String())
}

func TestResolve_RegistryErrorCarriesPackageName(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	manifest.EXPECT().ListVersions(gomock.Any(), foo).
		Return(nil, domain.ErrNotFound)

	_, err := newResolver(t, manifest).Resolve(context.Background(), deps(t, "foo"))
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "foo")
}

func TestResolve_IsDeterministic(t *testing.T) {
	ctrl := gomock.NewController(t)
	manifest := mocks.NewMockManifestClient(ctrl)

	foo := domain.MustParsePackageName("foo")
	bar := domain.MustParsePackageName("bar")

	manifest.EXPECT().ListVersions(gomock.Any(), foo).
		Return(vers("1.0.0-1"), nil).Times(2)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), foo, domain.MustParseVersion("1.0.0-1")).
		Return(descFor(t, "foo", "1.0.0-1", "bar"), nil).Times(2)
	manifest.EXPECT().ListVersions(gomock.Any(), bar).
		Return(vers("1.0.0-1", "1.1.0-1"), nil).Times(2)
	manifest.EXPECT().FetchDescriptor(gomock.Any(), bar, domain.MustParseVersion("1.1.0-1")).
		Return(descFor(t, "bar", "1.1.0-1"), nil).Times(2)

	r := newResolver(t, manifest)
	first, err := r.Resolve(context.Background(), deps(t, "foo"))
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), deps(t, "foo"))
	require.NoError(t, err)

	require.Equal(t, first.Names(), second.Names())
	for _, name := range first.Names() {
		a, _ := first.Node(name)
		b, _ := second.Node(name)
		assert.True(t, a.Version.Equal(b.Version), "version for %s differs", name)
	}
}
