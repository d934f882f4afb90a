package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/loam/internal/core/domain"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		modrev  string
		specrev int
		dev     bool
	}{
		{name: "MajorOnly", input: "1-1", modrev: "1", specrev: 1},
		{name: "MajorMinor", input: "1.0-1", modrev: "1.0", specrev: 1},
		{name: "FullTriple", input: "1.0.0-1", modrev: "1.0.0", specrev: 1},
		{name: "DefaultSpecrev", input: "2.1", modrev: "2.1", specrev: 1},
		{name: "FourComponents", input: "1.0.0.2-1", modrev: "1.0.0.2", specrev: 1},
		{name: "HighSpecrev", input: "0.4-12", modrev: "0.4", specrev: 12},
		{name: "Scm", input: "scm-1", modrev: "scm", specrev: 1, dev: true},
		{name: "Dev", input: "dev-1", modrev: "dev", specrev: 1, dev: true},
		{name: "Git", input: "git-2", modrev: "git", specrev: 2, dev: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := domain.ParseVersion(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.modrev, v.Modrev())
			assert.Equal(t, tt.specrev, v.Specrev())
			assert.Equal(t, tt.dev, v.IsDev())
		})
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, input := range []string{"1.0-beta", "1.0-", "-1", "not a version-1"} {
		t.Run(input, func(t *testing.T) {
			_, err := domain.ParseVersion(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrVersionParse)
		})
	}
}

func TestVersionString_RoundTrips(t *testing.T) {
	for _, input := range []string{"1.0-1", "1.0.0-2", "2-1", "scm-1", "1.0.0.3-4"} {
		v, err := domain.ParseVersion(input)
		require.NoError(t, err)
		assert.Equal(t, input, v.String())
	}

	// A missing specrev is rendered as the implied -1.
	v, err := domain.ParseVersion("3.2")
	require.NoError(t, err)
	assert.Equal(t, "3.2-1", v.String())
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "ModrevOrders", a: "1.0-1", b: "1.5-1", want: -1},
		{name: "SpecrevBreaksTies", a: "1.0-1", b: "1.0-2", want: -1},
		{name: "EqualPadding", a: "1.0-1", b: "1.0.0-1", want: 0},
		{name: "FourthComponentOrders", a: "1.0.0-1", b: "1.0.0.1-1", want: -1},
		{name: "DevSortsLowest", a: "scm-1", b: "0.0.1-1", want: -1},
		{name: "DevSpecrevOrders", a: "scm-1", b: "scm-2", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := domain.MustParseVersion(tt.a)
			b := domain.MustParseVersion(tt.b)
			assert.Equal(t, tt.want, a.Compare(b))
			assert.Equal(t, -tt.want, b.Compare(a))
		})
	}
}

func TestSortVersions(t *testing.T) {
	versions := []domain.Version{
		domain.MustParseVersion("2.0-1"),
		domain.MustParseVersion("scm-1"),
		domain.MustParseVersion("1.5-2"),
		domain.MustParseVersion("1.5-1"),
	}
	domain.SortVersions(versions)

	got := make([]string, len(versions))
	for i, v := range versions {
		got[i] = v.String()
	}
	assert.Equal(t, []string{"scm-1", "1.5-1", "1.5-2", "2.0-1"}, got)
}
