package lookup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/dep-risk-analyzer/lookup"
	"github.com/aquasecurity/dep-risk-analyzer/normalize"
	"github.com/aquasecurity/dep-risk-analyzer/types"
)

var records = []types.VulnerabilityRecord{
	{CVEID: "CVE-2023-30861", Vendor: "palletsprojects", Product: "flask", Version: "2.0.1", Score: types.Float(7.5), Description: "session cookie disclosure"},
	{CVEID: "CVE-2018-1000656", Vendor: "palletsprojects", Product: "flask", Version: "0.12.2", Score: types.Float(7.5), Description: "denial of service via crafted JSON"},
	{CVEID: "CVE-2024-0001", Vendor: "maxcountryman", Product: "flask-login", Version: "0.6.0", Score: types.Float(5.3)},
	{CVEID: "CVE-2022-2000", Vendor: "code-projects", Product: "point_of_sales_and_inventory_management_system", Score: types.Float(9.8)},
	{CVEID: "CVE-2023-36053", Vendor: "djangoproject", Product: "django", Version: "4.2", Score: types.Float(7.5)},
}

func dep(pkg, version string) types.Dependency {
	d := types.Dependency{Package: pkg, Version: version}
	if version != "" {
		d.Specifier = "=="
	}
	return d
}

func TestNewIndex(t *testing.T) {
	idx := lookup.NewIndex(records)
	assert.Equal(t, 5, idx.Len())
	assert.Equal(t, []string{
		"flask",
		"flask-login",
		"point_of_sales_and_inventory_management_system",
		"django",
	}, idx.Products())
}

func TestMatcher_Lookup(t *testing.T) {
	type match struct {
		CVEID     string
		MatchType string
	}
	tests := []struct {
		name string
		dep  types.Dependency
		want []match
	}{
		{
			name: "substring with version",
			dep:  dep("flask", "2.0.1"),
			want: []match{{"CVE-2023-30861", lookup.MatchSubstring}},
		},
		{
			name: "substring without version takes every product containing the name",
			dep:  dep("flask", ""),
			want: []match{
				{"CVE-2023-30861", lookup.MatchSubstring},
				{"CVE-2018-1000656", lookup.MatchSubstring},
				{"CVE-2024-0001", lookup.MatchSubstring},
			},
		},
		{
			name: "cpe through the vendor/product table",
			dep:  dep("pos-inventory-system", ""),
			want: []match{{"CVE-2022-2000", lookup.MatchCPE}},
		},
		{
			name: "fuzzy takes every record of the closest product",
			dep:  dep("flsk", "1.0"),
			want: []match{
				{"CVE-2023-30861", lookup.MatchFuzzy},
				{"CVE-2018-1000656", lookup.MatchFuzzy},
			},
		},
		{
			name: "no match yields the sentinel",
			dep:  dep("totally-unknown-pkg", "9.9"),
			want: []match{{"", lookup.MatchNone}},
		},
	}

	m := lookup.NewMatcher(lookup.NewIndex(records))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := m.Lookup(tt.dep)
			var got []match
			for _, r := range results {
				assert.Equal(t, tt.dep, r.Dependency)
				got = append(got, match{CVEID: r.CVEID, MatchType: r.MatchType})
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_LookupResultFields(t *testing.T) {
	m := lookup.NewMatcher(lookup.NewIndex(records))

	got := m.Lookup(dep("flask", "2.0.1"))
	require.Len(t, got, 1)
	assert.Equal(t, "palletsprojects", got[0].MatchedVendor)
	assert.Equal(t, "flask", got[0].MatchedProduct)
	require.NotNil(t, got[0].Score)
	assert.Equal(t, 7.5, *got[0].Score)
	assert.Equal(t, "session cookie disclosure", got[0].Description)

	got = m.Lookup(dep("totally-unknown-pkg", "9.9"))
	require.Len(t, got, 1)
	assert.True(t, got[0].IsSentinel())
	assert.Nil(t, got[0].Score)
	assert.Equal(t, types.NoKnownCVEDescription, got[0].Description)
	assert.Equal(t, types.SeverityUnknown, got[0].Severity)
}

func TestMatcher_Options(t *testing.T) {
	idx := lookup.NewIndex(records)

	t.Run("fuzzy disabled", func(t *testing.T) {
		m := lookup.NewMatcher(idx, lookup.WithFuzzy(false))
		got := m.Lookup(dep("flsk", "1.0"))
		require.Len(t, got, 1)
		assert.True(t, got[0].IsSentinel())
	})

	t.Run("strict cutoff", func(t *testing.T) {
		m := lookup.NewMatcher(idx, lookup.WithCutoff(0.95))
		got := m.Lookup(dep("flsk", "1.0"))
		require.Len(t, got, 1)
		assert.True(t, got[0].IsSentinel())
	})

	t.Run("custom mapping", func(t *testing.T) {
		mapping := normalize.DefaultMapping()
		mapping["pos"] = normalize.Identity{Vendor: "code-projects", Product: "point_of_sales_and_inventory_management_system"}
		m := lookup.NewMatcher(idx, lookup.WithMapping(mapping))
		got := m.Lookup(dep("pos", ""))
		require.Len(t, got, 1)
		assert.Equal(t, "CVE-2022-2000", got[0].CVEID)
		assert.Equal(t, lookup.MatchCPE, got[0].MatchType)
	})

	t.Run("custom tiers", func(t *testing.T) {
		m := lookup.NewMatcher(idx, lookup.WithTiers(lookup.Tier{lookup.Fuzzy(0.6)}))
		got := m.Lookup(dep("flask", "2.0.1"))
		require.Len(t, got, 2)
		assert.Equal(t, lookup.MatchFuzzy, got[0].MatchType)
	})
}

func TestMatcher_LookupIsDeterministic(t *testing.T) {
	m := lookup.NewMatcher(lookup.NewIndex(records))
	first := m.Lookup(dep("flask", ""))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, m.Lookup(dep("flask", "")))
	}
}
