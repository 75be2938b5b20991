package report

import (
	"strconv"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"

	"github.com/aquasecurity/dep-risk-analyzer/lookup"
	"github.com/aquasecurity/dep-risk-analyzer/types"
)

// Header is the column order of the tabular outputs.
var Header = []string{
	"dependency",
	"matched_vendor",
	"matched_product",
	"cve_id",
	"cvss_score",
	"severity",
	"description",
}

// Group holds every row reported for one input dependency.
type Group struct {
	Dependency types.Dependency    `json:"dependency"`
	Results    []types.MatchResult `json:"results"`
}

// Row is one line of the report.
type Row struct {
	Dependency     string         `json:"dependency"`
	MatchedVendor  string         `json:"matched_vendor"`
	MatchedProduct string         `json:"matched_product"`
	CVEID          string         `json:"cve_id"`
	Score          *float64       `json:"cvss_score"`
	Severity       types.Severity `json:"severity"`
	Description    string         `json:"description"`
	MatchType      string         `json:"match_type,omitempty"`
}

// Assemble builds exactly one group per dependency, in input order.
// results[i] holds the classified matches of deps[i]; a missing or empty
// slot yields the "no known CVE" sentinel. Rows are sorted by descending
// score, absent scores last, keeping lookup order among equal scores.
func Assemble(deps []types.Dependency, results [][]types.MatchResult) []Group {
	groups := make([]Group, 0, len(deps))
	for i, dep := range deps {
		var rs []types.MatchResult
		if i < len(results) {
			rs = slices.Clone(results[i])
		}
		if len(rs) == 0 {
			rs = []types.MatchResult{lookup.Sentinel(dep)}
		}
		slices.SortStableFunc(rs, compareScore)
		groups = append(groups, Group{Dependency: dep, Results: rs})
	}
	return groups
}

func compareScore(a, b types.MatchResult) int {
	switch {
	case a.Score == nil && b.Score == nil:
		return 0
	case a.Score == nil:
		return 1
	case b.Score == nil:
		return -1
	case *a.Score > *b.Score:
		return -1
	case *a.Score < *b.Score:
		return 1
	}
	return 0
}

// Rows flattens groups into report rows.
func Rows(groups []Group) []Row {
	return lo.FlatMap(groups, func(g Group, _ int) []Row {
		return lo.Map(g.Results, func(r types.MatchResult, _ int) Row {
			return newRow(r)
		})
	})
}

func newRow(r types.MatchResult) Row {
	row := Row{
		Dependency:     r.Dependency.String(),
		MatchedVendor:  r.MatchedVendor,
		MatchedProduct: r.MatchedProduct,
		CVEID:          r.CVEID,
		Score:          r.Score,
		Severity:       r.Severity,
		Description:    r.Description,
		MatchType:      r.MatchType,
	}
	if r.IsSentinel() && row.MatchedVendor == "" {
		row.MatchedVendor = types.UnknownVendor
	}
	if r.IsSentinel() && row.MatchedProduct == "" {
		row.MatchedProduct = types.UnknownProduct
	}
	if row.Severity == "" {
		row.Severity = types.SeverityUnknown
	}
	return row
}

// Record renders the row as CSV cells in Header order.
func (r Row) Record() []string {
	score := ""
	if r.Score != nil {
		score = strconv.FormatFloat(*r.Score, 'f', -1, 64)
	}
	return []string{
		r.Dependency,
		r.MatchedVendor,
		r.MatchedProduct,
		r.CVEID,
		score,
		string(r.Severity),
		r.Description,
	}
}
