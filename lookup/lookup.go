package lookup

import (
	"strings"

	"github.com/samber/lo"

	"github.com/aquasecurity/dep-risk-analyzer/cpe"
	"github.com/aquasecurity/dep-risk-analyzer/normalize"
	"github.com/aquasecurity/dep-risk-analyzer/similarity"
	"github.com/aquasecurity/dep-risk-analyzer/types"
)

const (
	MatchSubstring = "substring"
	MatchCPE       = "cpe"
	MatchFuzzy     = "fuzzy"
	MatchNone      = "none"
)

// Index is a read-only view of the reference table. It is safe for
// concurrent use.
type Index struct {
	records   []types.VulnerabilityRecord
	cpeTexts  []string
	products  []string
	byProduct map[string][]int
}

// NewIndex indexes records in table order.
func NewIndex(records []types.VulnerabilityRecord) *Index {
	idx := &Index{
		records:   records,
		cpeTexts:  make([]string, len(records)),
		byProduct: make(map[string][]int),
	}
	for i, r := range records {
		idx.cpeTexts[i] = cpeText(r)
		product := strings.ToLower(r.Product)
		if product == "" {
			continue
		}
		idx.byProduct[product] = append(idx.byProduct[product], i)
	}
	idx.products = lo.Uniq(lo.FilterMap(records, func(r types.VulnerabilityRecord, _ int) (string, bool) {
		p := strings.ToLower(r.Product)
		return p, p != ""
	}))
	return idx
}

// cpeText is the text CPE-based strategies search in: the raw URI the
// record was flattened from when known, the rendered CPE otherwise.
func cpeText(r types.VulnerabilityRecord) string {
	if r.CPEURI != "" {
		return strings.ToLower(r.CPEURI)
	}
	return strings.ToLower(cpe.Format(r.Vendor, r.Product, r.Version))
}

func (idx *Index) Len() int {
	return len(idx.records)
}

// Products returns the distinct products in first-seen order.
func (idx *Index) Products() []string {
	return idx.products
}

func (idx *Index) Records() []types.VulnerabilityRecord {
	return idx.records
}

// Hit is a record selected by a strategy.
type Hit struct {
	Record    int
	MatchType string
}

// Query is what strategies look at for one dependency.
type Query struct {
	Dependency types.Dependency
	Identity   normalize.Identity
}

// Strategy selects records for a query.
type Strategy interface {
	Name() string
	Find(idx *Index, q Query) []int
}

// Tier is a group of strategies whose results are merged. Tiers are
// evaluated in order and the first tier with any hit wins.
type Tier []Strategy

type substring struct{}

func (substring) Name() string { return MatchSubstring }

func (substring) Find(idx *Index, q Query) []int {
	pkg := strings.ToLower(q.Dependency.Package)
	if pkg == "" {
		return nil
	}
	version := q.Dependency.Version
	var hits []int
	for i, r := range idx.records {
		if !strings.Contains(strings.ToLower(r.Product), pkg) {
			continue
		}
		if version != "" && !strings.Contains(r.Version, version) && !strings.Contains(idx.cpeTexts[i], strings.ToLower(version)) {
			continue
		}
		hits = append(hits, i)
	}
	return hits
}

type cpeString struct{}

func (cpeString) Name() string { return MatchCPE }

func (cpeString) Find(idx *Index, q Query) []int {
	key := strings.ToLower(cpe.Format(q.Identity.Vendor, q.Identity.Product, q.Dependency.Version))
	var hits []int
	for i, text := range idx.cpeTexts {
		if strings.Contains(text, key) {
			hits = append(hits, i)
		}
	}
	return hits
}

type fuzzy struct {
	cutoff float64
}

func (fuzzy) Name() string { return MatchFuzzy }

func (f fuzzy) Find(idx *Index, q Query) []int {
	product, _, ok := similarity.BestMatch(strings.ToLower(q.Dependency.Package), idx.products, f.cutoff)
	if !ok {
		return nil
	}
	return idx.byProduct[product]
}

// Substring matches records whose product contains the package name and
// whose version or CPE contains the declared version.
func Substring() Strategy { return substring{} }

// CPE matches records whose CPE text contains the dependency's rendered CPE.
func CPE() Strategy { return cpeString{} }

// Fuzzy selects every record of the closest product name.
func Fuzzy(cutoff float64) Strategy { return fuzzy{cutoff: cutoff} }
