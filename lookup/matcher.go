package lookup

import (
	"golang.org/x/exp/slices"

	"github.com/aquasecurity/dep-risk-analyzer/normalize"
	"github.com/aquasecurity/dep-risk-analyzer/similarity"
	"github.com/aquasecurity/dep-risk-analyzer/types"
)

type options struct {
	mapping normalize.Mapping
	cutoff  float64
	fuzzy   bool
	tiers   []Tier
}

type option func(*options)

func WithMapping(m normalize.Mapping) option {
	return func(opts *options) { opts.mapping = m }
}

func WithCutoff(cutoff float64) option {
	return func(opts *options) { opts.cutoff = cutoff }
}

func WithFuzzy(enabled bool) option {
	return func(opts *options) { opts.fuzzy = enabled }
}

// WithTiers replaces the default tiers entirely.
func WithTiers(tiers ...Tier) option {
	return func(opts *options) { opts.tiers = tiers }
}

// Matcher finds the reference records that plausibly affect a dependency.
type Matcher struct {
	idx     *Index
	mapping normalize.Mapping
	tiers   []Tier
}

func NewMatcher(idx *Index, opts ...option) Matcher {
	o := &options{
		mapping: normalize.DefaultMapping(),
		cutoff:  similarity.DefaultCutoff,
		fuzzy:   true,
	}
	for _, opt := range opts {
		opt(o)
	}

	tiers := o.tiers
	if tiers == nil {
		tiers = []Tier{{Substring(), CPE()}}
		if o.fuzzy {
			tiers = append(tiers, Tier{Fuzzy(o.cutoff)})
		}
	}

	return Matcher{
		idx:     idx,
		mapping: o.mapping,
		tiers:   tiers,
	}
}

// Identity resolves the CPE vendor/product of a dependency.
func (m Matcher) Identity(dep types.Dependency) normalize.Identity {
	return m.mapping.Resolve(dep.Package)
}

// Lookup returns every qualifying record as a MatchResult, in table order.
// When nothing qualifies, it returns exactly one sentinel result.
func (m Matcher) Lookup(dep types.Dependency) []types.MatchResult {
	q := Query{Dependency: dep, Identity: m.Identity(dep)}
	for _, tier := range m.tiers {
		hits := m.evalTier(tier, q)
		if len(hits) == 0 {
			continue
		}
		results := make([]types.MatchResult, 0, len(hits))
		for _, h := range hits {
			r := m.idx.records[h.Record]
			results = append(results, types.MatchResult{
				Dependency:     dep,
				CVEID:          r.CVEID,
				MatchedVendor:  r.Vendor,
				MatchedProduct: r.Product,
				Score:          r.Score,
				Description:    r.Description,
				Severity:       types.SeverityUnknown,
				MatchType:      h.MatchType,
			})
		}
		return results
	}
	return []types.MatchResult{Sentinel(dep)}
}

// evalTier unions the strategies of a tier. A record found by several
// strategies is reported once, tagged with the first strategy that found it.
func (m Matcher) evalTier(tier Tier, q Query) []Hit {
	seen := make(map[int]string)
	for _, s := range tier {
		for _, i := range s.Find(m.idx, q) {
			if _, ok := seen[i]; !ok {
				seen[i] = s.Name()
			}
		}
	}

	hits := make([]Hit, 0, len(seen))
	for i, name := range seen {
		hits = append(hits, Hit{Record: i, MatchType: name})
	}
	slices.SortFunc(hits, func(a, b Hit) int {
		return a.Record - b.Record
	})
	return hits
}

// Sentinel is the single result reported for a dependency without matches.
func Sentinel(dep types.Dependency) types.MatchResult {
	return types.MatchResult{
		Dependency:  dep,
		Description: types.NoKnownCVEDescription,
		Severity:    types.SeverityUnknown,
		MatchType:   MatchNone,
	}
}
