package nvd

import (
	"encoding/json"
	"io"
	"log"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goark/go-cvss/v3/metric"
	"github.com/spf13/afero"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/cpe"
	"github.com/aquasecurity/dep-risk-analyzer/types"
	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

// feed holds either layout; only one of the slices is filled.
type feed struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	CVEItems        []LegacyItem    `json:"CVE_Items"`
}

// ReadFeed decodes an API 2.0 page / 2.0 feed file or a legacy 1.1 feed
// and flattens every CVE in it.
func ReadFeed(r io.Reader) ([]types.VulnerabilityRecord, error) {
	var f feed
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, xerrors.Errorf("json decode error: %w", err)
	}

	var records []types.VulnerabilityRecord
	for _, v := range f.Vulnerabilities {
		records = append(records, Flatten(v.Cve)...)
	}
	for _, item := range f.CVEItems {
		records = append(records, FlattenLegacy(item)...)
	}
	return records, nil
}

// ReadFile reads a feed file, .json optionally compressed as .gz or .zst.
func ReadFile(fs afero.Fs, path string) ([]types.VulnerabilityRecord, error) {
	r, err := utils.Open(fs, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	records, err := ReadFeed(r)
	if err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", path, err)
	}
	return records, nil
}

// Flatten returns one record per distinct vulnerable CPE of the CVE, sorted
// by CPE. A CVE without CPEs yields a single record with empty CPE fields.
func Flatten(c CVE) []types.VulnerabilityRecord {
	base := types.VulnerabilityRecord{
		CVEID:        c.ID,
		Description:  englishDescription(c.Descriptions),
		Published:    parseDate(c.ID, c.Published),
		LastModified: parseDate(c.ID, c.LastModified),
	}
	base.Score, base.Vector, base.Severity = preferredMetric(c.Metrics)

	var uris []string
	for _, conf := range c.Configurations {
		for _, node := range conf.Nodes {
			for _, m := range node.CpeMatch {
				if m.Vulnerable {
					uris = append(uris, m.Criteria)
				}
			}
		}
	}
	return expand(base, uris)
}

// FlattenLegacy is Flatten for a 1.1 feed item. Only v3 and v2 metrics
// exist in that format.
func FlattenLegacy(item LegacyItem) []types.VulnerabilityRecord {
	base := types.VulnerabilityRecord{
		CVEID:        item.Cve.Meta.ID,
		Description:  englishDescription(item.Cve.Description.Data),
		Published:    parseDate(item.Cve.Meta.ID, item.PublishedDate),
		LastModified: parseDate(item.Cve.Meta.ID, item.LastModifiedDate),
	}

	var m Metrics
	if v3 := item.Impact.BaseMetricV3; v3 != nil {
		if strings.HasPrefix(v3.CvssV3.Version, "3.0") {
			m.CvssMetricV30 = []CvssMetric{{CvssData: v3.CvssV3}}
		} else {
			m.CvssMetricV31 = []CvssMetric{{CvssData: v3.CvssV3}}
		}
	}
	if v2 := item.Impact.BaseMetricV2; v2 != nil {
		m.CvssMetricV2 = []CvssMetric{{CvssData: v2.CvssV2, BaseSeverity: v2.Severity}}
	}
	base.Score, base.Vector, base.Severity = preferredMetric(m)

	var uris []string
	var walk func(nodes []LegacyNode)
	walk = func(nodes []LegacyNode) {
		for _, n := range nodes {
			for _, m := range n.CpeMatch {
				if m.Vulnerable {
					uris = append(uris, m.Cpe23URI)
				}
			}
			walk(n.Children)
		}
	}
	walk(item.Configurations.Nodes)
	return expand(base, uris)
}

func expand(base types.VulnerabilityRecord, uris []string) []types.VulnerabilityRecord {
	uris = slices.DeleteFunc(uris, func(s string) bool { return s == "" })
	slices.Sort(uris)
	uris = slices.Compact(uris)
	if len(uris) == 0 {
		return []types.VulnerabilityRecord{base}
	}

	records := make([]types.VulnerabilityRecord, 0, len(uris))
	for _, uri := range uris {
		r := base
		r.CPEURI = uri
		vendor, product, version := cpe.Parse(uri)
		r.Vendor = strings.ToLower(vendor)
		r.Product = strings.ToLower(product)
		r.Version = version
		records = append(records, r)
	}
	return records
}

func englishDescription(descriptions []LangString) string {
	for _, d := range descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(descriptions) > 0 {
		return descriptions[0].Value
	}
	return ""
}

// preferredMetric picks the first usable metric in v3.1, v3.0, v4.0, v2
// order, the NVD primary one within a version.
func preferredMetric(m Metrics) (*float64, string, types.Severity) {
	for _, list := range [][]CvssMetric{m.CvssMetricV31, m.CvssMetricV30, m.CvssMetricV40, m.CvssMetricV2} {
		if len(list) == 0 {
			continue
		}
		list = slices.Clone(list)
		slices.SortStableFunc(list, func(a, b CvssMetric) int {
			return primaryRank(a) - primaryRank(b)
		})
		for _, cm := range list {
			score := cm.CvssData.BaseScore
			if score == nil {
				score = vectorScore(cm.CvssData.VectorString)
			}
			if score == nil || !types.ValidScore(*score) {
				continue
			}

			severity := types.SeverityFromScore(score)
			for _, raw := range []string{cm.CvssData.BaseSeverity, cm.BaseSeverity} {
				if s, err := types.ParseSeverity(raw); err == nil && s != types.SeverityUnknown {
					severity = s
					break
				}
			}
			return score, cm.CvssData.VectorString, severity
		}
	}
	return nil, "", types.SeverityUnknown
}

func primaryRank(m CvssMetric) int {
	if m.Type == "Primary" {
		return 0
	}
	return 1
}

// vectorScore computes the base score of a CVSS v3 vector.
func vectorScore(vector string) *float64 {
	if !strings.HasPrefix(vector, "CVSS:3") {
		return nil
	}
	bm, err := metric.NewBase().Decode(vector)
	if err != nil {
		return nil
	}
	return types.Float(bm.Score())
}

func parseDate(id, raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		log.Printf("%s: unparsable date %q: %s", id, raw, err)
		return time.Time{}
	}
	return t.UTC()
}
