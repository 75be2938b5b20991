package types

import (
	"time"
)

const (
	UnknownVendor  = "unknown_vendor"
	UnknownProduct = "unknown_product"

	NoKnownCVEDescription = "No known CVEs found for this dependency"
)

// Dependency is one declared requirement, e.g. "flask==2.0.1".
type Dependency struct {
	Package   string `json:"package"`
	Version   string `json:"version,omitempty"`
	Specifier string `json:"specifier,omitempty"`
	Raw       string `json:"-"`
}

func (d Dependency) HasVersion() bool {
	return d.Version != ""
}

// String renders the dependency the way it is reported, package plus the
// original specifier and version when one was declared.
func (d Dependency) String() string {
	if !d.HasVersion() {
		return d.Package
	}
	spec := d.Specifier
	if spec == "" {
		spec = "=="
	}
	return d.Package + spec + d.Version
}

// VulnerabilityRecord is one row of the flattened reference table: a CVE
// paired with one affected CPE.
type VulnerabilityRecord struct {
	CVEID        string    `json:"cve_id"`
	Description  string    `json:"description"`
	Vendor       string    `json:"cpe_vendor,omitempty"`
	Product      string    `json:"cpe_product,omitempty"`
	Version      string    `json:"cpe_version,omitempty"`
	CPEURI       string    `json:"cpe_uri,omitempty"`
	Score        *float64  `json:"cvss_base_score,omitempty"`
	Vector       string    `json:"cvss_vector,omitempty"`
	Severity     Severity  `json:"severity,omitempty"`
	Published    time.Time `json:"published,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// MatchResult pairs a dependency with one qualifying record. A result with
// an empty CVEID is the "no known CVE" sentinel.
type MatchResult struct {
	Dependency     Dependency `json:"dependency"`
	CVEID          string     `json:"cve_id,omitempty"`
	MatchedVendor  string     `json:"matched_vendor,omitempty"`
	MatchedProduct string     `json:"matched_product,omitempty"`
	Score          *float64   `json:"cvss_base_score,omitempty"`
	Description    string     `json:"description"`
	Severity       Severity   `json:"severity"`
	MatchType      string     `json:"match_type,omitempty"`
}

func (m MatchResult) IsSentinel() bool {
	return m.CVEID == ""
}

// FeatureVector is the numeric input of a classifier.
type FeatureVector struct {
	VendorCode  int       `json:"vendor_code"`
	ProductCode int       `json:"product_code"`
	Score       float64   `json:"cvss_base_score"`
	HasScore    bool      `json:"-"`
	Text        []float64 `json:"text_features,omitempty"`
}

// Values flattens the vector in training column order:
// vendor_code, product_code, cvss_base_score, text features...
func (f FeatureVector) Values() []float64 {
	values := make([]float64, 0, 3+len(f.Text))
	values = append(values, float64(f.VendorCode), float64(f.ProductCode), f.Score)
	return append(values, f.Text...)
}

func Float(f float64) *float64 {
	return &f
}
