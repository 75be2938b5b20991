package nvd

// Entry is one page of the NVD CVE API 2.0, also the layout of the 2.0
// JSON feed files.
type Entry struct {
	ResultsPerPage  int             `json:"resultsPerPage"`
	StartIndex      int             `json:"startIndex"`
	TotalResults    int             `json:"totalResults"`
	Format          string          `json:"format"`
	Version         string          `json:"version"`
	Timestamp       string          `json:"timestamp"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

type Vulnerability struct {
	Cve CVE `json:"cve"`
}

type CVE struct {
	ID               string          `json:"id"`
	Published        string          `json:"published"`
	LastModified     string          `json:"lastModified"`
	VulnStatus       string          `json:"vulnStatus"`
	Descriptions     []LangString    `json:"descriptions"`
	Metrics          Metrics         `json:"metrics"`
	Configurations   []Configuration `json:"configurations"`
	SourceIdentifier string          `json:"sourceIdentifier,omitempty"`
}

type LangString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type Metrics struct {
	CvssMetricV40 []CvssMetric `json:"cvssMetricV40,omitempty"`
	CvssMetricV31 []CvssMetric `json:"cvssMetricV31,omitempty"`
	CvssMetricV30 []CvssMetric `json:"cvssMetricV30,omitempty"`
	CvssMetricV2  []CvssMetric `json:"cvssMetricV2,omitempty"`
}

type CvssMetric struct {
	Source       string   `json:"source"`
	Type         string   `json:"type"`
	CvssData     CvssData `json:"cvssData"`
	BaseSeverity string   `json:"baseSeverity,omitempty"`
}

type CvssData struct {
	Version      string   `json:"version"`
	VectorString string   `json:"vectorString"`
	BaseScore    *float64 `json:"baseScore"`
	BaseSeverity string   `json:"baseSeverity,omitempty"`
}

type Configuration struct {
	Nodes []Node `json:"nodes"`
}

type Node struct {
	Operator string     `json:"operator"`
	Negate   bool       `json:"negate"`
	CpeMatch []CpeMatch `json:"cpeMatch"`
}

type CpeMatch struct {
	Vulnerable bool   `json:"vulnerable"`
	Criteria   string `json:"criteria"`
}

// LegacyFeed is a 1.1 JSON feed file (nvdcve-1.1-YYYY.json).
type LegacyFeed struct {
	CVEDataType string       `json:"CVE_data_type"`
	CVEItems    []LegacyItem `json:"CVE_Items"`
}

type LegacyItem struct {
	Cve struct {
		Meta struct {
			ID string `json:"ID"`
		} `json:"CVE_data_meta"`
		Description struct {
			Data []LangString `json:"description_data"`
		} `json:"description"`
	} `json:"cve"`
	Configurations struct {
		Nodes []LegacyNode `json:"nodes"`
	} `json:"configurations"`
	Impact struct {
		BaseMetricV3 *struct {
			CvssV3 CvssData `json:"cvssV3"`
		} `json:"baseMetricV3,omitempty"`
		BaseMetricV2 *struct {
			CvssV2   CvssData `json:"cvssV2"`
			Severity string   `json:"severity"`
		} `json:"baseMetricV2,omitempty"`
	} `json:"impact"`
	PublishedDate    string `json:"publishedDate"`
	LastModifiedDate string `json:"lastModifiedDate"`
}

type LegacyNode struct {
	Operator string `json:"operator"`
	CpeMatch []struct {
		Vulnerable bool   `json:"vulnerable"`
		Cpe23URI   string `json:"cpe23Uri"`
	} `json:"cpe_match"`
	Children []LegacyNode `json:"children"`
}
