package normalize

import (
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Identity is the CPE vendor/product pair a package is published under.
type Identity struct {
	Vendor  string `yaml:"vendor"`
	Product string `yaml:"product"`
}

// Mapping resolves package names to CPE identities.
type Mapping map[string]Identity

var defaultMapping = Mapping{
	"django":   {Vendor: "django", Product: "django"},
	"flask":    {Vendor: "palletsprojects", Product: "flask"},
	"jinja2":   {Vendor: "palletsprojects", Product: "jinja2"},
	"requests": {Vendor: "python-requests", Product: "requests"},
	"numpy":    {Vendor: "numpy", Product: "numpy"},
	"pandas":   {Vendor: "pandas", Product: "pandas"},
	"urllib3":  {Vendor: "urllib3", Product: "urllib3"},

	"job-recruitment":      {Vendor: "anisha", Product: "job_recruitment"},
	"chat-system":          {Vendor: "code-projects", Product: "chat_system"},
	"online-eyewear-shop":  {Vendor: "oretnom23", Product: "online_eyewear_shop"},
	"pos-inventory-system": {Vendor: "code-projects", Product: "point_of_sales_and_inventory_management_system"},
	"online-shop":          {Vendor: "anisha", Product: "online_shop"},
	"iterm2":               {Vendor: "iterm2", Product: "iterm2"},
}

// DefaultMapping returns a copy of the built-in table.
func DefaultMapping() Mapping {
	m := make(Mapping, len(defaultMapping))
	for k, v := range defaultMapping {
		m[k] = v
	}
	return m
}

// Resolve returns the identity of pkg, falling back to the lowercased
// (pkg, pkg) when the package is not in the table.
func (m Mapping) Resolve(pkg string) Identity {
	pkg = strings.ToLower(pkg)
	if id, ok := m[pkg]; ok {
		return id
	}
	return Identity{Vendor: pkg, Product: pkg}
}

// LoadMapping reads YAML overrides of the form
//
//	flask:
//	  vendor: palletsprojects
//	  product: flask
//
// and merges them over the built-in table.
func LoadMapping(fs afero.Fs, path string) (Mapping, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerrors.Errorf("unable to read mapping file %s: %w", path, err)
	}

	var overrides Mapping
	if err = yaml.Unmarshal(b, &overrides); err != nil {
		return nil, xerrors.Errorf("unable to decode YAML (%s): %w", path, err)
	}

	m := DefaultMapping()
	for name, id := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		if id.Vendor == "" {
			id.Vendor = name
		}
		if id.Product == "" {
			id.Product = name
		}
		m[name] = id
	}
	return m, nil
}
