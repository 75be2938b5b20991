package normalize

import (
	"bufio"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/types"
)

const commentPrefix = "#"

// Specifiers are tried in order; the first one found in a line splits it.
var Specifiers = []string{"==", ">=", ">"}

// ErrRequirementsNotFound is returned when the dependency file is missing.
var ErrRequirementsNotFound = xerrors.New("dependency file not found")

// ParseLine turns one requirement line into a Dependency. Blank lines and
// comments return false. Malformed lines never fail: anything that cannot
// be split into a name and a version is kept whole, lowercased like every
// other package name, with no version. Raw keeps the original text.
func ParseLine(line string) (types.Dependency, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, commentPrefix) {
		return types.Dependency{}, false
	}

	for _, spec := range Specifiers {
		name, version, ok := strings.Cut(line, spec)
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			break
		}
		return types.Dependency{
			Package:   name,
			Version:   strings.TrimSpace(version),
			Specifier: spec,
			Raw:       line,
		}, true
	}

	return types.Dependency{
		Package: strings.ToLower(line),
		Raw:     line,
	}, true
}

// ParseLines parses every line and drops blanks and comments.
func ParseLines(lines []string) []types.Dependency {
	var deps []types.Dependency
	for _, line := range lines {
		if dep, ok := ParseLine(line); ok {
			deps = append(deps, dep)
		}
	}
	return deps
}

// Load reads a requirements file.
func Load(fs afero.Fs, path string) ([]types.Dependency, error) {
	f, err := fs.Open(path)
	if err != nil {
		if xerrors.Is(err, afero.ErrFileNotFound) {
			return nil, xerrors.Errorf("%s: %w", path, ErrRequirementsNotFound)
		}
		return nil, xerrors.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err = scanner.Err(); err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", path, err)
	}
	return ParseLines(lines), nil
}
