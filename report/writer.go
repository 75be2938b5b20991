package report

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/types"
	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var Formats = []string{FormatCSV, FormatJSON}

// Summary counts rows per severity and says how many dependencies had no
// known CVE.
type Summary struct {
	Dependencies int                    `json:"dependencies"`
	Rows         int                    `json:"rows"`
	Unmatched    int                    `json:"unmatched"`
	Severities   map[types.Severity]int `json:"severities"`
}

func Summarize(groups []Group) Summary {
	rows := Rows(groups)
	return Summary{
		Dependencies: len(groups),
		Rows:         len(rows),
		Unmatched: lo.CountBy(groups, func(g Group) bool {
			return len(g.Results) == 1 && g.Results[0].IsSentinel()
		}),
		Severities: lo.CountValuesBy(rows, func(r Row) types.Severity {
			return r.Severity
		}),
	}
}

type jsonReport struct {
	Summary Summary `json:"summary"`
	Rows    []Row   `json:"rows"`
}

// WriteCSV writes the header and one record per row.
func WriteCSV(w io.Writer, groups []Group) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return xerrors.Errorf("csv write error: %w", err)
	}
	for _, row := range Rows(groups) {
		if err := cw.Write(row.Record()); err != nil {
			return xerrors.Errorf("csv write error: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return xerrors.Errorf("csv flush error: %w", err)
	}
	return nil
}

// WriteJSON writes the summary and the rows as one indented document.
func WriteJSON(w io.Writer, groups []Group) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(jsonReport{Summary: Summarize(groups), Rows: Rows(groups)}); err != nil {
		return xerrors.Errorf("json encode error: %w", err)
	}
	return nil
}

// Write renders groups in format. The output is byte-identical for
// identical groups.
func Write(w io.Writer, format string, groups []Group) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, groups)
	case FormatJSON:
		return WriteJSON(w, groups)
	}
	return xerrors.Errorf("unknown report format: %s", format)
}

// WriteFile writes the report to path, compressing it for .gz/.zst names.
func WriteFile(fs afero.Fs, path, format string, groups []Group) error {
	f, err := utils.Create(fs, path)
	if err != nil {
		return xerrors.Errorf("unable to create the report: %w", err)
	}
	if err = Write(f, format, groups); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return xerrors.Errorf("unable to close %s: %w", path, err)
	}
	return nil
}
