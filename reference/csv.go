package reference

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/types"
)

const (
	colCVEID        = "cve_id"
	colDescription  = "description"
	colURI          = "cpe_uri"
	colVendor       = "cpe_vendor"
	colProduct      = "cpe_product"
	colVersion      = "cpe_version"
	colScore        = "cvss_base_score"
	colVector       = "cvss_vector"
	colSeverity     = "severity"
	colPublished    = "published"
	colLastModified = "last_modified"
)

// Columns is the column order written by WriteCSV.
var Columns = []string{
	colCVEID,
	colDescription,
	colVendor,
	colProduct,
	colVersion,
	colURI,
	colScore,
	colVector,
	colSeverity,
	colPublished,
	colLastModified,
}

var requiredColumns = []string{colCVEID, colProduct}

// Table is a loaded reference table. Warnings lists the malformed cells
// that were dropped while loading it.
type Table struct {
	Records  []types.VulnerabilityRecord
	Warnings *multierror.Error
}

// ReadCSV parses a reference table. Columns are located by header name and
// only cve_id and cpe_product are required. Malformed cells never abort
// the read: the cell is dropped and a warning is recorded.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return Table{}, xerrors.New("empty reference table")
	} else if err != nil {
		return Table{}, xerrors.Errorf("unable to read the header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			return Table{}, xerrors.Errorf("missing column: %s", c)
		}
	}

	var table Table
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return Table{}, xerrors.Errorf("line %d: %w", line, err)
		}
		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec, errs := parseRecord(cell)
		if errs != nil {
			table.Warnings = multierror.Append(table.Warnings, xerrors.Errorf("line %d (%s): %w", line, rec.CVEID, errs))
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func parseRecord(cell func(string) string) (types.VulnerabilityRecord, error) {
	rec := types.VulnerabilityRecord{
		CVEID:       cell(colCVEID),
		Description: cell(colDescription),
		Vendor:      strings.ToLower(cell(colVendor)),
		Product:     strings.ToLower(cell(colProduct)),
		Version:     cell(colVersion),
		CPEURI:      cell(colURI),
		Vector:      cell(colVector),
	}

	var errs error
	if raw := cell(colScore); raw != "" {
		score := types.ParseScore(raw)
		switch {
		case score == nil:
			errs = multierror.Append(errs, xerrors.Errorf("unparsable score %q", raw))
		case !types.ValidScore(*score):
			errs = multierror.Append(errs, xerrors.Errorf("score %s out of range", raw))
		default:
			rec.Score = score
		}
	}

	rec.Severity = types.SeverityFromScore(rec.Score)
	if raw := cell(colSeverity); raw != "" {
		s, err := types.ParseSeverity(raw)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			rec.Severity = s
		}
	}

	var err error
	if rec.Published, err = parseDate(cell(colPublished)); err != nil {
		errs = multierror.Append(errs, err)
	}
	if rec.LastModified, err = parseDate(cell(colLastModified)); err != nil {
		errs = multierror.Append(errs, err)
	}
	return rec, errs
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, xerrors.Errorf("unparsable date %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// WriteCSV writes records with the Columns header.
func WriteCSV(w io.Writer, records []types.VulnerabilityRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return xerrors.Errorf("csv write error: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(recordCells(r)); err != nil {
			return xerrors.Errorf("csv write error: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return xerrors.Errorf("csv flush error: %w", err)
	}
	return nil
}

func recordCells(r types.VulnerabilityRecord) []string {
	score := ""
	if r.Score != nil {
		score = formatScore(*r.Score)
	}
	return []string{
		r.CVEID,
		r.Description,
		r.Vendor,
		r.Product,
		r.Version,
		r.CPEURI,
		score,
		r.Vector,
		string(r.Severity),
		formatDate(r.Published),
		formatDate(r.LastModified),
	}
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
