package reference

import (
	"context"
	"database/sql"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/aquasecurity/dep-risk-analyzer/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS cve_cpe (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cve_id TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	cpe_vendor TEXT NOT NULL DEFAULT '',
	cpe_product TEXT NOT NULL DEFAULT '',
	cpe_version TEXT NOT NULL DEFAULT '',
	cpe_uri TEXT NOT NULL DEFAULT '',
	cvss_base_score REAL,
	cvss_vector TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL DEFAULT '',
	published TEXT NOT NULL DEFAULT '',
	last_modified TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS cve_cpe_product ON cve_cpe (cpe_product);
`

// SQLiteStore keeps a reference table in a SQLite database, one row per
// CVE and affected CPE, in insertion order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and creates the table if
// needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to ping database: %w", err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, xerrors.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save appends records in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, records []types.VulnerabilityRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("failed to begin a transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cve_cpe
		(cve_id, description, cpe_vendor, cpe_product, cpe_version, cpe_uri,
		 cvss_base_score, cvss_vector, severity, published, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return xerrors.Errorf("failed to prepare the insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var score sql.NullFloat64
		if r.Score != nil {
			score = sql.NullFloat64{Float64: *r.Score, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, r.CVEID, r.Description, r.Vendor, r.Product, r.Version, r.CPEURI,
			score, r.Vector, string(r.Severity), formatDate(r.Published), formatDate(r.LastModified)); err != nil {
			return xerrors.Errorf("failed to insert %s: %w", r.CVEID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return xerrors.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Load reads every record in insertion order. Stored rows go through the
// same validation as CSV rows.
func (s *SQLiteStore) Load(ctx context.Context) (Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cve_id, description, cpe_vendor, cpe_product, cpe_version,
		cpe_uri, cvss_base_score, cvss_vector, severity, published, last_modified
		FROM cve_cpe ORDER BY id`)
	if err != nil {
		return Table{}, xerrors.Errorf("failed to query the reference table: %w", err)
	}
	defer rows.Close()

	var table Table
	for rows.Next() {
		var (
			cells = make(map[string]string, len(Columns))
			c     [10]string
			score sql.NullFloat64
		)
		if err = rows.Scan(&c[0], &c[1], &c[2], &c[3], &c[4], &c[5], &score, &c[6], &c[7], &c[8], &c[9]); err != nil {
			return Table{}, xerrors.Errorf("failed to scan a row: %w", err)
		}
		for i, name := range []string{colCVEID, colDescription, colVendor, colProduct, colVersion, colURI,
			colVector, colSeverity, colPublished, colLastModified} {
			cells[name] = c[i]
		}
		if score.Valid {
			cells[colScore] = formatScore(score.Float64)
		}

		rec, errs := parseRecord(func(name string) string { return cells[name] })
		if errs != nil {
			table.Warnings = multierror.Append(table.Warnings, xerrors.Errorf("row %s: %w", rec.CVEID, errs))
		}
		table.Records = append(table.Records, rec)
	}
	if err = rows.Err(); err != nil {
		return Table{}, xerrors.Errorf("failed to iterate rows: %w", err)
	}
	return table, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cve_cpe`).Scan(&n); err != nil {
		return 0, xerrors.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// LastModified returns the most recent last_modified date stored, the zero
// time for an empty table.
func (s *SQLiteStore) LastModified(ctx context.Context) (time.Time, error) {
	var raw sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(last_modified) FROM cve_cpe`).Scan(&raw); err != nil {
		return time.Time{}, xerrors.Errorf("failed to query the last modified date: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, nil
	}
	return parseDate(raw.String)
}
