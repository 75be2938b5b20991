package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `{
  "resultsPerPage": 1, "startIndex": 0, "totalResults": 1,
  "vulnerabilities": [{"cve": {
    "id": "CVE-2023-30861",
    "published": "2023-05-02T18:15:52.813",
    "lastModified": "2023-08-09T15:15:09.767",
    "descriptions": [{"lang": "en", "value": "Flask session cookie disclosure"}],
    "metrics": {"cvssMetricV31": [{"source": "nvd@nist.gov", "type": "Primary",
      "cvssData": {"version": "3.1", "vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:N/A:N", "baseScore": 7.5, "baseSeverity": "HIGH"}}]},
    "configurations": [{"nodes": [{"operator": "OR", "cpeMatch": [
      {"vulnerable": true, "criteria": "cpe:2.3:a:palletsprojects:flask:2.0.1:*:*:*:*:*:*:*"}
    ]}]}]
  }}]
}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngestAndAnalyze(t *testing.T) {
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "nvdcve-2.0-2023.json")
	require.NoError(t, os.WriteFile(feedPath, []byte(feed), 0600))
	reqPath := filepath.Join(dir, "requirements.txt")
	require.NoError(t, os.WriteFile(reqPath, []byte("flask==2.0.1\ntotally-unknown-pkg==9.9\n"), 0600))

	for _, ref := range []string{"cve_cpe.csv", "cve_cpe.db"} {
		t.Run(ref, func(t *testing.T) {
			refPath := filepath.Join(dir, ref)
			_, err := execute(t, "ingest", "-o", refPath, feedPath)
			require.NoError(t, err)

			got, err := execute(t, "analyze", "--requirements", reqPath, "--reference", refPath)
			require.NoError(t, err)
			assert.Equal(t, "dependency,matched_vendor,matched_product,cve_id,cvss_score,severity,description\n"+
				"flask==2.0.1,palletsprojects,flask,CVE-2023-30861,7.5,HIGH,Flask session cookie disclosure\n"+
				"totally-unknown-pkg==9.9,unknown_vendor,unknown_product,,,UNKNOWN,No known CVEs found for this dependency\n", got)
		})
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "ingest without output", args: []string{"ingest", "feed.json"}, wantErr: "--output is required"},
		{name: "ingest without input", args: []string{"ingest", "-o", "ref.csv"}, wantErr: "either feed files or --fetch must be given"},
		{name: "ingest with both", args: []string{"ingest", "-o", "ref.csv", "--fetch", "feed.json"}, wantErr: "either feed files or --fetch must be given"},
		{name: "analyze without inputs", args: []string{"analyze"}, wantErr: "requirements file is required"},
		{name: "analyze with a bad strategy", args: []string{"analyze", "--requirements", "r.txt", "--reference", "r.csv", "--strategy", "magic"}, wantErr: `unknown classifier strategy "magic"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestVersion(t *testing.T) {
	got, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", got)
}
