package nvd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/dep-risk-analyzer/types"
)

func testCVE(id string, score float64, lastModified string) CVE {
	return CVE{
		ID:           id,
		Published:    "2023-11-01T10:00:00.000",
		LastModified: lastModified,
		Descriptions: []LangString{{Lang: "en", Value: id + " description"}},
		Metrics: Metrics{
			CvssMetricV31: []CvssMetric{{
				Source:   "nvd@nist.gov",
				Type:     "Primary",
				CvssData: CvssData{Version: "3.1", BaseScore: types.Float(score)},
			}},
		},
	}
}

func TestUpdater_Fetch(t *testing.T) {
	tests := []struct {
		name              string
		maxResultsPerPage int
		wantAPIKey        string
		start             time.Time
		end               time.Time
		respond           func(q map[string]string) Entry
		wantIDs           []string
		wantRequests      int
	}{
		{
			name:              "happy path 2 pages",
			maxResultsPerPage: 2,
			wantAPIKey:        "test_api_key",
			start:             time.Date(2023, 11, 26, 0, 0, 0, 0, time.UTC),
			end:               time.Date(2023, 11, 28, 0, 0, 0, 0, time.UTC),
			respond: func(q map[string]string) Entry {
				all := []CVE{
					testCVE("CVE-2023-0003", 9.8, "2023-11-27T00:00:00.000"),
					testCVE("CVE-2023-0001", 7.5, "2023-11-27T00:00:00.000"),
					testCVE("CVE-2023-0002", 3.1, "2023-11-27T00:00:00.000"),
				}
				start, _ := strconv.Atoi(q["startIndex"])
				size, _ := strconv.Atoi(q["resultsPerPage"])
				entry := Entry{StartIndex: start, ResultsPerPage: size, TotalResults: len(all)}
				for i := start; i < len(all) && i < start+size; i++ {
					entry.Vulnerabilities = append(entry.Vulnerabilities, Vulnerability{Cve: all[i]})
				}
				return entry
			},
			wantIDs:      []string{"CVE-2023-0001", "CVE-2023-0002", "CVE-2023-0003"},
			wantRequests: 3,
		},
		{
			name:              "same CVE in two intervals",
			maxResultsPerPage: 10,
			start:             time.Date(2023, 5, 28, 0, 0, 0, 0, time.UTC),
			end:               time.Date(2023, 11, 28, 0, 0, 0, 0, time.UTC),
			respond: func(q map[string]string) Entry {
				return Entry{
					TotalResults:    1,
					Vulnerabilities: []Vulnerability{{Cve: testCVE("CVE-2023-0001", 7.5, q["lastModEndDate"])}},
				}
			},
			wantIDs:      []string{"CVE-2023-0001"},
			wantRequests: 4,
		},
		{
			name:              "nothing modified",
			maxResultsPerPage: 10,
			start:             time.Date(2023, 11, 26, 0, 0, 0, 0, time.UTC),
			end:               time.Date(2023, 11, 28, 0, 0, 0, 0, time.UTC),
			respond: func(q map[string]string) Entry {
				return Entry{}
			},
			wantRequests: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				assert.Equal(t, tt.wantAPIKey, r.Header.Get("apiKey"))

				q := make(map[string]string)
				for k := range r.URL.Query() {
					q[k] = r.URL.Query().Get(k)
				}
				assert.NotEmpty(t, q["lastModStartDate"])
				assert.NotEmpty(t, q["lastModEndDate"])

				require.NoError(t, json.NewEncoder(w).Encode(tt.respond(q)))
			}))
			defer ts.Close()

			u := NewUpdater(
				WithBaseURL(ts.URL),
				WithAPIKey(tt.wantAPIKey),
				WithMaxResultsPerPage(tt.maxResultsPerPage),
				WithRetry(0),
				WithLastModStartDate(tt.start),
				WithLastModEndDate(tt.end),
			)
			got, err := u.Fetch(context.Background())
			require.NoError(t, err)

			var ids []string
			for _, r := range got {
				ids = append(ids, r.CVEID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantRequests, requests)

			if tt.name == "same CVE in two intervals" {
				assert.Equal(t, time.Date(2023, 11, 28, 0, 0, 0, 0, time.UTC), got[0].LastModified)
			}
		})
	}
}

func TestUpdater_FetchError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	u := NewUpdater(WithBaseURL(ts.URL), WithRetry(0), WithLastModStartDate(time.Now().Add(-time.Hour)))
	_, err := u.Fetch(context.Background())
	assert.ErrorContains(t, err, "status code: 403")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = u.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimeIntervals(t *testing.T) {
	tests := []struct {
		name          string
		start         time.Time
		end           time.Time
		wantIntervals []timeInterval
	}{
		{
			name:  "one interval",
			start: time.Date(2023, 11, 26, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2023, 11, 28, 0, 0, 0, 0, time.UTC),
			wantIntervals: []timeInterval{
				{
					lastModStartDate: "2023-11-26T00:00:00",
					lastModEndDate:   "2023-11-28T00:00:00",
				},
			},
		},
		{
			name:  "two intervals",
			start: time.Date(2023, 5, 28, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2023, 11, 28, 0, 0, 0, 0, time.UTC),
			wantIntervals: []timeInterval{
				{
					lastModStartDate: "2023-05-28T00:00:00",
					lastModEndDate:   "2023-09-25T00:00:00",
				},
				{
					lastModStartDate: "2023-09-25T00:00:00",
					lastModEndDate:   "2023-11-28T00:00:00",
				},
			},
		},
		{
			name:  "exactly 120 days",
			start: time.Date(2023, 5, 28, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2023, 9, 25, 0, 0, 0, 0, time.UTC),
			wantIntervals: []timeInterval{
				{
					lastModStartDate: "2023-05-28T00:00:00",
					lastModEndDate:   "2023-09-25T00:00:00",
				},
			},
		},
		{
			name:  "non UTC location",
			start: time.Date(2023, 11, 26, 9, 0, 0, 0, time.FixedZone("JST", 9*60*60)),
			end:   time.Date(2023, 11, 28, 0, 0, 0, 0, time.UTC),
			wantIntervals: []timeInterval{
				{
					lastModStartDate: "2023-11-26T00:00:00",
					lastModEndDate:   "2023-11-28T00:00:00",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIntervals, timeIntervals(tt.start, tt.end))
		})
	}
}

func TestURLWithParams(t *testing.T) {
	got, err := urlWithParams("https://services.nvd.nist.gov/rest/json/cves/2.0", 2000, 2000, timeInterval{
		lastModStartDate: "2023-11-26T00:00:00",
		lastModEndDate:   "2023-11-28T00:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://services.nvd.nist.gov/rest/json/cves/2.0?lastModEndDate=2023-11-28T00:00:00&lastModStartDate=2023-11-26T00:00:00&resultsPerPage=2000&startIndex=2000", got)
}
