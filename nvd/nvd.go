package nvd

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/types"
	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

const (
	url20             = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	apiKeyEnvName     = "NVD_API_KEY"
	maxResultsPerPage = 2000
	retry             = 5
	nvdTimeFormat     = "2006-01-02T15:04:05"

	// the API rejects lastMod windows longer than 120 days
	maxIntervalDays = 120
)

type options struct {
	baseURL           string
	apiKey            string
	maxResultsPerPage int
	retry             int
	lastModStartDate  time.Time
	lastModEndDate    time.Time
}

type option func(*options)

func WithBaseURL(baseURL string) option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

func WithAPIKey(apiKey string) option {
	return func(opts *options) {
		opts.apiKey = apiKey
	}
}

func WithMaxResultsPerPage(maxResultsPerPage int) option {
	return func(opts *options) {
		opts.maxResultsPerPage = maxResultsPerPage
	}
}

func WithRetry(retry int) option {
	return func(opts *options) {
		opts.retry = retry
	}
}

func WithLastModStartDate(lastModStartDate time.Time) option {
	return func(opts *options) {
		opts.lastModStartDate = lastModStartDate
	}
}

// WithLastModEndDate sets the end of the fetched window, time.Now() by
// default.
func WithLastModEndDate(lastModEndDate time.Time) option {
	return func(opts *options) {
		opts.lastModEndDate = lastModEndDate
	}
}

// Updater pages through the NVD CVE API 2.0 and flattens the CVEs
// modified in a time window into reference records.
type Updater struct {
	*options
}

func NewUpdater(opts ...option) Updater {
	o := &options{
		baseURL:           url20,
		apiKey:            os.Getenv(apiKeyEnvName),
		maxResultsPerPage: maxResultsPerPage,
		retry:             retry,
		lastModEndDate:    time.Now(),
	}

	for _, opt := range opts {
		opt(o)
	}
	return Updater{
		options: o,
	}
}

// Fetch returns the records of every CVE modified between the start and end
// dates. A CVE seen in several intervals is kept in its latest revision;
// records are ordered by CVE ID.
func (updater Updater) Fetch(ctx context.Context) ([]types.VulnerabilityRecord, error) {
	intervals := timeIntervals(updater.lastModStartDate, updater.lastModEndDate)
	log.Printf("Fetching NVD CVEs modified since %s (%d intervals)", intervals[0].lastModStartDate, len(intervals))

	cves := make(map[string]CVE)
	for _, interval := range intervals {
		// fetch only 1 CVE first to find the number of CVEs
		rootURL, err := urlWithParams(updater.baseURL, 0, 1, interval)
		if err != nil {
			return nil, xerrors.Errorf("unable to build the root url: %w", err)
		}
		entry, err := updater.getEntry(ctx, rootURL)
		if err != nil {
			return nil, xerrors.Errorf("unable to get entry for %q: %w", rootURL, err)
		}

		for startIndex := 0; startIndex < entry.TotalResults; startIndex += updater.maxResultsPerPage {
			pageURL, err := urlWithParams(updater.baseURL, startIndex, updater.maxResultsPerPage, interval)
			if err != nil {
				return nil, xerrors.Errorf("unable to build the page url: %w", err)
			}
			page, err := updater.getEntry(ctx, pageURL)
			if err != nil {
				return nil, xerrors.Errorf("unable to get entry for %q: %w", pageURL, err)
			}
			for _, v := range page.Vulnerabilities {
				if prev, ok := cves[v.Cve.ID]; !ok || prev.LastModified <= v.Cve.LastModified {
					cves[v.Cve.ID] = v.Cve
				}
			}
		}
	}

	ids := lo.Keys(cves)
	slices.Sort(ids)

	var records []types.VulnerabilityRecord
	for _, id := range ids {
		records = append(records, Flatten(cves[id])...)
	}
	log.Printf("Fetched %d CVEs, %d records", len(ids), len(records))
	return records, nil
}

func (updater Updater) getEntry(ctx context.Context, url string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	b, err := utils.FetchURL(url, updater.apiKey, updater.retry)
	if err != nil {
		return Entry{}, xerrors.Errorf("unable to fetch: %w", err)
	}

	var entry Entry
	if err = json.NewDecoder(bytes.NewReader(b)).Decode(&entry); err != nil {
		return Entry{}, xerrors.Errorf("unable to decode response for %q: %w", url, err)
	}
	return entry, nil
}

type timeInterval struct {
	lastModStartDate string
	lastModEndDate   string
}

// timeIntervals splits [start, end] into windows of at most 120 days.
func timeIntervals(start, end time.Time) []timeInterval {
	start, end = start.UTC(), end.UTC()

	var intervals []timeInterval
	for end.Sub(start).Hours()/24 > maxIntervalDays {
		next := start.Add(maxIntervalDays * 24 * time.Hour)
		intervals = append(intervals, timeInterval{
			lastModStartDate: start.Format(nvdTimeFormat),
			lastModEndDate:   next.Format(nvdTimeFormat),
		})
		start = next
	}

	// fill latest interval
	intervals = append(intervals, timeInterval{
		lastModStartDate: start.Format(nvdTimeFormat),
		lastModEndDate:   end.Format(nvdTimeFormat),
	})
	return intervals
}

func urlWithParams(baseURL string, startIndex, resultsPerPage int, interval timeInterval) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", xerrors.Errorf("unable to parse %q base url: %w", baseURL, err)
	}
	q := u.Query()
	q.Set("lastModStartDate", interval.lastModStartDate)
	q.Set("lastModEndDate", interval.lastModEndDate)
	q.Set("startIndex", strconv.Itoa(startIndex))
	q.Set("resultsPerPage", strconv.Itoa(resultsPerPage))
	// the API expects the dates' colons unescaped
	decoded, err := url.QueryUnescape(q.Encode())
	if err != nil {
		return "", xerrors.Errorf("unable to unescape the query: %w", err)
	}
	u.RawQuery = decoded
	return u.String(), nil
}
