package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/analyzer"
	"github.com/aquasecurity/dep-risk-analyzer/classifier"
	"github.com/aquasecurity/dep-risk-analyzer/config"
	"github.com/aquasecurity/dep-risk-analyzer/nvd"
	"github.com/aquasecurity/dep-risk-analyzer/reference"
	"github.com/aquasecurity/dep-risk-analyzer/report"
	"github.com/aquasecurity/dep-risk-analyzer/similarity"
	"github.com/aquasecurity/dep-risk-analyzer/types"
	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

const nvdSource = "nvd"

var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dep-risk-analyzer",
		Short:         "Match declared dependencies against CVE/CPE records and triage their severity",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCommand(), newIngestCommand(), newVersionCommand())
	return root
}

func newAnalyzeCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a requirements file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.Load(v, config.WithConfigFile(configFile))
			if err != nil {
				return err
			}
			return analyzer.Run(cmd.Context(), afero.NewOsFs(), conf, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "YAML config file")
	f.String(config.KeyRequirements, "", "requirements file, one dependency per line")
	f.String(config.KeyReference, "", "reference table: CSV (.csv, .csv.gz, .csv.zst) or SQLite (.db), local or remote")
	f.String(config.KeyModel, "", "model bundle directory, local or remote")
	f.String(config.KeyStrategy, classifier.StrategyRule, "classifier strategy ("+strings.Join(classifier.Strategies, ", ")+")")
	f.Float64(config.KeyCutoff, similarity.DefaultCutoff, "minimum similarity ratio of a fuzzy match")
	f.Bool(config.KeyNoFuzzy, false, "disable fuzzy product matching")
	f.String(config.KeyMapping, "", "YAML vendor/product mapping overrides")
	f.Int(config.KeyWorkers, 1, "number of dependencies analyzed concurrently")
	f.String(config.KeyFormat, report.FormatCSV, "report format ("+strings.Join(report.Formats, ", ")+")")
	f.StringP(config.KeyOutput, "o", "", "report file, stdout when empty")
	f.String(config.KeyMetricsFile, "", "write run metrics in the Prometheus text format")
	f.Bool(config.KeyProgress, false, "show a progress bar")

	if err := v.BindPFlags(f); err != nil {
		log.Fatal(err)
	}
	return cmd
}

func newIngestCommand() *cobra.Command {
	var (
		output string
		fetch  bool
		since  string
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "ingest [FEED...]",
		Short: "Build a reference table from NVD JSON feeds or the NVD API",
		Long: `Flatten NVD CVE feeds (API 2.0 pages or 1.1 feed files, optionally
.gz/.zst compressed) into a reference table with one row per CVE and CPE.
With --fetch, CVEs are fetched from the NVD API instead; without --since, the
fetch resumes from the last successful one. SQLite outputs are appended to,
CSV outputs are overwritten.`,
		RunE: func(cmd *cobra.Command, feeds []string) error {
			if output == "" {
				return xerrors.New("--output is required")
			}
			if fetch == (len(feeds) > 0) {
				return xerrors.New("either feed files or --fetch must be given")
			}

			ctx := cmd.Context()
			fs := afero.NewOsFs()
			var records []types.VulnerabilityRecord
			if fetch {
				var err error
				if records, err = fetchNVD(ctx, fs, since, apiKey); err != nil {
					return err
				}
			} else {
				for _, feed := range feeds {
					rs, err := nvd.ReadFile(fs, feed)
					if err != nil {
						return err
					}
					log.Printf("%s: %d records", feed, len(rs))
					records = append(records, rs...)
				}
			}

			if err := reference.Save(ctx, fs, output, records); err != nil {
				return xerrors.Errorf("unable to save the reference table: %w", err)
			}
			log.Printf("Saved %d records to %s", len(records), output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "reference table to write (.csv, .csv.gz, .csv.zst or .db)")
	f.BoolVar(&fetch, "fetch", false, "fetch from the NVD API")
	f.StringVar(&since, "since", "", "fetch CVEs modified since this date")
	f.StringVar(&apiKey, "api-key", utils.LookupEnv("NVD_API_KEY", ""), "NVD API key")
	return cmd
}

func fetchNVD(ctx context.Context, fs afero.Fs, since, apiKey string) ([]types.VulnerabilityRecord, error) {
	lastUpdatedPath := utils.LastUpdatedFilePath()

	var start time.Time
	var err error
	if since != "" {
		if start, err = dateparse.ParseIn(since, time.UTC); err != nil {
			return nil, xerrors.Errorf("invalid --since date %q: %w", since, err)
		}
	} else if start, err = utils.GetLastUpdatedDate(fs, lastUpdatedPath, nvdSource); err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	records, err := nvd.NewUpdater(
		nvd.WithAPIKey(apiKey),
		nvd.WithLastModStartDate(start),
		nvd.WithLastModEndDate(end),
	).Fetch(ctx)
	if err != nil {
		return nil, xerrors.Errorf("NVD fetch error: %w", err)
	}

	if err = utils.SetLastUpdatedDate(fs, lastUpdatedPath, nvdSource, end); err != nil {
		return nil, err
	}
	return records, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
