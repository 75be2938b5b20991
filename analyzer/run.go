package analyzer

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/classifier"
	"github.com/aquasecurity/dep-risk-analyzer/config"
	"github.com/aquasecurity/dep-risk-analyzer/metrics"
	"github.com/aquasecurity/dep-risk-analyzer/normalize"
	"github.com/aquasecurity/dep-risk-analyzer/reference"
	"github.com/aquasecurity/dep-risk-analyzer/report"
	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

// Run executes one analysis as configured. Every input is loaded before
// any dependency is processed, so a missing input fails fast. The report
// goes to conf.Output, or to out when no output file is set.
func Run(ctx context.Context, fs afero.Fs, conf config.Config, out io.Writer) error {
	start := time.Now()
	if err := conf.Validate(); err != nil {
		return xerrors.Errorf("invalid configuration: %w", err)
	}

	deps, err := normalize.Load(fs, conf.Requirements)
	if err != nil {
		return xerrors.Errorf("unable to load dependencies: %w", err)
	}
	log.Printf("Loaded %d dependencies from %s", len(deps), conf.Requirements)

	records, err := reference.Load(ctx, conf.Reference, reference.WithFs(fs))
	if err != nil {
		return err
	}

	var bundle *classifier.Bundle
	if conf.Model != "" {
		if bundle, err = loadBundle(ctx, fs, conf.Model); err != nil {
			return xerrors.Errorf("unable to load the model bundle: %w", err)
		}
	}

	mapping := normalize.DefaultMapping()
	if conf.Mapping != "" {
		if mapping, err = normalize.LoadMapping(fs, conf.Mapping); err != nil {
			return err
		}
	}

	m := metrics.NewMetrics()
	a, err := New(records,
		WithMapping(mapping),
		WithCutoff(conf.Cutoff),
		WithFuzzy(!conf.NoFuzzy),
		WithStrategy(conf.Strategy),
		WithBundle(bundle),
		WithWorkers(conf.Workers),
		WithProgress(conf.Progress),
		WithMetrics(m),
	)
	if err != nil {
		return err
	}

	groups, err := a.Analyze(ctx, deps)
	if err != nil {
		return err
	}

	if conf.Output != "" {
		if err = report.WriteFile(fs, conf.Output, conf.Format, groups); err != nil {
			return xerrors.Errorf("unable to write the report: %w", err)
		}
		log.Printf("Report written to %s", conf.Output)
	} else if err = report.Write(out, conf.Format, groups); err != nil {
		return xerrors.Errorf("unable to write the report: %w", err)
	}

	s := report.Summarize(groups)
	log.Printf("%d dependencies, %d rows, %d without known CVEs", s.Dependencies, s.Rows, s.Unmatched)

	if conf.MetricsFile != "" {
		m.Finish(start, time.Now())
		if err = m.WriteTextfile(conf.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}

func loadBundle(ctx context.Context, fs afero.Fs, src string) (*classifier.Bundle, error) {
	dir := src
	if utils.IsRemote(src) {
		log.Printf("Fetching the model bundle from %s", src)
		tmp, err := utils.DownloadToTempDir(ctx, src)
		if err != nil {
			return nil, xerrors.Errorf("unable to fetch %s: %w", src, err)
		}
		fs, dir = afero.NewOsFs(), tmp
	}
	return classifier.LoadBundle(fs, dir)
}
