// Package analyzer runs the triage pipeline: lookup, encoding,
// classification and report assembly for a list of dependencies.
package analyzer

import (
	"context"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/classifier"
	"github.com/aquasecurity/dep-risk-analyzer/encoder"
	"github.com/aquasecurity/dep-risk-analyzer/lookup"
	"github.com/aquasecurity/dep-risk-analyzer/metrics"
	"github.com/aquasecurity/dep-risk-analyzer/normalize"
	"github.com/aquasecurity/dep-risk-analyzer/report"
	"github.com/aquasecurity/dep-risk-analyzer/similarity"
	"github.com/aquasecurity/dep-risk-analyzer/types"
)

type options struct {
	mapping  normalize.Mapping
	cutoff   float64
	fuzzy    bool
	strategy string
	bundle   *classifier.Bundle
	workers  int
	progress bool
	metrics  *metrics.Metrics
}

type option func(*options)

func WithMapping(m normalize.Mapping) option {
	return func(opts *options) {
		opts.mapping = m
	}
}

func WithCutoff(cutoff float64) option {
	return func(opts *options) {
		opts.cutoff = cutoff
	}
}

func WithFuzzy(enabled bool) option {
	return func(opts *options) {
		opts.fuzzy = enabled
	}
}

// WithStrategy selects the classifier, one of classifier.Strategies.
func WithStrategy(strategy string) option {
	return func(opts *options) {
		opts.strategy = strategy
	}
}

// WithBundle provides the trained model and, when the bundle carries them,
// the encoders it was trained with.
func WithBundle(bundle *classifier.Bundle) option {
	return func(opts *options) {
		opts.bundle = bundle
	}
}

func WithWorkers(workers int) option {
	return func(opts *options) {
		opts.workers = workers
	}
}

func WithProgress(enabled bool) option {
	return func(opts *options) {
		opts.progress = enabled
	}
}

func WithMetrics(m *metrics.Metrics) option {
	return func(opts *options) {
		opts.metrics = m
	}
}

// Analyzer holds the read-only state shared by every dependency.
type Analyzer struct {
	matcher    lookup.Matcher
	encoder    encoder.Encoder
	classifier classifier.Classifier
	workers    int
	progress   bool
	metrics    *metrics.Metrics
}

// New indexes the reference records and builds the classifier. The model
// strategies take their encoders from the bundle; only the rule strategy
// fits them on records.
func New(records []types.VulnerabilityRecord, opts ...option) (*Analyzer, error) {
	o := &options{
		mapping:  normalize.DefaultMapping(),
		cutoff:   similarity.DefaultCutoff,
		fuzzy:    true,
		strategy: classifier.StrategyRule,
		workers:  1,
	}
	for _, opt := range opts {
		opt(o)
	}

	clf, err := classifier.New(o.strategy, o.bundle)
	if err != nil {
		return nil, xerrors.Errorf("classifier error: %w", err)
	}

	var encoders encoder.Encoders
	var text *encoder.TFIDF
	switch {
	case o.bundle != nil && o.bundle.Encoders != nil:
		encoders, text = *o.bundle.Encoders, o.bundle.Text
	case o.strategy == classifier.StrategyModel || o.strategy == classifier.StrategyHybrid:
		return nil, xerrors.Errorf("strategy %q: %w", o.strategy, classifier.ErrEncodersNotFound)
	default:
		encoders = encoder.FitRecords(records)
	}

	if o.metrics != nil {
		o.metrics.ReferenceRecords.Set(float64(len(records)))
	}

	return &Analyzer{
		matcher: lookup.NewMatcher(lookup.NewIndex(records),
			lookup.WithMapping(o.mapping),
			lookup.WithCutoff(o.cutoff),
			lookup.WithFuzzy(o.fuzzy),
		),
		encoder:    encoder.New(encoders, encoder.WithText(text)),
		classifier: clf,
		workers:    max(o.workers, 1),
		progress:   o.progress,
		metrics:    o.metrics,
	}, nil
}

// Analyze returns exactly one report group per dependency, in input order.
// Dependencies are processed by up to workers goroutines; each one writes
// only its own slot, so the output does not depend on scheduling.
func (a *Analyzer) Analyze(ctx context.Context, deps []types.Dependency) ([]report.Group, error) {
	results := make([][]types.MatchResult, len(deps))

	var bar *pb.ProgressBar
	if a.progress {
		bar = pb.StartNew(len(deps))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, dep := range deps {
		i, dep := i, dep
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.Classify(dep)
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	err := g.Wait()
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, xerrors.Errorf("analysis aborted: %w", err)
	}

	groups := report.Assemble(deps, results)
	if a.metrics != nil {
		a.metrics.Observe(groups)
	}
	return groups, nil
}

// Classify looks dep up and labels every match. The "no known CVE"
// sentinel is classified from the resolved vendor/product identity with no
// score, so the rule strategy leaves it UNKNOWN while a model can still
// predict a level.
func (a *Analyzer) Classify(dep types.Dependency) []types.MatchResult {
	results := a.matcher.Lookup(dep)
	for i, r := range results {
		in := encoder.Input{
			Vendor:      r.MatchedVendor,
			Product:     r.MatchedProduct,
			Score:       r.Score,
			Description: r.Description,
		}
		if r.IsSentinel() {
			id := a.matcher.Identity(dep)
			in = encoder.Input{Vendor: id.Vendor, Product: id.Product}
		}
		results[i].Severity = a.classifier.Predict(a.encoder.Encode(in))
	}
	return results
}
