// Package config resolves the analyze settings from flags, DEPRISK_*
// environment variables, a .env file and an optional YAML config file.
package config

import (
	"io/fs"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/classifier"
	"github.com/aquasecurity/dep-risk-analyzer/report"
	"github.com/aquasecurity/dep-risk-analyzer/similarity"
)

const EnvPrefix = "DEPRISK"

// keys, also the analyze flag names
const (
	KeyRequirements = "requirements"
	KeyReference    = "reference"
	KeyModel        = "model"
	KeyStrategy     = "strategy"
	KeyCutoff       = "cutoff"
	KeyNoFuzzy      = "no-fuzzy"
	KeyMapping      = "mapping"
	KeyWorkers      = "workers"
	KeyFormat       = "format"
	KeyOutput       = "output"
	KeyMetricsFile  = "metrics-file"
	KeyProgress     = "progress"
)

var keys = []string{
	KeyRequirements, KeyReference, KeyModel, KeyStrategy, KeyCutoff, KeyNoFuzzy,
	KeyMapping, KeyWorkers, KeyFormat, KeyOutput, KeyMetricsFile, KeyProgress,
}

type Config struct {
	Requirements string  `mapstructure:"requirements"`
	Reference    string  `mapstructure:"reference"`
	Model        string  `mapstructure:"model"`
	Strategy     string  `mapstructure:"strategy"`
	Cutoff       float64 `mapstructure:"cutoff"`
	NoFuzzy      bool    `mapstructure:"no-fuzzy"`
	Mapping      string  `mapstructure:"mapping"`
	Workers      int     `mapstructure:"workers"`
	Format       string  `mapstructure:"format"`
	Output       string  `mapstructure:"output"`
	MetricsFile  string  `mapstructure:"metrics-file"`
	Progress     bool    `mapstructure:"progress"`
}

type options struct {
	configFile string
	envFiles   []string
}

type option func(*options)

// WithConfigFile reads settings from a YAML file. The file must exist.
func WithConfigFile(path string) option {
	return func(opts *options) {
		opts.configFile = path
	}
}

// WithEnvFiles loads environment files instead of ./.env. Existing
// variables are never overridden.
func WithEnvFiles(paths ...string) option {
	return func(opts *options) {
		opts.envFiles = paths
	}
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyStrategy, classifier.StrategyRule)
	v.SetDefault(KeyCutoff, similarity.DefaultCutoff)
	v.SetDefault(KeyNoFuzzy, false)
	v.SetDefault(KeyWorkers, 1)
	v.SetDefault(KeyFormat, report.FormatCSV)
	v.SetDefault(KeyProgress, false)
}

// Load resolves a Config from v, whose flags are expected to be bound
// already. Precedence is flag, environment, config file, default.
func Load(v *viper.Viper, opts ...option) (Config, error) {
	o := &options{envFiles: []string{".env"}}
	for _, opt := range opts {
		opt(o)
	}

	for _, f := range o.envFiles {
		if err := godotenv.Load(f); err != nil && !xerrors.Is(err, fs.ErrNotExist) {
			return Config{}, xerrors.Errorf("unable to load %s: %w", f, err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		// Unmarshal only sees keys viper already knows of
		if err := v.BindEnv(k); err != nil {
			return Config{}, xerrors.Errorf("unable to bind %s: %w", k, err)
		}
	}

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, xerrors.Errorf("unable to read the config file %s: %w", o.configFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, xerrors.Errorf("unable to decode the config: %w", err)
	}
	c.Strategy = strings.ToLower(strings.TrimSpace(c.Strategy))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	return c, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs error
	if c.Requirements == "" {
		errs = multierror.Append(errs, xerrors.New("requirements file is required"))
	}
	if c.Reference == "" {
		errs = multierror.Append(errs, xerrors.New("reference table is required"))
	}
	if !lo.Contains(classifier.Strategies, c.Strategy) {
		errs = multierror.Append(errs, xerrors.Errorf("unknown classifier strategy %q, expected one of %s",
			c.Strategy, strings.Join(classifier.Strategies, ", ")))
	} else if c.Strategy != classifier.StrategyRule && c.Model == "" {
		errs = multierror.Append(errs, xerrors.Errorf("strategy %s requires a model bundle", c.Strategy))
	}
	if c.Cutoff < 0 || c.Cutoff > 1 {
		errs = multierror.Append(errs, xerrors.Errorf("cutoff %v out of range [0, 1]", c.Cutoff))
	}
	if c.Workers < 1 {
		errs = multierror.Append(errs, xerrors.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if !lo.Contains(report.Formats, c.Format) {
		errs = multierror.Append(errs, xerrors.Errorf("unknown format %q, expected one of %s",
			c.Format, strings.Join(report.Formats, ", ")))
	}
	return errs
}
