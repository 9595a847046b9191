package toolkitcfg

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/webhook"
)

// ToolkitConfig mirrors config/mbfid.yaml.
type ToolkitConfig struct {
	APIVersion string                    `yaml:"apiVersion"`
	Kind       string                    `yaml:"kind"`
	Families   map[string]FamilyOverride `yaml:"families"`
	Gate       GateConfig                `yaml:"gate"`
	Output     OutputConfig              `yaml:"output"`
	Tracing    TracingConfig             `yaml:"tracing"`
	Logging    LoggingConfig             `yaml:"logging"`
	Webhook    WebhookConfig             `yaml:"webhook"`
}

// FamilyOverride replaces the covariance scales of one fault family.
type FamilyOverride struct {
	NoiseScale   *float64 `yaml:"noise_scale"`
	ProcessScale *float64 `yaml:"process_scale"`
}

// GateConfig tunes the confidence gate.
type GateConfig struct {
	Normalization string `yaml:"normalization"`
}

// OutputConfig selects where run artifacts are written. Empty paths disable
// the corresponding artifact, except the results directory.
type OutputConfig struct {
	ResultsDir      string `yaml:"results_dir"`
	SummaryPath     string `yaml:"summary_path"`
	SQLitePath      string `yaml:"sqlite_path"`
	MetricsTextfile string `yaml:"metrics_textfile"`
	MetricsAddr     string `yaml:"metrics_addr"`
}

// TracingConfig contains span exporter settings.
type TracingConfig struct {
	Exporter    string `yaml:"exporter"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WebhookConfig enables delivery of identified-fault notices.
type WebhookConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`
	Secret    string `yaml:"secret"`
	Format    string `yaml:"format"`
	TimeoutMS int    `yaml:"timeout_ms"`
	// MaxPerSecond caps notice deliveries; zero disables the cap.
	MaxPerSecond int `yaml:"max_per_second"`
}

// Default returns v1alpha1 defaults.
func Default() ToolkitConfig {
	return ToolkitConfig{
		APIVersion: "mbfid.toolkit.dev/v1alpha1",
		Kind:       "ToolkitConfig",
		Families:   map[string]FamilyOverride{},
		Gate: GateConfig{
			Normalization: string(identification.NormalizationNone),
		},
		Output: OutputConfig{
			ResultsDir: "results",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			Endpoint:    "localhost:4317",
			ServiceName: "mbfid",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Webhook: WebhookConfig{
			Format:    "generic",
			TimeoutMS: 5000,
		},
	}
}

// Load parses, normalizes and validates a toolkit config file.
func Load(path string) (ToolkitConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func normalize(cfg *ToolkitConfig) {
	if cfg.Families == nil {
		cfg.Families = map[string]FamilyOverride{}
	}
	cfg.Gate.Normalization = strings.ToLower(strings.TrimSpace(cfg.Gate.Normalization))
	if cfg.Gate.Normalization == "" {
		cfg.Gate.Normalization = Default().Gate.Normalization
	}
	if cfg.Output.ResultsDir == "" {
		cfg.Output.ResultsDir = Default().Output.ResultsDir
	}
	cfg.Tracing.Exporter = strings.ToLower(strings.TrimSpace(cfg.Tracing.Exporter))
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = Default().Tracing.Exporter
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = Default().Tracing.Endpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = Default().Tracing.ServiceName
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = Default().Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = Default().Logging.Format
	}
	cfg.Webhook.Format = strings.ToLower(strings.TrimSpace(cfg.Webhook.Format))
	if cfg.Webhook.Format == "" {
		cfg.Webhook.Format = Default().Webhook.Format
	}
	if cfg.Webhook.TimeoutMS <= 0 {
		cfg.Webhook.TimeoutMS = Default().Webhook.TimeoutMS
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = Default().APIVersion
	}
	if cfg.Kind == "" {
		cfg.Kind = Default().Kind
	}
}

// Validate rejects values no run could use.
func (c ToolkitConfig) Validate() error {
	names := make([]string, 0, len(c.Families))
	for name := range c.Families {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := measurement.Lookup(name); !ok {
			return fmt.Errorf("families: unknown fault family %q", name)
		}
		o := c.Families[name]
		if o.NoiseScale != nil && *o.NoiseScale < 0 {
			return fmt.Errorf("families.%s.noise_scale must be >= 0", name)
		}
		if o.ProcessScale != nil && *o.ProcessScale < 0 {
			return fmt.Errorf("families.%s.process_scale must be >= 0", name)
		}
	}
	if _, err := identification.ParseNormalization(c.Gate.Normalization); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter %q (expected none|stdout|otlp)", c.Tracing.Exporter)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q (expected text|json)", c.Logging.Format)
	}
	if _, err := webhook.ParseFormat(c.Webhook.Format); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if c.Webhook.MaxPerSecond < 0 {
		return fmt.Errorf("webhook.max_per_second must be >= 0")
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("webhook.url is required when the webhook is enabled")
	}
	return nil
}

// ResolveFamilies resolves the selected built-in families with the configured
// covariance overrides applied.
func (c ToolkitConfig) ResolveFamilies(names []string) ([]measurement.Family, error) {
	selected, err := measurement.Select(names)
	if err != nil {
		return nil, err
	}
	overrides := make(map[string]FamilyOverride, len(c.Families))
	for name, o := range c.Families {
		if f, ok := measurement.Lookup(name); ok {
			overrides[f.Slug] = o
		}
	}
	for i, f := range selected {
		if o, ok := overrides[f.Slug]; ok {
			selected[i] = f.WithOverrides(o.NoiseScale, o.ProcessScale)
		}
	}
	return selected, nil
}

// Normalization returns the parsed gate normalization.
func (c ToolkitConfig) Normalization() identification.Normalization {
	n, err := identification.ParseNormalization(c.Gate.Normalization)
	if err != nil {
		return identification.NormalizationNone
	}
	return n
}

// NewLogger builds a logrus logger from the logging section.
func (c ToolkitConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(c.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// NewWebhook returns the notice exporter, or nil when delivery is disabled.
func (c ToolkitConfig) NewWebhook() *webhook.Exporter {
	if !c.Webhook.Enabled || c.Webhook.URL == "" {
		return nil
	}
	exporter := webhook.New(c.Webhook.URL, c.Webhook.Secret, webhook.Format(c.Webhook.Format), c.Webhook.TimeoutMS)
	if c.Webhook.MaxPerSecond > 0 {
		exporter.Limiter = webhook.NewRateLimiter(c.Webhook.MaxPerSecond)
	}
	return exporter
}
