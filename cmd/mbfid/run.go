package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/diagnosis"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/metrics"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/results"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/toolkitcfg"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/tracing"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/webhook"
)

type runFlags struct {
	simDir          string
	families        []string
	normalization   string
	resultsDir      string
	summaryPath     string
	sqlitePath      string
	metricsTextfile string
	metricsAddr     string
	logLevel        string
	webhookURL      string
	webhookFormat   string
}

func runCmd(load configLoader) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run --sim-dir <dir> <truth.csv>...",
		Short: "Label every truth timestamp of one or more examples",
		Example: `mbfid run --sim-dir data/sims data/truth/example_1/telemetry.csv
mbfid run --config config/mbfid.yaml --sim-dir data/sims --families css,panel_angle data/truth/*/telemetry.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, &cfg, f)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return execRun(cmd.Context(), cfg, f, args)
		},
	}

	cmd.Flags().StringVar(&f.simDir, "sim-dir", "", "simulation database directory")
	cmd.Flags().StringSliceVar(&f.families, "families", nil, "fault families to run (default all)")
	cmd.Flags().StringVar(&f.normalization, "normalization", "", "gate normalization: none|role_weighted")
	cmd.Flags().StringVar(&f.resultsDir, "results-dir", "", "directory for per-example result CSVs")
	cmd.Flags().StringVar(&f.summaryPath, "summary", "", "JSONL file receiving one run summary per example")
	cmd.Flags().StringVar(&f.sqlitePath, "sqlite", "", "SQLite results store")
	cmd.Flags().StringVar(&f.metricsTextfile, "metrics-textfile", "", "Prometheus textfile written after the run")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics on this address while the run is in progress")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level override")
	cmd.Flags().StringVar(&f.webhookURL, "webhook-url", "", "deliver fault notices to this endpoint")
	cmd.Flags().StringVar(&f.webhookFormat, "webhook-format", "", "webhook payload format: generic|pagerduty|opsgenie")
	_ = cmd.MarkFlagRequired("sim-dir")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *toolkitcfg.ToolkitConfig, f runFlags) {
	flags := cmd.Flags()
	if flags.Changed("normalization") {
		cfg.Gate.Normalization = f.normalization
	}
	if flags.Changed("results-dir") {
		cfg.Output.ResultsDir = f.resultsDir
	}
	if flags.Changed("summary") {
		cfg.Output.SummaryPath = f.summaryPath
	}
	if flags.Changed("sqlite") {
		cfg.Output.SQLitePath = f.sqlitePath
	}
	if flags.Changed("metrics-textfile") {
		cfg.Output.MetricsTextfile = f.metricsTextfile
	}
	if flags.Changed("metrics-addr") {
		cfg.Output.MetricsAddr = f.metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if flags.Changed("webhook-url") {
		cfg.Webhook.Enabled = f.webhookURL != ""
		cfg.Webhook.URL = f.webhookURL
	}
	if flags.Changed("webhook-format") {
		cfg.Webhook.Format = f.webhookFormat
	}
}

func execRun(ctx context.Context, cfg toolkitcfg.ToolkitConfig, f runFlags, truths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := cfg.NewLogger()

	shutdown, err := tracing.Setup(ctx, cfg.Tracing, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.WithError(serr).Warn("tracer shutdown failed")
		}
	}()

	families, err := cfg.ResolveFamilies(f.families)
	if err != nil {
		return err
	}
	recorder := metrics.NewRecorder()
	if cfg.Output.MetricsAddr != "" {
		srv, err := metrics.Serve(cfg.Output.MetricsAddr, recorder, log)
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer srv.Shutdown(context.Background())
		log.WithField("addr", srv.Addr()).Info("serving metrics")
	}
	runner := &diagnosis.Runner{
		Families:      families,
		Normalization: cfg.Normalization(),
		Log:           log,
		Recorder:      recorder,
	}

	notifier := cfg.NewWebhook()
	if notifier != nil {
		log.WithFields(logrus.Fields{"url": cfg.Webhook.URL, "format": cfg.Webhook.Format}).Info("webhook notices enabled")
	}

	var store *results.Store
	if cfg.Output.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create sqlite directory: %w", err)
		}
		store, err = results.OpenStore(cfg.Output.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var (
		summaryFile *os.File
		summaries   *json.Encoder
	)
	if cfg.Output.SummaryPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output.SummaryPath), 0o755); err != nil {
			return fmt.Errorf("create summary directory: %w", err)
		}
		file, err := os.Create(cfg.Output.SummaryPath)
		if err != nil {
			return fmt.Errorf("create summary file: %w", err)
		}
		defer file.Close()
		summaryFile = file
		summaries = json.NewEncoder(file)
	}

	for _, truthPath := range truths {
		res, err := runner.Run(ctx, f.simDir, truthPath)
		if err != nil {
			return fmt.Errorf("%s: %w", truthPath, err)
		}
		path, err := res.Table.WriteCSV(cfg.Output.ResultsDir, res.ExampleID)
		if err != nil {
			return err
		}
		res.Summary.ResultsPath = path

		if err := schema.ValidateRunSummary(res.Summary); err != nil {
			return fmt.Errorf("run summary %s: %w", res.ExampleID, err)
		}
		if summaries != nil {
			if err := summaries.Encode(res.Summary); err != nil {
				return fmt.Errorf("encode summary: %w", err)
			}
		}
		if store != nil {
			rec := results.RunRecord{
				RunID:     res.RunID,
				ExampleID: res.ExampleID,
				TruthPath: truthPath,
				Steps:     res.Table.Len(),
				CreatedAt: res.Summary.GeneratedAt,
			}
			if err := store.SaveRun(ctx, rec, res.Table); err != nil {
				return err
			}
		}

		if notifier != nil {
			notices := webhook.Notices(res.Summary, res.Table)
			if err := notifier.SendAll(ctx, notices); err != nil {
				log.WithError(err).WithField("example", res.ExampleID).Warn("fault notice delivery failed")
			} else if len(notices) > 0 {
				log.WithFields(logrus.Fields{"example": res.ExampleID, "notices": len(notices)}).Info("fault notices delivered")
			}
		}

		log.WithFields(logrus.Fields{
			"run_id":  res.RunID,
			"example": res.ExampleID,
			"results": path,
		}).Info("results written")
		for _, fam := range res.Summary.Families {
			fmt.Printf("%s\t%s\t%s\n", res.ExampleID, fam.Key, fam.FinalLabel)
		}
	}

	if summaryFile != nil {
		if err := closeSummaries(summaryFile); err != nil {
			return err
		}
	}
	if cfg.Output.MetricsTextfile != "" {
		if err := recorder.WriteTextfile(cfg.Output.MetricsTextfile); err != nil {
			return err
		}
	}
	return nil
}

// closeSummaries flushes and closes the summary file. The deferred Close only
// covers early returns.
func closeSummaries(file *os.File) error {
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync summary file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close summary file: %w", err)
	}
	return nil
}
