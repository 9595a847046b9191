package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/attribution"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/cdgate"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/results"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/simdb"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/telemetry"
)

func evaluateCmd(load configLoader) *cobra.Command {
	var (
		resultsDir string
		truthDir   string
		out        string
		gate       gateFlags
	)
	cmd := &cobra.Command{
		Use:   "evaluate --truth-dir <dir> [example-id]...",
		Short: "Score stored results against the fault injection logs",
		Long: `Score result CSVs against <truth-dir>/<example>/faults.csv. Without
example ids every CSV of the results directory is evaluated.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("results-dir") {
				resultsDir = cfg.Output.ResultsDir
			}
			log := cfg.NewLogger()

			examples := args
			if len(examples) == 0 {
				examples, err = resultExamples(resultsDir)
				if err != nil {
					return err
				}
			}

			var reports []schema.EvaluationReport
			for _, id := range examples {
				table, err := results.LoadCSV(filepath.Join(resultsDir, id+".csv"))
				if err != nil {
					return err
				}
				events, err := attribution.LoadFaultLog(filepath.Join(truthDir, id, attribution.FaultsFile))
				if err != nil {
					return err
				}
				truth, err := telemetry.LoadCSV(filepath.Join(truthDir, id, simdb.TelemetryFile))
				if err != nil {
					if !errors.Is(err, os.ErrNotExist) {
						return err
					}
					truth = nil
				}
				reports = append(reports, attribution.Evaluate(id, table, events, truth, log)...)
			}
			if reports == nil {
				reports = []schema.EvaluationReport{}
			}
			if err := schema.ValidateEvaluationReports(reports); err != nil {
				return err
			}

			if out != "" {
				if err := writeReports(out, reports); err != nil {
					return err
				}
			}
			printReports(reports)

			result := cdgate.EvaluateReports(reports, gate.thresholds(cmd))
			if !result.Pass {
				return fmt.Errorf("evaluation gate failed: %s", result.Summary())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "directory holding <example>.csv results (default from config)")
	cmd.Flags().StringVar(&truthDir, "truth-dir", "", "directory holding <example>/faults.csv")
	cmd.Flags().StringVar(&out, "out", "", "JSON file receiving the evaluation reports")
	gate.register(cmd)
	_ = cmd.MarkFlagRequired("truth-dir")
	return cmd
}

type gateFlags struct {
	minAccuracy float64
	minTPR      float64
	maxFPR      float64
	maxLatency  int
}

func (g *gateFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&g.minAccuracy, "min-accuracy", 0, "fail when accuracy is below this value")
	cmd.Flags().Float64Var(&g.minTPR, "min-identification-tpr", 0, "fail when any identification TPR is below this value")
	cmd.Flags().Float64Var(&g.maxFPR, "max-detection-fpr", 0, "fail when any detection FPR exceeds this value")
	cmd.Flags().IntVar(&g.maxLatency, "max-latency-steps", 0, "fail when any detection latency exceeds this many steps")
}

func (g *gateFlags) thresholds(cmd *cobra.Command) cdgate.ReportThresholds {
	var th cdgate.ReportThresholds
	flags := cmd.Flags()
	if flags.Changed("min-accuracy") {
		th.MinAccuracy = &g.minAccuracy
	}
	if flags.Changed("min-identification-tpr") {
		th.MinIdentificationTPR = &g.minTPR
	}
	if flags.Changed("max-detection-fpr") {
		th.MaxDetectionFPR = &g.maxFPR
	}
	if flags.Changed("max-latency-steps") {
		th.MaxLatencySteps = &g.maxLatency
	}
	return th
}

func resultExamples(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read results dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(ids)
	return ids, nil
}

func writeReports(path string, reports []schema.EvaluationReport) error {
	payload, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	return nil
}

func printReports(reports []schema.EvaluationReport) {
	for _, r := range reports {
		status := "MISS"
		if r.Correct {
			status = "OK"
		}
		fmt.Printf("[%s] %s %s %s: detection tpr=%.3f fpr=%.3f latency=%d, identification tpr=%.3f dominant=%q\n",
			status, r.ExampleID, r.Key, r.TrueFault,
			r.Detection.TPR, r.Detection.FPR, r.Detection.Latency,
			r.Identification.TPR, r.Identification.Dominant)
	}

	matrix := attribution.BuildConfusionMatrix(reports)
	keys := make([]attribution.MatrixKey, 0, len(matrix))
	for k := range matrix {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Actual != keys[j].Actual {
			return keys[i].Actual < keys[j].Actual
		}
		return keys[i].Predicted < keys[j].Predicted
	})
	if len(keys) > 0 {
		fmt.Println()
		fmt.Println("confusion:")
		for _, k := range keys {
			fmt.Printf("- %s -> %s: %d\n", k.Actual, k.Predicted, matrix[k])
		}
	}
	fmt.Printf("\naccuracy: %.3f (%d reports)\n", attribution.Accuracy(reports), len(reports))
}
