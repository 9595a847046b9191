package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/cdgate"
)

func gateCmd() *cobra.Command {
	var (
		promURL    string
		timeout    time.Duration
		thresholds cdgate.MetricsThresholds
	)
	cmd := &cobra.Command{
		Use:   "gate --prometheus-url <url>",
		Short: "Gate a deployment on identification metrics scraped by Prometheus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			querier := &cdgate.HTTPQuerier{
				BaseURL: promURL,
				Client:  &http.Client{Timeout: timeout},
			}
			result := cdgate.EvaluateMetricsGate(cmd.Context(), querier, thresholds)
			payload, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal gate result: %w", err)
			}
			fmt.Println(string(payload))
			if !result.Pass {
				return fmt.Errorf("metrics gate failed: %s", result.Summary())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&promURL, "prometheus-url", "http://localhost:9090", "Prometheus base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "query timeout")
	cmd.Flags().Float64Var(&thresholds.MaxUnknownRatio, "max-unknown-ratio", 0.2, "maximum share of Unknown Mode labels")
	cmd.Flags().Float64Var(&thresholds.MaxDegenerateRatio, "max-degenerate-ratio", 0.01, "maximum share of diagonal covariance fallbacks")
	cmd.Flags().Float64Var(&thresholds.MaxRunErrors, "max-run-errors", 0, "maximum aborted family runs")
	return cmd
}
