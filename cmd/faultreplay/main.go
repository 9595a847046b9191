package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/faultreplay"
	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/measurement"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "faultreplay: %v\n", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	opts := faultreplay.DefaultOptions()
	var (
		out      string
		families []string
	)
	cmd := &cobra.Command{
		Use:   "faultreplay",
		Short: "Write a deterministic synthetic simulation database and truth trace",
		Example: `faultreplay --out data --truth PanelAngleFault.stuck.0.3
mbfid run --sim-dir data/sims data/truth/example_1/telemetry.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := measurement.Select(families)
			if err != nil {
				return err
			}
			db, err := faultreplay.Generate(selected, opts)
			if err != nil {
				return err
			}
			layout, err := faultreplay.WriteDatabase(out, db)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d simulations to %s\n", len(db.Modes), layout.SimDir)
			fmt.Printf("truth %s (%s, %d faults) at %s\n", db.ExampleID, db.TruthDir, len(db.Faults), layout.TruthPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "artifacts/mbfid", "output root")
	cmd.Flags().StringSliceVar(&families, "families", nil, "fault families to generate (default all)")
	cmd.Flags().IntVar(&opts.Steps, "steps", opts.Steps, "samples per trajectory")
	cmd.Flags().Int64Var(&opts.StepNS, "step-ns", opts.StepNS, "sample period in nanoseconds")
	cmd.Flags().IntVar(&opts.OnsetStep, "onset", opts.OnsetStep, "first faulty sample")
	cmd.Flags().Float64Var(&opts.Separation, "separation", opts.Separation, "fault offset in noise standard deviations")
	cmd.Flags().StringVar(&opts.Truth, "truth", "", "simulation copied as truth (default nominal)")
	cmd.Flags().Float64Var(&opts.TruthNoise, "truth-noise", 0, "truth noise in noise standard deviations")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "truth noise seed")
	cmd.Flags().StringVar(&opts.ExampleID, "example", opts.ExampleID, "truth example id")
	return cmd
}
