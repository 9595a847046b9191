package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/identification"
)

func familiesCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the fault families with their configured gate parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			families, err := cfg.ResolveFamilies(nil)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tKEY\tDIM\tNOISE\tPROCESS\tTHRESHOLD\tMARKER")
			for _, f := range families {
				fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%g\t%.4f\t%s\n",
					f.Slug, f.Key, f.Dimension(), f.NoiseScale, f.ProcessScale,
					identification.GateThreshold(f.Dimension(), identification.WindowSize), f.DirMarker)
			}
			return w.Flush()
		},
	}
}
