package main

import (
	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/toolkitcfg"
)

// New returns the mbfid root command.
func New() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "mbfid",
		Short: "Model-based fault identification over simulated telemetry",
		Long: `Identify the operating mode of every fault family of a spacecraft
digital twin by comparing a truth trace against a database of simulated
nominal and faulty trajectories.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "toolkit config file (YAML)")

	load := func() (toolkitcfg.ToolkitConfig, error) {
		if configPath == "" {
			return toolkitcfg.Default(), nil
		}
		return toolkitcfg.Load(configPath)
	}
	cmd.AddCommand(runCmd(load), evaluateCmd(load), familiesCmd(load), gateCmd())
	return cmd
}

type configLoader func() (toolkitcfg.ToolkitConfig, error)
