package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var seedFile string

	rootCmd := &cobra.Command{
		Use:           "visitctl",
		Short:         "Inspect visit seeds and simulate visit workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed-file", "", "YAML seed file (defaults to the built-in outpatient visit)")

	rootCmd.AddCommand(newSeedCommand(&seedFile))
	rootCmd.AddCommand(newSimulateCommand(&seedFile))
	return rootCmd
}
