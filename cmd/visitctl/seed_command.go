package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/seed"
)

func newSeedCommand(seedFile *string) *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Validate and show the steps a new visit starts with",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := seed.Load(*seedFile)
			if err != nil {
				return err
			}
			if dump {
				out, err := yaml.Marshal(seed.File{Steps: steps})
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSeedTable(steps))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "yaml", false, "Print the seed as YAML instead of a table")
	return cmd
}

func renderSeedTable(steps []models.QueueStep) string {
	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		rows = append(rows, []string{
			step.ID,
			step.Label,
			string(step.Type),
			strings.TrimSpace(strings.Join([]string{step.Location, step.Floor, step.Wing}, " ")),
			step.Ticket,
			strconv.Itoa(step.WaitMinutes),
			strings.Join(step.Dependencies, ", "),
		})
	}
	return renderTable(
		[]string{"ID", "Label", "Type", "Location", "Ticket", "Wait (min)", "Depends on"},
		rows,
		6,
	)
}
