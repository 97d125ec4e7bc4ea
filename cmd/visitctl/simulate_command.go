package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/seed"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/workflow"
)

type simulateOptions struct {
	mode     string
	ticks    int
	queueAll bool
}

func newSimulateCommand(seedFile *string) *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Check a patient in and advance the visit tick by tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := models.Mode(strings.ToUpper(opts.mode))
			if !mode.Valid() {
				return fmt.Errorf("unknown mode %q", opts.mode)
			}
			if opts.ticks <= 0 {
				return fmt.Errorf("ticks must be positive")
			}
			steps, err := seed.Load(*seedFile)
			if err != nil {
				return err
			}
			engine := workflow.New("simulation", steps, workflow.WithMode(mode))
			rows := simulate(engine, opts)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Tick", "Current", "Progress", "Queue #", "Ahead", "Wait", "Moved"},
				rows,
				1, 3, 5,
			))
			fmt.Fprintln(out, renderStatusTable(engine.Steps()))
			if engine.IsVisitComplete() {
				fmt.Fprintln(out, "Visit complete")
			} else {
				fmt.Fprintf(out, "Visit incomplete after %d ticks\n", opts.ticks)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", string(models.ModeLinear), "Queue discipline: LINEAR or MULTI_STREAM")
	cmd.Flags().IntVar(&opts.ticks, "ticks", 40, "Maximum number of advance ticks")
	cmd.Flags().BoolVar(&opts.queueAll, "queue-all", false, "Queue every available step before each tick")
	return cmd
}

// simulate joins the queue and ticks until the visit completes or the tick
// budget runs out. It returns one table row per applied tick.
func simulate(engine *workflow.Engine, opts simulateOptions) [][]string {
	engine.JoinQueue()
	rows := [][]string{}
	for tick := 1; tick <= opts.ticks && !engine.IsVisitComplete(); tick++ {
		if opts.queueAll {
			engine.QueueAllAvailable()
		}
		engine.Advance()
		changes := engine.DrainChanges()
		moved := describeChanges(changes)
		if moved == "" {
			continue
		}
		current := ""
		if step, ok := engine.CurrentStep(); ok {
			current = step.Label
		}
		info := engine.QueueInfo()
		rows = append(rows, []string{
			strconv.Itoa(tick),
			current,
			strconv.Itoa(engine.VisitProgress()) + "%",
			info.QueueNumber,
			strconv.Itoa(info.PeopleAhead),
			info.EstimatedWait,
			moved,
		})
	}
	return rows
}

func describeChanges(changes []workflow.Change) string {
	parts := []string{}
	for _, change := range changes {
		for _, t := range change.Transitions {
			parts = append(parts, fmt.Sprintf("%s %s>%s", t.StepID, t.From, t.To))
		}
	}
	return strings.Join(parts, "; ")
}

func renderStatusTable(steps []models.QueueStep) string {
	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		rows = append(rows, []string{step.ID, step.Label, string(step.Status)})
	}
	return renderTable([]string{"ID", "Label", "Status"}, rows)
}
