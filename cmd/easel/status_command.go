package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.resolveClient()
			if err != nil {
				return err
			}
			status, err := client.Status()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			headline := fmt.Sprintf("Daemon running (pid %d)", status.PID)
			if isTerminal(out) {
				headline = ansiGreen + headline + ansiReset
			}
			fmt.Fprintln(out, headline)
			fmt.Fprintf(out, "Active generations: %d of %d\n", status.ActiveLocks, status.MaxActive)
			if status.Draining {
				fmt.Fprintln(out, "Queue drain in progress")
			}

			if len(status.QueueStats) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			statuses := make([]string, 0, len(status.QueueStats))
			for name := range status.QueueStats {
				statuses = append(statuses, name)
			}
			sort.Strings(statuses)
			rows := make([][]string, 0, len(statuses))
			for _, name := range statuses {
				rows = append(rows, []string{name, fmt.Sprintf("%d", status.QueueStats[name])})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
