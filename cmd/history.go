package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/eddiedunn/moltest/internal/history"
	"github.com/eddiedunn/moltest/internal/reporter"
	textutil "github.com/eddiedunn/moltest/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const historyTimeLayout = "2006-01-02 15:04:05"

func openHistory(g *globalOptions) (*history.Store, error) {
	path, err := g.rootRelative(g.cfg.History.Path)
	if err != nil {
		return nil, err
	}
	return history.Open(path)
}

func newHistoryCmd(g *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `Shows the runs recorded with --history, newest first. Use
"moltest history show RUN_ID" to see the outcomes of one run; any unique
prefix of the id is accepted.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return usageErrorf("--limit must not be negative, got %d", limit)
			}
			store, err := openHistory(g)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet. Run with --history to record one.")
				return nil
			}

			rows := make([]table.Row, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, table.Row{
					shortID(r.ID),
					r.StartedAt.Local().Format(historyTimeLayout),
					reporter.Seconds(r.Duration()).String(),
					r.Summary.Total,
					r.Summary.Passed,
					r.Summary.Failed,
					r.Summary.Skipped,
					r.Summary.Errored,
					r.ExitCode,
				})
			}
			return printTable(out, table.Row{"Run", "Started", "Duration (s)", "Total", "Passed", "Failed", "Skipped", "Error", "Exit"}, rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show (0 shows all)")
	cmd.AddCommand(newHistoryShowCmd(g))
	return cmd
}

func newHistoryShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show the outcomes of one recorded run",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(g)
			if err != nil {
				return err
			}
			defer store.Close()

			run, outcomes, err := store.GetRun(cmd.Context(), args[0])
			if errors.Is(err, history.ErrRunNotFound) {
				return usageErrorf("%v", err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\nRoot: %s\nStarted: %s\nExit status: %d\n\n",
				run.ID, run.Root, run.StartedAt.Local().Format(historyTimeLayout), run.ExitCode)

			rows := make([]table.Row, 0, len(outcomes))
			for _, o := range outcomes {
				exitCode := "-"
				if o.ExitCode != nil {
					exitCode = strconv.Itoa(*o.ExitCode)
				}
				rows = append(rows, table.Row{o.ID, string(o.Status), reporter.Seconds(o.Duration).String(), exitCode, orDash(textutil.SingleLine(o.Reason, textutil.DefaultCellWidth))})
			}
			if err := printTable(out, table.Row{"ID", "Status", "Duration (s)", "Exit Code", "Reason"}, rows); err != nil {
				return err
			}

			return reporter.NewConsole(out, colorEnabled(out, g.noColor)).Report(reporter.Result{
				Outcomes:  outcomes,
				Timestamp: run.StartedAt,
				Duration:  run.Duration(),
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
