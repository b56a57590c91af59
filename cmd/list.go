package cmd

import (
	"fmt"
	"strings"

	"github.com/eddiedunn/moltest/internal/discovery"
	"github.com/eddiedunn/moltest/internal/orchestrator"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type listOptions struct {
	keyword   string
	scenarios []string
	quiet     bool
}

func newListCmd(g *globalOptions) *cobra.Command {
	o := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the discovered scenarios",
		Long: `Lists every RunID below the project root that the selection flags would
run, with its role, scenario, execution directory and tags. Nothing is run.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, g)
		},
	}
	cmd.Flags().StringVarP(&o.keyword, "keyword", "k", "", "only list scenarios matching the keyword expression")
	cmd.Flags().StringSliceVarP(&o.scenarios, "scenario", "s", nil, `comma separated RunIDs or role:scenario ids, or "all"`)
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "print only the RunIDs")
	return cmd
}

func (o *listOptions) run(cmd *cobra.Command, g *globalOptions) error {
	root, err := g.projectRoot()
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Config{
		Discoverer: discovery.NewDiscoverer(g.cfg.IgnorePatterns()),
		Activity:   newActivity(cmd.ErrOrStderr(), g.verbosity, " Discovering scenarios..."),
	})
	sel, err := orch.Select(orchestrator.Options{
		Root:      root,
		Keyword:   o.keyword,
		Scenarios: o.scenarios,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.quiet {
		for _, id := range sel.RunIDs() {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	if len(sel.Runs) == 0 {
		fmt.Fprintln(out, "No scenarios match the selection.")
		return nil
	}

	rows := make([]table.Row, 0, len(sel.Runs))
	for _, run := range sel.Runs {
		dir := run.Scenario.Directory
		if rel, ok := relativeTo(root, dir); ok {
			dir = rel
		}
		rows = append(rows, table.Row{
			run.ID,
			orDash(run.Scenario.Role),
			run.Scenario.Name,
			dir,
			orDash(strings.Join(run.Scenario.Tags, ",")),
		})
	}
	if err := printTable(out, table.Row{"ID", "Role", "Scenario", "Directory", "Tags"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d runs selected\n", len(sel.Runs), len(sel.Discovery.Runs))
	return nil
}
