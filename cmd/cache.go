package cmd

import (
	"fmt"
	"strconv"

	"github.com/eddiedunn/moltest/internal/cache"
	"github.com/eddiedunn/moltest/internal/config"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// cacheStore opens the result cache named by --cache-file, the config file
// or the default, in that order.
func cacheStore(cmd *cobra.Command, g *globalOptions, flagValue string) (*cache.Store, error) {
	name := g.cfg.CacheFile
	if cmd.Flags().Changed("cache-file") {
		name = flagValue
	}
	if name == "" {
		name = config.DefaultCacheFile
	}
	path, err := g.rootRelative(name)
	if err != nil {
		return nil, err
	}
	return cache.NewStore(path), nil
}

func newShowCacheCmd(g *globalOptions) *cobra.Command {
	var cacheFile string

	cmd := &cobra.Command{
		Use:   "show-cache",
		Short: "Show the cached result of every scenario",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cacheStore(cmd, g, cacheFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			record, err := store.Load()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %v\n", err)
			}
			entries := store.Entries()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No cached results in %s\n", store.Path())
				return nil
			}

			rows := make([]table.Row, 0, len(entries))
			for _, e := range entries {
				exitCode := "-"
				if e.ExitCode != nil {
					exitCode = strconv.Itoa(*e.ExitCode)
				}
				rows = append(rows, table.Row{
					e.ID,
					string(e.Status),
					strconv.FormatFloat(e.Duration, 'f', 3, 64),
					exitCode,
					orDash(e.UpdatedAt),
				})
			}
			if err := printTable(out, table.Row{"ID", "Status", "Duration (s)", "Exit Code", "Updated"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d cached results in %s, last run %s\n", len(entries), store.Path(), orDash(record.LastRun))
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheFile, "cache-file", "", "result cache file, relative to the project root")
	return cmd
}

func newClearCacheCmd(g *globalOptions) *cobra.Command {
	var cacheFile string

	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Delete the result cache",
		Long:  `Deletes the result cache file, so that the next --rerun-failed runs everything.`,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cacheStore(cmd, g, cacheFile)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🧹 Cleared %s\n", store.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheFile, "cache-file", "", "result cache file, relative to the project root")
	return cmd
}
