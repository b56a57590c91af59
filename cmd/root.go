package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/eddiedunn/moltest/internal/config"
	"github.com/eddiedunn/moltest/pkg/logging"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command and the
// configuration loaded from them.
type globalOptions struct {
	configPath string
	root       string
	verbosity  int
	noColor    bool
	logFormat  string

	cfg config.MoltestConfig
}

// projectRoot returns the absolute project root.
func (g *globalOptions) projectRoot() (string, error) {
	root, err := filepath.Abs(g.root)
	if err != nil {
		return "", usageErrorf("invalid --root %q: %v", g.root, err)
	}
	return root, nil
}

// rootRelative resolves p against the project root unless it is absolute.
func (g *globalOptions) rootRelative(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return p, nil
	}
	root, err := g.projectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, p), nil
}

// rootCmd represents the base command for the moltest application.
var rootCmd = newRootCmd()

// newRootCmd builds the full command tree.
func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "moltest",
		Short: "Discover and run Molecule scenarios",
		Long: `moltest finds every Molecule scenario below a project root, expands
parameterized scenarios, runs the selected ones sequentially or in parallel
and reports the results on the console and in JSON, Markdown or JUnit files.

Results are cached so that --rerun-failed only runs what failed last time.`,
		// Errors are printed once by Execute with the matching exit code.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.init(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/moltest/config.yaml)")
	cmd.PersistentFlags().StringVar(&g.root, "root", ".", "project root to discover scenarios in")
	cmd.PersistentFlags().CountVarP(&g.verbosity, "verbose", "v", "increase verbosity (-v shows run output when each run ends, -vv streams it)")
	cmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", string(logging.FormatText), "log output format (text or json)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.AddCommand(
		newRunCmd(g),
		newListCmd(g),
		newShowCacheCmd(g),
		newClearCacheCmd(g),
		newHistoryCmd(g),
		newVersionCmd(),
	)
	return cmd
}

func (g *globalOptions) init(logOut io.Writer) error {
	format := logging.Format(g.logFormat)
	if format != logging.FormatText && format != logging.FormatJSON {
		return usageErrorf("--log-format must be text or json, got %q", g.logFormat)
	}
	logging.InitWithFormat(logging.LevelFromVerbosity(g.verbosity), logOut, format)

	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return &usageError{err: err}
	}
	g.cfg = cfg
	return nil
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application. It runs the
// root command and exits with the code matching the returned error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "moltest version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	os.Exit(exitCode(err))
}

func printError(w io.Writer, err error) {
	if msg := errorMessage(err); msg != "" {
		fmt.Fprintf(w, "Error: %s\n", msg)
	}
}
