// Package cli wires the command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/j-veylop/team-flex-credits/internal/config"
	"github.com/j-veylop/team-flex-credits/internal/logger"
	"github.com/j-veylop/team-flex-credits/internal/services"
	"github.com/j-veylop/team-flex-credits/internal/version"
)

// app carries what every command shares.
type app struct {
	loadConfig  func() (*config.Config, error)
	clock       clockwork.Clock
	interactive func(cmd *cobra.Command) bool
	managerOpts []services.Option

	verbose bool
	cfg     *config.Config
}

func defaultApp() *app {
	return &app{
		loadConfig:  config.Load,
		clock:       clockwork.NewRealClock(),
		interactive: stdinIsTerminal,
	}
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewRootCmd builds the tfc command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultApp())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "tfc",
		Short: "Team flex credits reports",
		Long: "tfc queries the analytics API for every user in the team mapping file, " +
			"aggregates flex credit usage by day and language model, and writes CSV reports " +
			"with a console summary.\n\nRun without a subcommand on a terminal to start the interactive wizard.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.interactive(cmd) {
				return a.runInteractive(cmd)
			}
			return cmd.Help()
		},
	}

	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Enable debug logging")

	root.AddCommand(
		newReportCmd(a, reportDaily),
		newReportCmd(a, reportByModel),
		newReportCmd(a, reportBoth),
		newMonthlyCmd(a),
		newInteractiveCmd(a),
		newMappingCmd(a),
		newHistoryCmd(a),
	)

	root.Version = version.GetVersion()
	root.SetVersionTemplate(version.Info() + "\n")

	return root
}

// setup loads configuration and configures logging before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	level := logger.ParseLevel(cfg.LogLevel)
	if a.verbose {
		level = logger.ParseLevel("debug")
	}
	logger.Setup(logger.Options{
		Writer: cmd.ErrOrStderr(),
		File:   cfg.LogFile,
		Level:  level,
	})
	logger.Debug("configuration loaded", "output_dir", cfg.OutputDir, "history", cfg.HistoryEnabled)
	return nil
}

// manager creates a service manager writing to the command's output.
func (a *app) manager(cmd *cobra.Command) (*services.Manager, error) {
	opts := []services.Option{
		services.WithOutput(cmd.OutOrStdout()),
		services.WithClock(a.clock),
	}
	mgr, err := services.NewManager(a.cfg, append(opts, a.managerOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return mgr, nil
}

func closeManager(mgr *services.Manager) {
	if err := mgr.Close(); err != nil {
		logger.Warn("error closing services", "error", err)
	}
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}
