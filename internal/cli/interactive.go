package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/j-veylop/team-flex-credits/internal/logger"
	"github.com/j-veylop/team-flex-credits/internal/mapping"
	"github.com/j-veylop/team-flex-credits/internal/services"
	"github.com/j-veylop/team-flex-credits/internal/ui/wizard"
)

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"wizard"},
		Short:   "Choose a report step by step",
		Long: "Prompt for the analysis type, date range, worker count and mapping file, " +
			"run the report, and offer to run another.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInteractive(cmd)
		},
	}
}

func (a *app) runInteractive(cmd *cobra.Command) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	mgr, err := a.manager(cmd)
	if err != nil {
		return err
	}
	defer closeManager(mgr)

	term := wizard.IO{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
	printer := mgr.Printer()
	ctx := cmd.Context()

	for {
		sel, err := wizard.Run(wizard.Options{
			Now:            a.clock.Now(),
			LatestMapping:  mapping.FindLatest(a.cfg.MappingSearchDirs()...),
			DefaultWorkers: a.cfg.DefaultWorkers,
		}, term)
		if errors.Is(err, wizard.ErrCancelled) {
			printer.Notice("Goodbye!")
			return nil
		}
		if err != nil {
			return err
		}

		_, err = mgr.Run(ctx, services.Request{
			Kind:        sel.Kind,
			Period:      sel.Period,
			MappingFile: sel.MappingFile,
			Workers:     sel.Workers,
			Chart:       true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Error("analysis failed", "kind", sel.Kind, "error", err)
		}

		again, err := wizard.Confirm("Run another analysis?", false, term)
		if err != nil {
			return err
		}
		if !again {
			printer.Notice("Goodbye!")
			return nil
		}
	}
}
