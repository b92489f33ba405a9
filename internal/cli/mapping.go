package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/j-veylop/team-flex-credits/internal/mapping"
	"github.com/j-veylop/team-flex-credits/internal/ui/styles"
)

func newMappingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Manage the email to API key mapping file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newMappingGenerateCmd(a), newMappingShowCmd(a))
	return cmd
}

func newMappingGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Write a mapping file from users active in the last 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			mgr, err := a.manager(cmd)
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			path, err := mgr.GenerateMapping(cmd.Context())
			if err != nil {
				return err
			}
			mgr.Printer().Saved(path)
			return nil
		},
	}
}

func newMappingShowCmd(a *app) *cobra.Command {
	var jsonFile string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the users in a mapping file",
		Long:  "Show the users in --json-file, or in the latest mapping file found in the output directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := jsonFile
			if path == "" {
				path = mapping.FindLatest(a.cfg.MappingSearchDirs()...)
			}
			if path == "" {
				return fmt.Errorf("%w in %v (run 'tfc mapping generate')", mapping.ErrNotFound, a.cfg.MappingSearchDirs())
			}

			users, err := mapping.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.TitleStyle.Render(filepath.Base(path)))
			fmt.Fprintf(out, "Path:  %s\nUsers: %d\n\n", path, len(users))
			for _, u := range users {
				fmt.Fprintf(out, "  %-40s %s\n", u.Email, maskKey(u.APIKey))
			}

			if all := mapping.FindAll(a.cfg.MappingSearchDirs()...); len(all) > 1 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, styles.SubTitleStyle.Render("Other mapping files"))
				for _, f := range all {
					if abs, _ := filepath.Abs(path); f != abs {
						fmt.Fprintf(out, "  %s\n", f)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jsonFile, "json-file", "", "Mapping file to show (default: latest)")
	return cmd
}

// maskKey keeps the first and last four characters of an API key.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
