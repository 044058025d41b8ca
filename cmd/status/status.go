// Package status prints the status board once
package status

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/strainbot/cmd/cmdutil"
	"github.com/tphakala/strainbot/internal/app"
	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/conf"
)

// Command creates the status command
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the top rated products and recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				sections, err := a.Board.Render(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(sections)
				}
				for i := range sections {
					_, _ = fmt.Fprintln(out, sections[i].Text())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the sections as JSON")
	return cmd
}
