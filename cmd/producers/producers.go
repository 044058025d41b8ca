// Package producers implements the producer registry commands
package producers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/strainbot/cmd/cmdutil"
	"github.com/tphakala/strainbot/internal/app"
	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/conf"
)

// Command creates the producers command and its subcommands
func Command(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "producers",
		Aliases: []string{"producer"},
		Short:   "Manage the list of known producers",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known producers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				names, err := a.Moderation.ListProducers(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a producer (moderators only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				name, err := a.Moderation.AddProducer(ctx, actor.Actor(), cmdutil.Join(args))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added producer %s.\n", name)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a producer (moderators only)",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := cmdutil.Join(args)
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				if err := a.Moderation.RemoveProducer(ctx, actor.Actor(), name); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed producer %s.\n", name)
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
