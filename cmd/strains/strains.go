// Package strains implements the product commands: submit, rate, approve,
// rename, search, show, list, pending and ratings
package strains

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/strainbot/cmd/cmdutil"
	"github.com/tphakala/strainbot/internal/app"
	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/conf"
	"github.com/tphakala/strainbot/internal/moderation"
)

const defaultRatingsLimit = 10

// Commands returns the product commands
func Commands(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) []*cobra.Command {
	return []*cobra.Command{
		submitCommand(settings, build, actor),
		rateCommand(settings, build, actor),
		approveCommand(settings, build, actor),
		renameCommand(settings, build, actor),
		searchCommand(settings, build, actor),
		showCommand(settings, build, actor),
		listCommand(settings, build, actor),
		pendingCommand(settings, build, actor),
		ratingsCommand(settings, build),
	}
}

func submitCommand(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	var req moderation.SubmitRequest
	cmd := &cobra.Command{
		Use:   "submit <name>",
		Short: "Submit a new product for moderator approval",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = cmdutil.Join(args)
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				res, err := a.Moderation.Submit(ctx, actor.Actor(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "Submitted %q (%s) as %s, waiting for approval.\n", res.Name, res.Category, res.ID)
				if res.Pending > 0 {
					_, _ = fmt.Fprintf(out, "%d products are pending review.\n", res.Pending)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.HarvestDate, "harvest", "", "Harvest date (DD-MM-YYYY)")
	cmd.Flags().StringVar(&req.PackageDate, "package", "", "Package date (DD-MM-YYYY)")
	cmd.Flags().StringVarP(&req.Category, "category", "c", "", "Category: flower, hash or rosin")
	cmd.Flags().StringVarP(&req.Producer, "producer", "p", "", "Producer name")
	_ = cmd.MarkFlagRequired("harvest")
	_ = cmd.MarkFlagRequired("package")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func rateCommand(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "rate <id|name> <1-10>",
		Short: "Rate an approved product",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[len(args)-1])
			if err != nil {
				return fmt.Errorf("rating must be a whole number between 1 and 10")
			}
			req := moderation.RateRequest{
				Identifier: cmdutil.Join(args[:len(args)-1]),
				Value:      value,
				Category:   category,
			}
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				item, err := a.Moderation.Rate(ctx, actor.Actor(), req)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rated %s %d/10. New average %.2f from %d ratings.\n",
					item.Name, value, item.AverageRating, item.TotalRatings)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only match products in this category")
	return cmd
}

func approveCommand(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id|name>",
		Short: "Approve a pending product (moderators only)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				item, err := a.Moderation.Approve(ctx, actor.Actor(), cmdutil.Join(args))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Approved %s (%s).\n", item.Name, item.ID)
				return nil
			})
		},
	}
}

func renameCommand(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <new name>",
		Short: "Rename a product (moderators only)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				item, err := a.Moderation.Rename(ctx, actor.Actor(), args[0], cmdutil.Join(args[1:]))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s.\n", item.ID, item.Name)
				return nil
			})
		},
	}
}

func searchCommand(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search products by name, producer or id; * and ? are wildcards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				items, err := a.Moderation.Search(ctx, actor.Actor(), cmdutil.Join(args), category)
				if err != nil {
					return err
				}
				cmdutil.PrintItems(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only match products in this category")
	return cmd
}

func showCommand(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show product details",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				item, err := a.Moderation.GetByID(ctx, actor.Actor(), cmdutil.Join(args), category)
				if err != nil {
					return err
				}
				cmdutil.PrintItem(cmd.OutOrStdout(), item)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only match products in this category")
	return cmd
}

func listCommand(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approved products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				items, err := a.Moderation.ListApproved(ctx, actor.Actor(), category)
				if err != nil {
					return err
				}
				cmdutil.PrintItems(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only list products in this category")
	return cmd
}

func pendingCommand(settings *conf.Settings, build *buildinfo.Context, actor *cmdutil.ActorFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List products waiting for approval (moderators only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				items, err := a.Moderation.ListPending(ctx, actor.Actor())
				if err != nil {
					return err
				}
				cmdutil.PrintItems(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
}

func ratingsCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ratings <id>",
		Short: "Show the newest ratings of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				ratings, err := a.Moderation.ItemRatings(ctx, args[0], limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(ratings) == 0 {
					_, _ = fmt.Fprintln(out, "No ratings yet.")
					return nil
				}
				for _, r := range ratings {
					_, _ = fmt.Fprintf(out, "%2d/10  %-20s %s\n", r.Value, r.DisplayName(), r.RatedAt)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultRatingsLimit, "Number of ratings to show")
	return cmd
}
