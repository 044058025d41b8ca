// Package recent implements the recent ratings and submissions feeds
package recent

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/strainbot/cmd/cmdutil"
	"github.com/tphakala/strainbot/internal/app"
	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/conf"
	"github.com/tphakala/strainbot/internal/datastore"
)

// Command creates the recent command and its subcommands
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recent activity",
	}
	cmd.PersistentFlags().IntVarP(&limit, "limit", "n", 0, "Number of entries to show (default status.recentlimit)")

	var all bool
	ratings := &cobra.Command{
		Use:   "ratings",
		Short: "Show the newest ratings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				var views []datastore.RatingView
				var err error
				if all {
					views, err = a.Moderation.LastRatings(ctx, feedLimit(limit, settings))
				} else {
					views, err = a.Moderation.RecentRatings(ctx, feedLimit(limit, settings))
				}
				if err != nil {
					return err
				}
				printRatings(cmd.OutOrStdout(), views)
				return nil
			})
		},
	}
	ratings.Flags().BoolVar(&all, "all", false, "Include ratings of products that are not approved")

	submissions := &cobra.Command{
		Use:   "submissions",
		Short: "Show the newest submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				subs, err := a.Moderation.LastSubmissions(ctx, feedLimit(limit, settings))
				if err != nil {
					return err
				}
				printSubmissions(cmd.OutOrStdout(), subs)
				return nil
			})
		},
	}

	cmd.AddCommand(ratings, submissions)
	return cmd
}

// feedLimit falls back to the configured limit, which is only known after
// the flags were declared
func feedLimit(limit int, settings *conf.Settings) int {
	if limit > 0 {
		return limit
	}
	return settings.Status.RecentLimit
}

func printRatings(w io.Writer, views []datastore.RatingView) {
	if len(views) == 0 {
		_, _ = fmt.Fprintln(w, "No ratings yet.")
		return
	}
	for _, v := range views {
		_, _ = fmt.Fprintf(w, "%s  %-30s %2d/10  %-20s %s\n", v.ItemID, v.ItemName, v.Value, v.Display, v.RatedAt)
	}
}

func printSubmissions(w io.Writer, subs []datastore.SubmissionRecord) {
	if len(subs) == 0 {
		_, _ = fmt.Fprintln(w, "No submissions yet.")
		return
	}
	for _, s := range subs {
		_, _ = fmt.Fprintf(w, "%s  %-30s %-7s %-20s %-20s %s\n", s.ItemID, s.Name, s.Category, s.Producer, s.DisplayName(), s.DateAdded)
	}
}
