// Package cmdutil holds helpers shared by the command line subcommands
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/strainbot/internal/app"
	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/conf"
	"github.com/tphakala/strainbot/internal/datastore"
	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/moderation"
)

// ActorFlags identify the user a command runs as
type ActorFlags struct {
	UserID   int64
	Username string
	Roles    []string
}

// Register adds the actor flags to cmd and its children
func (f *ActorFlags) Register(cmd *cobra.Command) {
	cmd.PersistentFlags().Int64Var(&f.UserID, "user-id", int64(os.Getuid()), "User id the command runs as")
	cmd.PersistentFlags().StringVar(&f.Username, "username", os.Getenv("USER"), "Display name recorded with submissions and ratings")
	cmd.PersistentFlags().StringSliceVar(&f.Roles, "role", nil, "Role ids held by the user (repeatable)")
}

// Actor returns the configured actor
func (f *ActorFlags) Actor() moderation.Actor {
	return moderation.Actor{UserID: f.UserID, Username: f.Username, RoleIDs: f.Roles}
}

// WithApp builds the application, runs fn and closes it again. The context
// is canceled on SIGINT and SIGTERM.
func WithApp(settings *conf.Settings, build *buildinfo.Context, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, settings, build, nil)
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)
	closeErr := a.Close()
	if runErr != nil {
		return UserError(runErr)
	}
	return closeErr
}

// UserError turns a rejection into an error whose text is the user message
func UserError(err error) error {
	var r *moderation.Rejection
	if errors.As(err, &r) {
		return errors.NewStd(r.Message)
	}
	return err
}

// PrintItem writes the details of one product
func PrintItem(w io.Writer, it datastore.Item) {
	_, _ = fmt.Fprintf(w, "%s  %s\n", it.ID, it.Name)
	_, _ = fmt.Fprintf(w, "  Status:    %s\n", it.Status)
	_, _ = fmt.Fprintf(w, "  Category:  %s\n", it.Category)
	_, _ = fmt.Fprintf(w, "  Producer:  %s\n", it.Producer)
	_, _ = fmt.Fprintf(w, "  Harvest:   %s\n", it.HarvestDate)
	_, _ = fmt.Fprintf(w, "  Package:   %s\n", it.PackageDate)
	if it.Rated() {
		_, _ = fmt.Fprintf(w, "  Rating:    %.2f/10 (%d ratings)\n", it.AverageRating, it.TotalRatings)
	} else {
		_, _ = fmt.Fprintln(w, "  Rating:    not rated yet")
	}
	_, _ = fmt.Fprintf(w, "  Added:     %s\n", it.DateAdded)
}

// PrintItems writes one line per product
func PrintItems(w io.Writer, items []datastore.Item) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, "No products found.")
		return
	}
	for _, it := range items {
		rating := "-"
		if it.Rated() {
			rating = fmt.Sprintf("%.2f (%d)", it.AverageRating, it.TotalRatings)
		}
		_, _ = fmt.Fprintf(w, "%s  %-30s %-7s %-9s %-20s %s\n",
			it.ID, it.Name, it.Category, it.Status, it.Producer, rating)
	}
}

// Join is strings.Join over command arguments, trimmed
func Join(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
