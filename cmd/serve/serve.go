// Package serve runs the long lived bot process
package serve

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/strainbot/cmd/cmdutil"
	"github.com/tphakala/strainbot/internal/app"
	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/conf"
)

// Command creates the serve command
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the status board, health endpoint and activity feed",
		Long:  "Start strainbot and keep the status board, MQTT activity feed and HTTP endpoints running until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdutil.WithApp(settings, build, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Int("port", 0, "HTTP port for the health and metrics endpoint")
	cmd.Flags().Bool("http", false, "Enable the HTTP endpoint")
	cmd.Flags().String("broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	cmd.Flags().Bool("status", false, "Enable the status board")

	for key, name := range map[string]string{
		"http.port":      "port",
		"http.enabled":   "http",
		"mqtt.broker":    "broker",
		"status.enabled": "status",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
