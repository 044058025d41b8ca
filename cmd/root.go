// Package cmd assembles the strainbot command line
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/strainbot/cmd/cmdutil"
	"github.com/tphakala/strainbot/cmd/config"
	"github.com/tphakala/strainbot/cmd/producers"
	"github.com/tphakala/strainbot/cmd/recent"
	"github.com/tphakala/strainbot/cmd/serve"
	"github.com/tphakala/strainbot/cmd/status"
	"github.com/tphakala/strainbot/cmd/strains"
	"github.com/tphakala/strainbot/cmd/version"
	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/conf"
	"github.com/tphakala/strainbot/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configPath string
	actor := &cmdutil.ActorFlags{}

	rootCmd := &cobra.Command{
		Use:           "strainbot",
		Short:         "Community product ratings with moderator approval",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}
	actor.Register(rootCmd)

	versionCmd := version.Command(build)

	rootCmd.AddCommand(strains.Commands(settings, build, actor)...)
	rootCmd.AddCommand(
		recent.Command(settings, build),
		producers.Command(settings, build, actor),
		status.Command(settings, build),
		serve.Command(settings, build),
		config.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// version works without a config
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(configPath, settings)
	}

	return rootCmd
}

// initialize loads the configuration and sets up logging. Command line flags
// bound to viper take precedence over the file and environment.
func initialize(configPath string, settings *conf.Settings) error {
	conf.SetConfigFile(configPath)
	loaded, err := conf.Load()
	if err != nil {
		return err
	}
	*settings = *loaded

	logCfg := settings.Logging
	if settings.Debug {
		logCfg.DefaultLevel = "debug"
	}
	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().String("backend", "", "Store backend: google, sqlite, mysql or memory")
	rootCmd.PersistentFlags().String("spreadsheet", "", "Google spreadsheet id")

	for key, name := range map[string]string{
		"debug":                "debug",
		"store.backend":        "backend",
		"sheets.spreadsheetid": "spreadsheet",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}
