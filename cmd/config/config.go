// Package config implements configuration helpers
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/strainbot/internal/conf"
	"github.com/tphakala/strainbot/internal/privacy"
)

const redacted = "[REDACTED]"

// Command creates the config command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and write configuration",
	}

	var showSecrets bool
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := *settings
			if !showSecrets {
				s = Redact(s)
			}
			data, err := yaml.Marshal(&s)
			if err != nil {
				return fmt.Errorf("error marshaling settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	dump.Flags().BoolVar(&showSecrets, "show-secrets", false, "Do not redact passwords, DSNs and notification URLs")

	write := &cobra.Command{
		Use:   "write <path>",
		Short: "Write the effective configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.SaveYAMLConfig(args[0], settings); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(dump, write)
	return cmd
}

// Redact returns a copy of s with credentials masked
func Redact(s conf.Settings) conf.Settings {
	if s.MQTT.Password != "" {
		s.MQTT.Password = redacted
	}
	if s.Store.MySQL.DSN != "" {
		s.Store.MySQL.DSN = redacted
	}
	if s.Telemetry.SentryDSN != "" {
		s.Telemetry.SentryDSN = privacy.RedactURL(s.Telemetry.SentryDSN)
	}
	if len(s.Notify.URLs) > 0 {
		urls := make([]string, len(s.Notify.URLs))
		for i, u := range s.Notify.URLs {
			urls[i] = privacy.RedactURL(u)
		}
		s.Notify.URLs = urls
	}
	return s
}
