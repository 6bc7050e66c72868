package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecspace/internal/config"
)

// newConfigCommand creates the config command with subcommands
func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect vecspaced configuration",
		Long: `Inspect the effective vecspaced configuration.

Configuration is merged from the built-in defaults, the config file search
paths, .env and VECSPACE_* environment variables.`,
	}

	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigPathCommand())

	return configCmd
}

// newConfigShowCommand creates the config show subcommand
func newConfigShowCommand() *cobra.Command {
	var format string

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Example: `  # Show config in YAML format
  vecspaced config show

  # Show config in JSON format
  vecspaced config show --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Snapshot.SecretKey != "" {
				cfg.Snapshot.SecretKey = "********"
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal config to JSON: %w", err)
				}
				fmt.Fprintln(out, string(data))
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config to YAML: %w", err)
				}
				fmt.Fprint(out, string(data))
			default:
				return fmt.Errorf("unsupported format: %s (use json or yaml)", format)
			}
			return nil
		},
	}

	showCmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml, json)")

	return showCmd
}

// newConfigValidateCommand creates the config validate subcommand
func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration is valid")
			fmt.Fprintf(out, "  Listen address:   %s\n", cfg.Server.Addr)
			fmt.Fprintf(out, "  Default metric:   %s\n", cfg.Engine.Metric)
			fmt.Fprintf(out, "  Namespaces:       %d configured\n", len(cfg.Engine.Namespaces))
			fmt.Fprintf(out, "  Snapshot backend: %s\n", cfg.Snapshot.Backend)
			if cfg.ChangeLog.Path != "" {
				fmt.Fprintf(out, "  Change log:       %s\n", cfg.ChangeLog.Path)
			} else {
				fmt.Fprintln(out, "  Change log:       disabled")
			}
			return nil
		},
	}
}

// newConfigPathCommand creates the config path subcommand
func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file search paths",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration file search paths (in priority order):")
			for i, path := range config.GetConfigPaths() {
				state := "not found"
				if _, err := os.Stat(path); err == nil {
					state = "exists"
				}
				fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, path, state)
			}
			fmt.Fprintln(out, "Environment variables with the VECSPACE_ prefix override file settings")
		},
	}
}
