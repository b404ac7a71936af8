package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/orion/cli"
	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd returns the configuration inspection commands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSchemaCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration with defaults applied",
		Long: `Print the configuration orion would run with from the current directory,
or from --config, with every default filled in.

Examples:
  orion config show
  orion config show --format toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			if cli.GetOptions(cmd).JSONOutput {
				format = "json"
			}

			data, err := marshalConfig(cfg, format)
			if err != nil {
				return err
			}
			if cfg.Source != "" && format != "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "# Source: %s\n", cfg.Source)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().String("format", "yaml", "Output format: yaml, toml or json")
	return cmd
}

func marshalConfig(cfg *config.Config, format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return yaml.Marshal(cfg)
	case "toml":
		return config.MarshalTOML(cfg)
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, errors.InvalidInput("unknown format " + format + "; use yaml, toml or json")
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of orion.yml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ConfigSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration against its schema and rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if cfg.Source == "" {
				pretty.Success("No configuration file found; defaults are valid")
				return nil
			}
			pretty.Success("Configuration is valid")
			pretty.Path("File", cfg.Source)
			return nil
		},
	}
}
