package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"dqx0.com/go/wireclient/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or initialize configuration",
	Long: `View or initialize wirecurl configuration.

Examples:
  # Print the resolved configuration
  wirecurl config

  # Print the default config path
  wirecurl config --path

  # Write a default config file
  wirecurl config --init`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().Bool("init", false, "write a default config file")
	configCmd.Flags().Bool("force", false, "overwrite existing config file when using --init")
	configCmd.Flags().Bool("path", false, "print the default config file path")
	configCmd.Flags().StringP("output", "o", "", "output path for --init (defaults to config path)")
}

func runConfig(cmd *cobra.Command, args []string) error {
	showPath, _ := cmd.Flags().GetBool("path")
	initFile, _ := cmd.Flags().GetBool("init")
	force, _ := cmd.Flags().GetBool("force")
	output, _ := cmd.Flags().GetString("output")

	configPath := resolveConfigPath(output)
	if showPath {
		fmt.Fprintln(cmd.OutOrStdout(), configPath)
		return nil
	}
	if initFile {
		return writeDefaultConfig(configPath, force, cmd)
	}

	data, err := yaml.Marshal(GetConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func resolveConfigPath(output string) string {
	if output != "" {
		return output
	}
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func writeDefaultConfig(path string, force bool, cmd *cobra.Command) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check config file: %w", err)
		}
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", path)
	return nil
}
