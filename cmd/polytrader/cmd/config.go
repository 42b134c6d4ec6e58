package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marketgrid/polytrader/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for the trading agent.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  polytrader config init --output polytrader.yaml
  polytrader config validate --file polytrader.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with conservative paper-trading
defaults.

Example:
  polytrader config init --output polytrader.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded. Every
problem is reported, not just the first.

Example:
  polytrader config validate --file polytrader.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "polytrader.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  polytrader run --config %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Mode: %s ($%.2f starting balance)\n", cfg.Mode, cfg.InitialBalance)
	fmt.Printf("  Risk: daily $%.0f / weekly $%.0f / drawdown %.0f%%\n",
		cfg.Risk.DailyLossLimit, cfg.Risk.WeeklyLossLimit, cfg.Risk.MaxDrawdownPct*100)
	fmt.Printf("  Journal: %s\n", cfg.Journal.Type)
	return nil
}
