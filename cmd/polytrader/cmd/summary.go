package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marketgrid/polytrader/config"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a performance summary from the journal",
	Long: `Read the journal configured in the config file and print the most
recent performance snapshot.

Example:
  polytrader summary --config polytrader.yaml`,
	RunE: runSummary,
}

var summaryConfigPath string

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().StringVarP(&summaryConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	summaryCmd.MarkFlagRequired("config")
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(summaryConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	jnl, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	snaps, err := jnl.Snapshots()
	if err != nil {
		return fmt.Errorf("read snapshots: %w", err)
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots recorded yet.")
		return nil
	}

	s := snaps[len(snaps)-1]
	fmt.Printf("Performance Summary (%s)\n", s.Time.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Balance:        $%.2f (peak $%.2f)\n", s.Balance, s.PeakBalance)
	fmt.Printf("  Total P/L:      $%.2f\n", s.TotalPnL)
	fmt.Printf("  Daily P/L:      $%.2f\n", s.DailyPnL)
	fmt.Printf("  Weekly P/L:     $%.2f\n", s.WeeklyPnL)
	fmt.Printf("  Drawdown:       %.2f%%\n", s.Drawdown*100)
	fmt.Printf("  Trades:         %d (W %d / L %d)\n", s.TotalTrades, s.Wins, s.Losses)
	if s.TotalTrades > 0 {
		fmt.Printf("  Win Rate:       %.1f%%\n", s.WinRate*100)
	}
	if s.SharpeValid {
		fmt.Printf("  Sharpe Ratio:   %.2f\n", s.Sharpe)
	} else {
		fmt.Printf("  Sharpe Ratio:   n/a (insufficient history)\n")
	}
	fmt.Printf("  Open Positions: %d\n", s.OpenPositions)
	fmt.Printf("  Last Scan:      %d markets, %d opportunities\n", s.MarketsScanned, s.OpportunitiesFound)
	fmt.Printf("  Executions:     %d ok / %d failed\n", s.TradesExecuted, s.TradesFailed)
	fmt.Printf("  API Calls:      %d (%d errors, avg %.0f ms)\n", s.APICalls, s.APIErrors, s.AvgAPILatency)
	return nil
}
