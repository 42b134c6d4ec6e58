package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketgrid/polytrader/agent"
	"github.com/marketgrid/polytrader/api"
	"github.com/marketgrid/polytrader/breaker"
	"github.com/marketgrid/polytrader/config"
	"github.com/marketgrid/polytrader/executor"
	"github.com/marketgrid/polytrader/journal"
	"github.com/marketgrid/polytrader/ledger"
	"github.com/marketgrid/polytrader/market"
	"github.com/marketgrid/polytrader/metrics"
	"github.com/marketgrid/polytrader/pkg/clock"
	"github.com/marketgrid/polytrader/risk"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading agent from a config file",
	Long: `Run the trading agent using settings from a configuration file.

The config file specifies the trading mode, risk limits, scanner and
executor endpoints, and journal backend.

Example:
  polytrader run --config polytrader.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	jnl, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	clk := clock.Wall{}
	book := ledger.New(cfg.InitialBalance, cfg.LedgerCaps(), clk)
	limits := cfg.RiskLimits()
	gate := risk.NewGate(limits, book, clk)
	recorder := metrics.NewRecorder(cfg.Metrics.PeriodsPerYear, clk)

	scanner := market.NewGammaScanner(market.GammaScannerConfig{
		BaseURL:       cfg.Scanner.GammaURL,
		FetchLimit:    cfg.Scanner.FetchLimit,
		MinLiquidity:  cfg.Scanner.MinLiquidity,
		EdgeThreshold: cfg.Scanner.EdgeThreshold,
		Timeout:       time.Duration(cfg.Scanner.TimeoutSec) * time.Second,
		Retries:       cfg.Scanner.Retries,
	}, nil, log)

	var exec executor.Executor
	if cfg.Mode == config.ModeLive {
		exec = executor.NewCLOB(executor.CLOBConfig{
			BaseURL: cfg.Executor.ClobURL,
			APIKey:  cfg.APIKey,
			Timeout: time.Duration(cfg.Executor.TimeoutSec) * time.Second,
		}, log)
	} else {
		exec = executor.NewPaper(cfg.Executor.Slippage, log)
	}

	scanBreaker := breaker.New("gamma", cfg.Breaker.Threshold, cfg.BreakerCooldown(), clk)
	execBreaker := breaker.New(exec.Name(), cfg.Breaker.Threshold, cfg.BreakerCooldown(), clk)

	ag := agent.New(agent.Config{
		ScanInterval: cfg.ScanInterval(),
		ExecTimeout:  cfg.ExecTimeout(),
		TopPerCycle:  cfg.TopPerCycle,
		ScannerDep:   "gamma",
		ExecutorDep:  exec.Name(),
	}, scanner, gate, book, recorder, exec, scanBreaker, execBreaker, jnl, clk, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(cfg.Server.Addr, ag, gate, book, limits, log)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Info("polytrader starting",
		zap.String("mode", cfg.Mode),
		zap.Float64("balance", cfg.InitialBalance),
		zap.String("config", runConfigPath),
	)

	if err := ag.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("polytrader stopped")
	return nil
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	if cfg.Type == "jsonl" {
		return journal.NewJSONL(cfg.TradesFile, cfg.SnapshotsFile)
	}
	return journal.NewSQLite(cfg.DBPath)
}
