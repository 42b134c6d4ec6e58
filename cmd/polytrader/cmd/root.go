package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:   "polytrader",
	Short: "A risk-gated autonomous trading agent for prediction markets",
	Long: `Polytrader is an autonomous trading agent for prediction markets.

It provides tools for:
  - Continuous market scanning with edge estimation
  - Risk-gated trade approval with fractional Kelly sizing
  - Paper and live order execution behind circuit breakers
  - Durable trade journals and performance snapshots
  - A local reporting API with an emergency stop`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		// Missing .env is fine; the environment may already be set.
		_ = godotenv.Load()
	})
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
