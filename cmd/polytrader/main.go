package main

import (
	"os"

	"github.com/marketgrid/polytrader/cmd/polytrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
