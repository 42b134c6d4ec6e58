package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the polytrader CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("polytrader version %s\n", version)
		fmt.Println("A risk-gated autonomous trading agent for prediction markets")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
