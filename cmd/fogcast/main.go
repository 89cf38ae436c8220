package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const appName = "fogcast-backend"

var rootCmd = &cobra.Command{
	Use:   "fogcast",
	Short: "FogCast - weather data aggregation backend",
	Long: `FogCast serves live observations, gauge levels, forecasts and model
benchmarks for Konstanz, and imports historical gauge exports.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
