package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var rootCmd = &cobra.Command{
	Use:   "spikectl",
	Short: "Drive the temporary-authority spiker against a simulated pool deployment.",
	Long: `spikectl deploys a token pair, an authority registry, a resource pool and ` +
		`the spiker in process, then serves an admin API over them or runs a ` +
		`scripted batch-and-settle scenario.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before anything else")
	rootCmd.AddCommand(newServeCmd(), newSimulateCmd(), newConfigCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "spikectl: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
