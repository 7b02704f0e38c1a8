package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "twinpilot",
	Short: "A grounded conversational twin with persona compliance",
	Long: `Twinpilot answers questions as a specific person, grounded strictly in
that person's own material. Every answer is retrieved, cited, confidence-
scored, and checked against the persona's voice and policy rules before
it leaves the pipeline.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".twinpilot.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
