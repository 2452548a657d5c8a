package cmd

import (
	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/bookscore/internal/bookcmd"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "bookscore",
		Short: "Predict how much you will like a book from what its readers say",
		Long: `Bookscore scrapes a book's reader reviews, scores their sentiment with an LLM,
and reduces them to an Ending Score and a Journey Score. Books are collected in
a master dataset next to the rating you gave them, and a random forest trained
on your ratings predicts the score you would give an unread book.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			bookcmd.SetupLogging(verbose)
		},
	}

	cmd.PersistentFlags().String("config", "", "Path to YAML config file (default bookscore.yaml when present)")
	cmd.PersistentFlags().String("master", "", "Path to the master dataset CSV (overrides config)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	// Add subcommands
	cmd.AddCommand(bookcmd.NewScrapeCmd())
	cmd.AddCommand(bookcmd.NewAggregateCmd())
	cmd.AddCommand(bookcmd.NewTrainCmd())
	cmd.AddCommand(bookcmd.NewPredictCmd())
	cmd.AddCommand(bookcmd.NewRunCmd())
	cmd.AddCommand(bookcmd.NewExportCmd())
	cmd.AddCommand(bookcmd.NewInspectCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}
