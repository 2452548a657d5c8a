package bookcmd

import (
	"io"
	"log/slog"

	"github.com/lehigh-university-libraries/bookscore/internal/report"
	"github.com/lehigh-university-libraries/bookscore/internal/scrape"
	"github.com/lehigh-university-libraries/bookscore/internal/workflow"
	"github.com/spf13/cobra"
)

// NewAggregateCmd creates the aggregate command
func NewAggregateCmd() *cobra.Command {
	var author string
	var genre string
	var listPath string
	var reportPath string

	cmd := &cobra.Command{
		Use:   "aggregate [source-dir]",
		Short: "Fold source tables into the master dataset",
		Long: `Aggregate every source table in a directory into one row per book and merge
the rows into the master dataset.

Books already in the master dataset are skipped, so re-running over the same
directory changes nothing. Malformed source tables are skipped with a warning.`,
		Example: `  # Aggregate the configured source directory
  bookscore aggregate

  # Take author and genre from the book list
  bookscore aggregate ./reviews --list books.csv

  # Save a detailed report
  bookscore aggregate --report ingest_report.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, svc, err := setup(cmd, false)
			if err != nil {
				return err
			}

			dir := cfg.SourceDir
			if len(args) == 1 {
				dir = args[0]
			}

			var entries []scrape.Entry
			if listPath != "" {
				entries, err = scrape.LoadBookList(listPath)
				if err != nil {
					return err
				}
			}

			return executeAggregate(cmd.OutOrStdout(), svc, dir, entries, author, genre, reportPath)
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "Author recorded for every new book")
	cmd.Flags().StringVar(&genre, "genre", "", "Genre recorded for every new book")
	cmd.Flags().StringVar(&listPath, "list", "", "CSV book list with optional Author and Genre columns")
	cmd.Flags().StringVar(&reportPath, "report", "", "Path to save a detailed text report")

	return cmd
}

func executeAggregate(out io.Writer, svc *workflow.Service, dir string, entries []scrape.Entry, author, genre, reportPath string) error {
	slog.Info("Aggregating source tables", "dir", dir, "master", svc.MasterPath(), "listed", len(entries))

	var (
		results *report.BatchResults
		err     error
	)
	if entries != nil {
		results, err = svc.ProcessList(dir, entries, author, genre)
	} else {
		results, err = svc.ProcessDir(dir, workflow.FixedMetadata(author, genre))
	}
	if err != nil {
		return err
	}

	results.PrintSummary(out)

	if reportPath != "" {
		if err := results.SaveDetailedReport(reportPath); err != nil {
			return err
		}
		slog.Info("Saved ingest report", "path", reportPath)
	}

	return nil
}
