package bookcmd

import (
	"context"
	"fmt"
	"io"

	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/lehigh-university-libraries/bookscore/internal/scrape"
	"github.com/lehigh-university-libraries/bookscore/internal/workflow"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var entry scrape.Entry
	var htmlFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape a book, add it to the master dataset and predict its rating",
		Long: `Run the whole pipeline for one book: scrape and score its reviews, aggregate
them into a row, merge the row into the master dataset and predict the rating
you would give it.

If the book is already in the master dataset its existing row is kept. The
prediction is skipped when the master dataset has no usable ratings yet.`,
		Example: `  # Full run from a review page
  bookscore run --title "Dune" --url https://www.goodreads.com/book/show/44767458/reviews \
    --author "Frank Herbert" --genre "Science Fiction"

  # Full run from a saved page
  bookscore run --title "Dune" --file dune.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if entry.Title == "" {
				return fmt.Errorf("--title is required")
			}
			if (entry.URL == "") == (htmlFile == "") {
				return fmt.Errorf("exactly one of --url or --file is required")
			}

			_, svc, err := setup(cmd, true)
			if err != nil {
				return err
			}

			return executeRun(cmd.Context(), cmd.OutOrStdout(), svc, entry, htmlFile)
		},
	}

	cmd.Flags().StringVar(&entry.Title, "title", "", "Book title (required)")
	cmd.Flags().StringVar(&entry.URL, "url", "", "Review page URL")
	cmd.Flags().StringVar(&htmlFile, "file", "", "Saved review page")
	cmd.Flags().StringVar(&entry.Author, "author", "", "Book author")
	cmd.Flags().StringVar(&entry.Genre, "genre", "", "Book genre")

	return cmd
}

func executeRun(ctx context.Context, out io.Writer, svc *workflow.Service, entry scrape.Entry, htmlFile string) error {
	var run *models.Run
	var err error
	if htmlFile != "" {
		run, err = svc.RunFile(ctx, htmlFile, entry)
	} else {
		run, err = svc.Run(ctx, entry)
	}
	if err != nil {
		return err
	}

	printRun(out, run)
	return nil
}

func printRun(out io.Writer, run *models.Run) {
	fmt.Fprintf(out, "Run:            %s\n", run.ID)
	fmt.Fprintf(out, "Book Title:     %s\n", run.Title)
	fmt.Fprintf(out, "Reviews:        %d\n", run.Reviews)
	fmt.Fprintf(out, "Source Table:   %s\n", run.SourcePath)
	if run.Duplicate {
		fmt.Fprintln(out, "Master Dataset: already present, existing row kept")
	} else {
		fmt.Fprintln(out, "Master Dataset: merged")
	}

	if run.Book != nil {
		fmt.Fprintf(out, "Author:         %s\n", run.Book.Author)
		fmt.Fprintf(out, "Genre:          %s\n", run.Book.Genre)
		fmt.Fprintf(out, "Ending Score:   %.2f\n", run.Book.EndingScore)
		fmt.Fprintf(out, "Journey Score:  %.2f\n", run.Book.JourneyScore)
		if run.Book.MyScore != nil {
			fmt.Fprintf(out, "My Score:       %g\n", *run.Book.MyScore)
		}
	}

	switch {
	case run.PredictedScore != nil:
		fmt.Fprintf(out, "Predicted Score: %d\n", *run.PredictedScore)
	case run.Error != "":
		fmt.Fprintf(out, "Predicted Score: unavailable (%s)\n", run.Error)
	}
}
