package bookcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lehigh-university-libraries/bookscore/internal/scrape"
	"github.com/lehigh-university-libraries/bookscore/internal/workflow"
	"github.com/spf13/cobra"
)

// NewScrapeCmd creates the scrape command
func NewScrapeCmd() *cobra.Command {
	var title string
	var url string
	var htmlFile string
	var listPath string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape and score the reviews of one or more books",
		Long: `Fetch a book's review page, score every review with the configured sentiment
backend and save the book's source table in the source directory.

Use --list to scrape every book of a CSV book list (Book Title, URL) concurrently.
A failing book is reported and does not stop the others.`,
		Example: `  # Scrape one book
  bookscore scrape --title "Dune" --url https://www.goodreads.com/book/show/44767458/reviews

  # Score a saved review page
  bookscore scrape --title "Dune" --file dune.html

  # Scrape a book list
  bookscore scrape --list books.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, v := range []string{url, htmlFile, listPath} {
				if v != "" {
					sources++
				}
			}
			if sources != 1 {
				return fmt.Errorf("exactly one of --url, --file or --list is required")
			}
			if listPath == "" && title == "" {
				return fmt.Errorf("--title is required with --url or --file")
			}

			_, svc, err := setup(cmd, true)
			if err != nil {
				return err
			}

			return executeScrape(cmd.Context(), cmd.OutOrStdout(), svc, title, url, htmlFile, listPath)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Book title")
	cmd.Flags().StringVar(&url, "url", "", "Review page URL")
	cmd.Flags().StringVar(&htmlFile, "file", "", "Saved review page")
	cmd.Flags().StringVar(&listPath, "list", "", "CSV book list with Book Title and URL columns")

	return cmd
}

func executeScrape(ctx context.Context, out io.Writer, svc *workflow.Service, title, url, htmlFile, listPath string) error {
	switch {
	case htmlFile != "":
		path, records, err := svc.ScrapeFile(ctx, htmlFile, title)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %d reviews to %s\n", len(records), path)
		return nil

	case url != "":
		path, records, err := svc.ScrapeBook(ctx, scrape.Entry{Title: title, URL: url})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved %d reviews to %s\n", len(records), path)
		return nil
	}

	entries, err := scrape.LoadBookList(listPath)
	if err != nil {
		return err
	}

	slog.Info("Scraping book list", "path", listPath, "books", len(entries))

	results := svc.ScrapeList(ctx, entries)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "FAILED  %s: %v\n", r.Entry.Title, r.Err)
			continue
		}
		fmt.Fprintf(out, "OK      %s -> %s\n", r.Entry.Title, r.Value)
	}
	fmt.Fprintf(out, "\nScraped %d of %d books\n", len(results)-failed, len(results))

	if failed == len(results) && failed > 0 {
		return fmt.Errorf("all %d books failed to scrape", failed)
	}
	return nil
}
