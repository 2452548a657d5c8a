package bookcmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/bookscore/internal/aggregate"
	"github.com/lehigh-university-libraries/bookscore/internal/review"
	"github.com/spf13/cobra"
)

const previewChars = 200

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var limit int
	var interactive bool
	var author string
	var genre string

	cmd := &cobra.Command{
		Use:   "inspect <source-table>",
		Short: "Inspect a source table and the row it aggregates to",
		Long: `Show the scored reviews of a source table (CSV, JSONL or Parquet) and the
master dataset row they aggregate to. Nothing is written.`,
		Example: `  # Inspect the first 5 reviews
  bookscore inspect reviews/Dune_reviews_sentiment.csv --limit 5

  # Step through every review
  bookscore inspect reviews/Dune_reviews_sentiment.csv --limit 0 --interactive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeInspect(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], limit, interactive, author, genre)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of reviews to show (0 for all)")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "Pause after each review (press Enter to continue)")
	cmd.Flags().StringVar(&author, "author", "", "Author for the aggregated row")
	cmd.Flags().StringVar(&genre, "genre", "", "Genre for the aggregated row")

	return cmd
}

func executeInspect(ctx context.Context, in io.Reader, out io.Writer, path string, limit int, interactive bool, author, genre string) error {
	records, err := review.NewLoader(path).Load()
	if err != nil {
		return fmt.Errorf("failed to load source table: %w", err)
	}

	fmt.Fprintf(out, "Loaded %d reviews from %s\n", len(records), path)
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintln(out)

	shown := records
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	reader := bufio.NewReader(in)

	for i, r := range shown {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nInspection interrupted.")
			return nil
		default:
		}

		fmt.Fprintf(out, "REVIEW %d/%d\n", i+1, len(records))
		fmt.Fprintln(out, strings.Repeat("-", 80))
		fmt.Fprintf(out, "Category:   %s\n", r.Category)
		fmt.Fprintf(out, "Sentiment:  %s\n", r.Sentiment)
		fmt.Fprintf(out, "Score:      %.4f\n", r.Score)
		fmt.Fprintf(out, "Length:     %d characters\n", len([]rune(r.Text)))

		text := []rune(r.Text)
		if len(text) > previewChars {
			fmt.Fprintf(out, "Text:       %s [...]\n", string(text[:previewChars]))
		} else {
			fmt.Fprintf(out, "Text:       %s\n", r.Text)
		}
		fmt.Fprintln(out)

		if interactive {
			fmt.Fprint(out, "Press Enter to continue to next review (or Ctrl+C to quit)...")

			inputCh := make(chan struct{})
			go func() {
				_, _ = reader.ReadString('\n')
				close(inputCh)
			}()

			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "\nInspection interrupted.")
				return nil
			case <-inputCh:
				fmt.Fprintln(out)
			}
		}
	}

	counts := map[review.Category]int{}
	for _, r := range records {
		counts[r.Category]++
	}

	book := aggregate.Aggregate(aggregate.TitleFromSource(path), records, author, genre)

	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintln(out, "AGGREGATED ROW")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	fmt.Fprintf(out, "Book Title:     %s\n", book.Title)
	fmt.Fprintf(out, "Author:         %s\n", book.Author)
	fmt.Fprintf(out, "Genre:          %s\n", book.Genre)
	fmt.Fprintf(out, "Ending Score:   %.2f (%d reviews)\n", book.EndingScore, counts[review.CategoryEnding])
	fmt.Fprintf(out, "Journey Score:  %.2f (%d reviews)\n", book.JourneyScore, counts[review.CategoryJourney])
	fmt.Fprintf(out, "General:        %d reviews (not scored)\n", counts[review.CategoryGeneral])

	return nil
}
