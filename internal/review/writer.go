package review

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/bookscore/internal/fileutil"
)

// SourceSuffix marks per-book source tables. The book title is everything
// before it.
const SourceSuffix = "_reviews_sentiment"

// SourcePath returns where the source table for a book lives inside dir.
// Path separators in the title are replaced so the table stays in dir.
func SourcePath(dir, title string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, title)
	return filepath.Join(dir, name+SourceSuffix+".csv")
}

// WriteSourceTable writes records as a CSV source table, replacing any
// previous table at path.
func WriteSourceTable(path string, records []Record) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		writer := csv.NewWriter(w)

		if err := writer.Write(Header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}

		for _, r := range records {
			row := []string{
				r.Text,
				string(r.Category),
				r.Sentiment,
				strconv.FormatFloat(r.Score, 'f', -1, 64),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}

		writer.Flush()
		return writer.Error()
	})
}
