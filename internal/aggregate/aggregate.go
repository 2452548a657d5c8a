// Package aggregate reduces the scored reviews of one book to its feature row.
//
// Scores are the mean signed confidence of the reviews in a category, scaled
// by 10 and rounded half-to-even to two decimals. A category without reviews
// scores exactly 0.
package aggregate

import (
	"math"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/lehigh-university-libraries/bookscore/internal/review"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ScoreScale is applied to the mean confidence before rounding.
const ScoreScale = 10

// Aggregate builds the feature row for one book. The title, author and genre
// are normalized with NormalizeTitle. MyScore is left unset.
func Aggregate(title string, records []review.Record, author, genre string) models.Book {
	return models.Book{
		Title:        NormalizeTitle(title),
		Author:       NormalizeTitle(author),
		Genre:        NormalizeTitle(genre),
		EndingScore:  Score(records, review.CategoryEnding),
		JourneyScore: Score(records, review.CategoryJourney),
	}
}

// Score returns the scaled, rounded mean score of the records in category.
func Score(records []review.Record, category review.Category) float64 {
	var sum float64
	var count int
	for _, r := range records {
		if r.Category != category {
			continue
		}
		sum += r.Score
		count++
	}
	if count == 0 {
		return 0
	}
	return Round2(sum / float64(count) * ScoreScale)
}

// Round2 rounds half-to-even at two decimal places.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// NormalizeTitle removes invisible format characters (zero-width spaces and
// joiners, BOMs, soft hyphens), composes to NFC and trims surrounding
// whitespace. Case and inner whitespace are preserved.
func NormalizeTitle(s string) string {
	t := transform.Chain(runes.Remove(runes.In(unicode.Cf)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.Map(func(r rune) rune {
			if unicode.Is(unicode.Cf, r) {
				return -1
			}
			return r
		}, s)
	}
	return strings.TrimSpace(out)
}

// TitleFromSource derives the book title from a source table file name such as
// "Dune_reviews_sentiment.csv".
func TitleFromSource(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, review.SourceSuffix, "")
	return NormalizeTitle(name)
}
