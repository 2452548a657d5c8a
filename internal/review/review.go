// Package review holds per-review sentiment records and the per-book source
// tables they are exchanged through.
package review

import (
	"fmt"
	"strings"
)

// Category is the part of the book a review talks about.
type Category string

const (
	CategoryEnding  Category = "Ending"
	CategoryJourney Category = "Journey"
	CategoryGeneral Category = "General"
)

// Record is a single scored review.
type Record struct {
	Text      string   `json:"review"`
	Category  Category `json:"category"`
	Sentiment string   `json:"sentiment"`
	// Score is the signed confidence in [-1, 1].
	Score float64 `json:"confidence_score"`
}

// Source table column names.
const (
	ColumnReview     = "Review"
	ColumnCategory   = "Category"
	ColumnSentiment  = "Sentiment"
	ColumnConfidence = "Confidence Score"
)

// Header is the column order written to source tables.
var Header = []string{ColumnReview, ColumnCategory, ColumnSentiment, ColumnConfidence}

var (
	endingKeywords  = []string{"ending", "final", "conclusion", "last chapter", "wrap up", "cliffhanger"}
	journeyKeywords = []string{"journey", "plot", "story", "characters", "development"}
)

// Classify assigns a category by keyword. Ending keywords win over journey
// keywords when a review mentions both.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	if containsAny(lower, endingKeywords) {
		return CategoryEnding
	}
	if containsAny(lower, journeyKeywords) {
		return CategoryJourney
	}
	return CategoryGeneral
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// SourceFormatError reports a source table that cannot be aggregated. Callers
// processing a batch skip the file and move on.
type SourceFormatError struct {
	Path   string
	Reason string
}

func (e *SourceFormatError) Error() string {
	return fmt.Sprintf("source %s: %s", e.Path, e.Reason)
}
