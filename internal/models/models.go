package models

import "time"

// Book is one row of the master dataset: the per-book feature vector plus
// the user's own rating.
type Book struct {
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	Genre        string  `json:"genre"`
	EndingScore  float64 `json:"ending_score"`
	JourneyScore float64 `json:"journey_score"`

	// MyScore is hand-entered by the user. nil means unrated. It is kept as
	// read from the table; the predictor decides whether it is a valid rating.
	MyScore *float64 `json:"my_score,omitempty"`

	// PredictedScore is only populated by the predictor.
	PredictedScore *int `json:"predicted_score,omitempty"`
}

// Rated reports whether the user has entered a score for the book.
func (b Book) Rated() bool {
	return b.MyScore != nil
}

// IntPtr is a helper for building optional scores.
func IntPtr(v int) *int {
	return &v
}

// FloatPtr is a helper for building optional scores.
func FloatPtr(v float64) *float64 {
	return &v
}

// Run represents one scrape-to-prediction workflow execution
type Run struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Author         string    `json:"author,omitempty"`
	Genre          string    `json:"genre,omitempty"`
	SourcePath     string    `json:"source_path,omitempty"`
	Reviews        int       `json:"reviews"`
	Book           *Book     `json:"book,omitempty"`
	PredictedScore *int      `json:"predicted_score,omitempty"`
	Duplicate      bool      `json:"duplicate"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
