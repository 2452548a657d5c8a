package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookscore/internal/fileutil"
)

// Status is the outcome of ingesting one source table
type Status string

const (
	StatusMerged    Status = "merged"
	StatusDuplicate Status = "duplicate"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// ItemResult represents the result for a single source table
type ItemResult struct {
	Source         string        `json:"source" yaml:"source"`
	Title          string        `json:"title" yaml:"title"`
	Reviews        int           `json:"reviews" yaml:"reviews"`
	EndingScore    float64       `json:"ending_score" yaml:"ending_score"`
	JourneyScore   float64       `json:"journey_score" yaml:"journey_score"`
	Status         Status        `json:"status" yaml:"status"`
	Error          string        `json:"error,omitempty" yaml:"error,omitempty"`
	ProcessingTime time.Duration `json:"processing_time" yaml:"processing_time"`
}

// BatchResults represents aggregated ingestion statistics
type BatchResults struct {
	Total      int `json:"total" yaml:"total"`
	Merged     int `json:"merged" yaml:"merged"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Failed     int `json:"failed" yaml:"failed"`

	AverageReviews        float64       `json:"average_reviews" yaml:"average_reviews"`
	AverageProcessingTime time.Duration `json:"average_processing_time" yaml:"average_processing_time"`
	TotalProcessingTime   time.Duration `json:"total_processing_time" yaml:"total_processing_time"`

	Results []ItemResult `json:"results" yaml:"results"`
	Date    time.Time    `json:"date" yaml:"date"`
}

// AggregateBatch aggregates per-item ingestion results
func AggregateBatch(results []ItemResult) *BatchResults {
	agg := &BatchResults{
		Total:   len(results),
		Results: results,
		Date:    time.Now(),
	}

	var reviews []float64
	for _, r := range results {
		agg.TotalProcessingTime += r.ProcessingTime

		switch r.Status {
		case StatusMerged:
			agg.Merged++
			reviews = append(reviews, float64(r.Reviews))
		case StatusDuplicate:
			agg.Duplicates++
		case StatusSkipped:
			agg.Skipped++
		case StatusFailed:
			agg.Failed++
		}
	}

	agg.AverageReviews = calculateAverage(reviews)
	if agg.Total > 0 {
		agg.AverageProcessingTime = agg.TotalProcessingTime / time.Duration(agg.Total)
	}

	return agg
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// PrintSummary writes a human-readable summary of the batch
func (b *BatchResults) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "BOOKSCORE INGEST SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Source Tables: %d\n", b.Total)
	fmt.Fprintf(w, "Merged: %d (%.1f%%)\n", b.Merged, percent(b.Merged, b.Total))
	fmt.Fprintf(w, "Duplicates: %d (%.1f%%)\n", b.Duplicates, percent(b.Duplicates, b.Total))
	fmt.Fprintf(w, "Skipped: %d (%.1f%%)\n", b.Skipped, percent(b.Skipped, b.Total))
	fmt.Fprintf(w, "Failed: %d (%.1f%%)\n", b.Failed, percent(b.Failed, b.Total))
	fmt.Fprintf(w, "Average Reviews per Merged Book: %.1f\n", b.AverageReviews)
	fmt.Fprintf(w, "Average Processing Time: %s\n", b.AverageProcessingTime)
	fmt.Fprintf(w, "Total Processing Time: %s\n", b.TotalProcessingTime)
	fmt.Fprintln(w, strings.Repeat("=", 70))
}

// SaveDetailedReport saves a plain text report with individual results
func (b *BatchResults) SaveDetailedReport(path string) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		fmt.Fprintf(w, "BOOKSCORE INGEST DETAILED REPORT\n")
		fmt.Fprintf(w, "Generated: %s\n", b.Date.Format("2006-01-02 15:04:05"))
		separator := strings.Repeat("=", 80)
		fmt.Fprintf(w, "%s\n\n", separator)

		dash := strings.Repeat("-", 80)
		for i, r := range b.Results {
			fmt.Fprintf(w, "SOURCE %d: %s\n", i+1, r.Source)
			fmt.Fprintf(w, "%s\n", dash)
			fmt.Fprintf(w, "Title: %s\n", r.Title)
			fmt.Fprintf(w, "Status: %s\n", r.Status)
			fmt.Fprintf(w, "Processing Time: %s\n", r.ProcessingTime)
			if r.Error != "" {
				fmt.Fprintf(w, "ERROR: %s\n", r.Error)
			} else {
				fmt.Fprintf(w, "Reviews: %d\n", r.Reviews)
				fmt.Fprintf(w, "Ending Score: %.2f\n", r.EndingScore)
				fmt.Fprintf(w, "Journey Score: %.2f\n", r.JourneyScore)
			}
			fmt.Fprintf(w, "\n%s\n\n", separator)
		}
		return nil
	})
}
