package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/lehigh-university-libraries/bookscore/internal/predict"
	"gopkg.in/yaml.v3"
)

func sampleBooks() []models.Book {
	return []models.Book{
		{Title: "A", Author: "Austen", Genre: "Romance", EndingScore: 8, JourneyScore: 6, MyScore: models.FloatPtr(5)},
		{Title: "B", Author: "Brown", Genre: "Thriller", EndingScore: -6, JourneyScore: -4, MyScore: models.FloatPtr(-3)},
		{Title: "C", Author: "Austen", Genre: "Romance", EndingScore: 7, JourneyScore: 5, MyScore: models.FloatPtr(5)},
		{Title: "D", Author: "Tolkien", Genre: "Fantasy", EndingScore: 3, JourneyScore: 1},
	}
}

func TestCalculateAverage(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		expected float64
	}{
		{"empty", []float64{}, 0.0},
		{"single", []float64{0.5}, 0.5},
		{"multiple", []float64{1.0, 0.5, 0.0}, 0.5},
		{"negative", []float64{-6, 8}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := calculateAverage(tt.scores)
			if result != tt.expected {
				t.Errorf("Expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestNewTrainingReport(t *testing.T) {
	books := sampleBooks()
	m, err := predict.Fit(books, predict.DefaultConfig())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	r := NewTrainingReport("master.csv", books, m)

	if r.TotalBooks != 4 || r.RatedBooks != 3 || r.UnratedBooks != 1 {
		t.Errorf("Unexpected counts: total=%d rated=%d unrated=%d", r.TotalBooks, r.RatedBooks, r.UnratedBooks)
	}
	if r.RatingCounts[5] != 2 || r.RatingCounts[-3] != 1 {
		t.Errorf("Unexpected rating counts: %v", r.RatingCounts)
	}
	if r.AverageEnding != 3.0 {
		t.Errorf("Expected average ending 3.0, got %v", r.AverageEnding)
	}
	if r.Trees != 100 || r.Seed != 42 {
		t.Errorf("Expected 100 trees seeded 42, got %d/%d", r.Trees, r.Seed)
	}
	if len(r.Authors.Classes) != 2 || r.Authors.ID == "" {
		t.Errorf("Unexpected author encoder summary: %+v", r.Authors)
	}
}

func TestPrintSummary(t *testing.T) {
	books := sampleBooks()
	m, err := predict.Fit(books, predict.DefaultConfig())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	r := NewTrainingReport("master.csv", books, m)
	r.Holdout = &predict.Evaluation{Holdout: 0.2, TrainSize: 2, TestSize: 1, Accuracy: 1, Classes: []predict.ClassMetrics{{Rating: 5, Precision: 1, Recall: 1, F1: 1, Support: 1}}}
	r.Predictions = []predict.Prediction{{Title: "D", Score: 5, Probability: 0.8}}

	var buf bytes.Buffer
	r.PrintSummary(&buf)
	out := buf.String()

	for _, want := range []string{"BOOKSCORE TRAINING SUMMARY", "Total Books: 4", "My Score +5: 2", "not generalization", "HELD-OUT EVALUATION (20% of rated books)", "PREDICTIONS"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q", want)
		}
	}
}

func TestSaveReport(t *testing.T) {
	dir := t.TempDir()
	r := NewTrainingReport("master.csv", sampleBooks(), nil)

	jsonPath := filepath.Join(dir, "report.json")
	if err := r.Save(jsonPath); err != nil {
		t.Fatalf("Save JSON failed: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("Failed to read JSON: %v", err)
	}
	var decoded TrainingReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if decoded.TotalBooks != 4 {
		t.Errorf("Expected 4 books in JSON, got %d", decoded.TotalBooks)
	}

	yamlPath := filepath.Join(dir, "report.yaml")
	if err := r.Save(yamlPath); err != nil {
		t.Fatalf("Save YAML failed: %v", err)
	}
	data, err = os.ReadFile(yamlPath)
	if err != nil {
		t.Fatalf("Failed to read YAML: %v", err)
	}
	var fields map[string]any
	if err := yaml.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Invalid YAML: %v", err)
	}
	if fields["rated_books"] != 3 {
		t.Errorf("Expected rated_books 3 in YAML, got %v", fields["rated_books"])
	}
}

func TestAggregateBatch(t *testing.T) {
	results := []ItemResult{
		{Source: "a.csv", Title: "A", Reviews: 10, Status: StatusMerged, ProcessingTime: 2 * time.Second},
		{Source: "b.csv", Title: "B", Reviews: 20, Status: StatusMerged, ProcessingTime: 4 * time.Second},
		{Source: "c.csv", Title: "A", Status: StatusDuplicate},
		{Source: "d.csv", Status: StatusSkipped, Error: "missing column"},
	}

	agg := AggregateBatch(results)

	if agg.Total != 4 || agg.Merged != 2 || agg.Duplicates != 1 || agg.Skipped != 1 || agg.Failed != 0 {
		t.Errorf("Unexpected counts: %+v", agg)
	}
	if agg.AverageReviews != 15 {
		t.Errorf("Expected average reviews 15, got %v", agg.AverageReviews)
	}
	if agg.TotalProcessingTime != 6*time.Second {
		t.Errorf("Expected total time 6s, got %s", agg.TotalProcessingTime)
	}

	var buf bytes.Buffer
	agg.PrintSummary(&buf)
	if !strings.Contains(buf.String(), "Merged: 2 (50.0%)") {
		t.Errorf("Unexpected summary:\n%s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "ingest.txt")
	if err := agg.SaveDetailedReport(path); err != nil {
		t.Fatalf("SaveDetailedReport failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "ERROR: missing column") {
		t.Error("Expected detailed report to include the skip reason")
	}
}
