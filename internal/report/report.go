package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookscore/internal/fileutil"
	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/lehigh-university-libraries/bookscore/internal/predict"
	"gopkg.in/yaml.v3"
)

// EncoderSummary describes one fitted categorical encoder
type EncoderSummary struct {
	ID      string   `json:"id" yaml:"id"`
	Policy  string   `json:"policy" yaml:"policy"`
	Classes []string `json:"classes" yaml:"classes"`
}

// TrainingReport summarizes a fitted model and the dataset it came from
type TrainingReport struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	MasterPath  string    `json:"master_path" yaml:"master_path"`

	TotalBooks   int `json:"total_books" yaml:"total_books"`
	RatedBooks   int `json:"rated_books" yaml:"rated_books"`
	UnratedBooks int `json:"unrated_books" yaml:"unrated_books"`

	AverageEnding  float64     `json:"average_ending_score" yaml:"average_ending_score"`
	AverageJourney float64     `json:"average_journey_score" yaml:"average_journey_score"`
	RatingCounts   map[int]int `json:"rating_counts" yaml:"rating_counts"`

	Trees       int     `json:"trees" yaml:"trees"`
	Seed        uint64  `json:"seed" yaml:"seed"`
	Ratings     []int   `json:"ratings" yaml:"ratings"`
	TrainingFit float64 `json:"training_accuracy" yaml:"training_accuracy"`

	Authors EncoderSummary `json:"author_encoder" yaml:"author_encoder"`
	Genres  EncoderSummary `json:"genre_encoder" yaml:"genre_encoder"`

	// Holdout is set only when a held-out split was evaluated.
	Holdout *predict.Evaluation `json:"holdout,omitempty" yaml:"holdout,omitempty"`

	Predictions []predict.Prediction `json:"predictions,omitempty" yaml:"predictions,omitempty"`
}

// NewTrainingReport builds a report for a model fitted on books.
func NewTrainingReport(masterPath string, books []models.Book, m *predict.Model) *TrainingReport {
	r := &TrainingReport{
		GeneratedAt:  time.Now(),
		MasterPath:   masterPath,
		TotalBooks:   len(books),
		RatingCounts: make(map[int]int),
	}

	endings := make([]float64, 0, len(books))
	journeys := make([]float64, 0, len(books))
	for _, b := range books {
		endings = append(endings, b.EndingScore)
		journeys = append(journeys, b.JourneyScore)
		if b.Rated() {
			r.RatedBooks++
			r.RatingCounts[int(*b.MyScore)]++
		} else {
			r.UnratedBooks++
		}
	}
	r.AverageEnding = calculateAverage(endings)
	r.AverageJourney = calculateAverage(journeys)

	if m != nil {
		cfg := m.Config()
		r.Trees = cfg.Forest.Trees
		r.Seed = cfg.Forest.Seed
		r.Ratings = m.Ratings()
		r.TrainingFit = m.TrainingAccuracy()
		r.Authors = EncoderSummary{ID: m.Authors().ID().String(), Policy: string(m.Authors().Policy()), Classes: m.Authors().Classes()}
		r.Genres = EncoderSummary{ID: m.Genres().ID().String(), Policy: string(m.Genres().Policy()), Classes: m.Genres().Classes()}
	}

	return r
}

// calculateAverage calculates the average of a slice of scores
func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, score := range scores {
		sum += score
	}

	return sum / float64(len(scores))
}

// PrintSummary writes a human-readable summary of the report
func (r *TrainingReport) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "BOOKSCORE TRAINING SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Master Dataset: %s\n", r.MasterPath)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "DATASET")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total Books: %d\n", r.TotalBooks)
	fmt.Fprintf(w, "Rated: %d\n", r.RatedBooks)
	fmt.Fprintf(w, "Unrated: %d\n", r.UnratedBooks)
	fmt.Fprintf(w, "Average Ending Score: %.2f\n", r.AverageEnding)
	fmt.Fprintf(w, "Average Journey Score: %.2f\n", r.AverageJourney)

	ratings := make([]int, 0, len(r.RatingCounts))
	for rating := range r.RatingCounts {
		ratings = append(ratings, rating)
	}
	slices.Sort(ratings)
	for _, rating := range ratings {
		fmt.Fprintf(w, "  My Score %+d: %d\n", rating, r.RatingCounts[rating])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MODEL")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Random Forest: %d trees, seed %d\n", r.Trees, r.Seed)
	fmt.Fprintf(w, "Authors: %d (%s policy)\n", len(r.Authors.Classes), r.Authors.Policy)
	fmt.Fprintf(w, "Genres: %d (%s policy)\n", len(r.Genres.Classes), r.Genres.Policy)
	fmt.Fprintf(w, "Training Accuracy: %.2f%% (fit to training data, not generalization)\n", r.TrainingFit*100)

	if r.Holdout != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "HELD-OUT EVALUATION (%.0f%% of rated books)\n", r.Holdout.Holdout*100)
		fmt.Fprintln(w, strings.Repeat("-", 70))
		fmt.Fprintf(w, "Train: %d  Test: %d\n", r.Holdout.TrainSize, r.Holdout.TestSize)
		fmt.Fprintf(w, "Held-out Accuracy: %.2f%%\n", r.Holdout.Accuracy*100)
		fmt.Fprintf(w, "Macro F1: %.3f\n", r.Holdout.MacroF1)
		fmt.Fprintf(w, "\n  %6s %10s %10s %10s %8s\n", "rating", "precision", "recall", "f1", "support")
		for _, c := range r.Holdout.Classes {
			fmt.Fprintf(w, "  %+6d %10.3f %10.3f %10.3f %8d\n", c.Rating, c.Precision, c.Recall, c.F1, c.Support)
		}
	}

	if len(r.Predictions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "PREDICTIONS")
		fmt.Fprintln(w, strings.Repeat("-", 70))
		for _, p := range r.Predictions {
			fmt.Fprintf(w, "%-50s %+d (%.0f%%)\n", p.Title, p.Score, p.Probability*100)
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 70))
}

// SaveToJSON saves the report to a JSON file
func (r *TrainingReport) SaveToJSON(path string) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to encode report to JSON: %w", err)
		}
		return nil
	})
}

// SaveToYAML saves the report to a YAML file
func (r *TrainingReport) SaveToYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Save writes the report as YAML for .yaml/.yml paths and JSON otherwise.
func (r *TrainingReport) Save(path string) error {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return r.SaveToYAML(path)
	}
	return r.SaveToJSON(path)
}
