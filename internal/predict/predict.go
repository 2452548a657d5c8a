// Package predict fits the rating classifier on the master dataset and
// predicts ratings for books the user has not scored.
package predict

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/bookscore/internal/forest"
	"github.com/lehigh-university-libraries/bookscore/internal/labels"
	"github.com/lehigh-university-libraries/bookscore/internal/models"
)

// Feature names, in model column order.
const (
	FeatureEnding  = "Ending Score"
	FeatureJourney = "Journey Score"
	FeatureAuthor  = "Author"
	FeatureGenre   = "Genre"
)

// Features lists the model inputs in column order.
var Features = []string{FeatureEnding, FeatureJourney, FeatureAuthor, FeatureGenre}

// Config controls fitting.
type Config struct {
	Forest forest.Config `yaml:"forest" json:"forest"`
	// Policy applies to both the author and genre encoders.
	Policy labels.Policy `yaml:"unseen_policy" json:"unseen_policy"`
}

// DefaultConfig returns the default forest and the extend policy.
func DefaultConfig() Config {
	return Config{
		Forest: forest.DefaultConfig(),
		Policy: labels.PolicyExtend,
	}
}

// ValidRating reports whether v is an accepted user rating: an integer in
// -5..5 other than 0.
func ValidRating(v float64) bool {
	return v == math.Trunc(v) && v >= -5 && v <= 5 && v != 0
}

// InvalidRating is one offending training value.
type InvalidRating struct {
	Title string  `json:"title"`
	Value float64 `json:"value"`
}

// DataError aborts fitting when the training data is unusable.
type DataError struct {
	Reason  string
	Invalid []InvalidRating
}

func (e *DataError) Error() string {
	if len(e.Invalid) == 0 {
		return e.Reason
	}
	parts := make([]string, len(e.Invalid))
	for i, inv := range e.Invalid {
		parts[i] = fmt.Sprintf("%q=%v", inv.Title, inv.Value)
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(parts, ", "))
}

// UnseenLabel notes a categorical value that the model was not fitted on.
type UnseenLabel struct {
	Title   string        `json:"title"`
	Feature string        `json:"feature"`
	Label   string        `json:"label"`
	Code    int           `json:"code"`
	Policy  labels.Policy `json:"policy"`
}

// Prediction is the predicted rating of one book.
type Prediction struct {
	Title       string        `json:"title"`
	Score       int           `json:"score"`
	Probability float64       `json:"probability"`
	Unseen      []UnseenLabel `json:"unseen,omitempty"`
}

// Model is a fitted predictor. Its encoders exist only inside the model, so
// prediction always encodes with the mapping it was trained with.
type Model struct {
	cfg     Config
	forest  *forest.Forest
	authors *labels.Encoder
	genres  *labels.Encoder
	ratings []int

	x [][]float64
	y []int
}

// TrainingRows returns the rows with a user score.
func TrainingRows(rows []models.Book) []models.Book {
	var out []models.Book
	for _, r := range rows {
		if r.Rated() {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks the user scores of rated rows and returns a *DataError
// listing every invalid value.
func Validate(rows []models.Book) error {
	training := TrainingRows(rows)
	if len(training) == 0 {
		return &DataError{Reason: "no rated books to train on"}
	}

	var invalid []InvalidRating
	for _, r := range training {
		if !ValidRating(*r.MyScore) {
			invalid = append(invalid, InvalidRating{Title: r.Title, Value: *r.MyScore})
		}
	}
	if len(invalid) > 0 {
		return &DataError{
			Reason:  "My Score must be an integer in -5..5 excluding 0",
			Invalid: invalid,
		}
	}
	return nil
}

// Fit trains a model on the rows with a user score.
func Fit(rows []models.Book, cfg Config) (*Model, error) {
	if err := Validate(rows); err != nil {
		return nil, err
	}
	training := TrainingRows(rows)

	authors := make([]string, len(training))
	genres := make([]string, len(training))
	var ratings []int
	for i, r := range training {
		authors[i] = r.Author
		genres[i] = r.Genre
		ratings = append(ratings, int(*r.MyScore))
	}
	slices.Sort(ratings)
	ratings = slices.Compact(ratings)

	m := &Model{
		cfg:     cfg,
		authors: labels.Fit(authors, cfg.Policy),
		genres:  labels.Fit(genres, cfg.Policy),
		ratings: ratings,
	}

	for _, r := range training {
		x, _ := m.features(r)
		class, _ := slices.BinarySearch(ratings, int(*r.MyScore))
		m.x = append(m.x, x)
		m.y = append(m.y, class)
	}

	f, err := forest.Fit(m.x, m.y, len(ratings), cfg.Forest)
	if err != nil {
		return nil, fmt.Errorf("failed to fit forest: %w", err)
	}
	m.forest = f

	slog.Debug("Fitted rating model",
		"rows", len(training),
		"ratings", ratings,
		"authors", m.authors.FittedLen(),
		"genres", m.genres.FittedLen())

	return m, nil
}

func (m *Model) features(r models.Book) ([]float64, []UnseenLabel) {
	var unseen []UnseenLabel

	author, applied := m.authors.Encode(r.Author)
	if applied {
		unseen = append(unseen, UnseenLabel{Title: r.Title, Feature: FeatureAuthor, Label: r.Author, Code: author, Policy: m.authors.Policy()})
	}
	genre, applied := m.genres.Encode(r.Genre)
	if applied {
		unseen = append(unseen, UnseenLabel{Title: r.Title, Feature: FeatureGenre, Label: r.Genre, Code: genre, Policy: m.genres.Policy()})
	}

	return []float64{r.EndingScore, r.JourneyScore, float64(author), float64(genre)}, unseen
}

// Predict rates each row. Unseen author or genre values are encoded through
// the model's policy and reported on the prediction.
func (m *Model) Predict(rows []models.Book) ([]Prediction, error) {
	predictions := make([]Prediction, 0, len(rows))
	for _, r := range rows {
		x, unseen := m.features(r)
		for _, u := range unseen {
			slog.Info("Unseen label", "title", u.Title, "feature", u.Feature, "label", u.Label, "code", u.Code, "policy", u.Policy)
		}

		proba, err := m.forest.PredictProba(x)
		if err != nil {
			return nil, fmt.Errorf("failed to predict %q: %w", r.Title, err)
		}
		class := argmax(proba)

		predictions = append(predictions, Prediction{
			Title:       r.Title,
			Score:       m.ratings[class],
			Probability: proba[class],
			Unseen:      unseen,
		})
	}
	return predictions, nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// TrainingAccuracy is the share of training rows the model rates correctly.
// It measures fit to the training data, not generalization.
func (m *Model) TrainingAccuracy() float64 {
	if len(m.x) == 0 {
		return 0
	}
	correct := 0
	for i, x := range m.x {
		class, err := m.forest.Predict(x)
		if err == nil && class == m.y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(m.x))
}

// Ratings returns the ratings the model can predict, ascending.
func (m *Model) Ratings() []int {
	return slices.Clone(m.ratings)
}

// TrainingSize returns the number of rows the model was fitted on.
func (m *Model) TrainingSize() int {
	return len(m.x)
}

// Authors returns the author encoder.
func (m *Model) Authors() *labels.Encoder {
	return m.authors
}

// Genres returns the genre encoder.
func (m *Model) Genres() *labels.Encoder {
	return m.genres
}

// Config returns the configuration the model was fitted with.
func (m *Model) Config() Config {
	return m.cfg
}
