package predict

import (
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/bookscore/internal/labels"
	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(title, author, genre string, ending, journey float64, score *float64) models.Book {
	return models.Book{Title: title, Author: author, Genre: genre, EndingScore: ending, JourneyScore: journey, MyScore: score}
}

// Loved books have strongly positive scores, disliked ones strongly negative.
func trainingSet() []models.Book {
	return []models.Book{
		book("A1", "Austen", "Romance", 8, 7, models.FloatPtr(5)),
		book("A2", "Austen", "Romance", 7.5, 8, models.FloatPtr(5)),
		book("A3", "Herbert", "Science Fiction", 9, 6.5, models.FloatPtr(5)),
		book("A4", "Le Guin", "Science Fiction", 8.5, 7.2, models.FloatPtr(5)),
		book("B1", "Brown", "Thriller", -7, -6, models.FloatPtr(-4)),
		book("B2", "Brown", "Thriller", -8, -5.5, models.FloatPtr(-4)),
		book("B3", "Meyer", "Romance", -6.5, -7, models.FloatPtr(-4)),
		book("B4", "Meyer", "Fantasy", -7.2, -6.8, models.FloatPtr(-4)),
		book("U1", "Tolkien", "Fantasy", 8, 8, nil),
	}
}

func TestValidRating(t *testing.T) {
	for v := -5; v <= 5; v++ {
		assert.Equal(t, v != 0, ValidRating(float64(v)), "rating %d", v)
	}
	for _, v := range []float64{6, -6, 2.5, 10} {
		assert.False(t, ValidRating(v), "rating %v", v)
	}
}

func TestFitRejectsInvalidScores(t *testing.T) {
	tests := []struct {
		name    string
		scores  []float64
		invalid []float64
	}{
		{"zero", []float64{3, 0}, []float64{0}},
		{"six", []float64{6, 2}, []float64{6}},
		{"fraction", []float64{2.5}, []float64{2.5}},
		{"every offending value listed", []float64{0, 4, 6, -7}, []float64{0, 6, -7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []models.Book
			for i, s := range tt.scores {
				rows = append(rows, book(string(rune('a'+i)), "x", "y", 1, 1, models.FloatPtr(s)))
			}

			_, err := Fit(rows, DefaultConfig())
			var dataErr *DataError
			require.True(t, errors.As(err, &dataErr), "expected DataError, got %v", err)
			require.Len(t, dataErr.Invalid, len(tt.invalid))
			for i, v := range tt.invalid {
				assert.Equal(t, v, dataErr.Invalid[i].Value)
			}
		})
	}
}

func TestFitAcceptsEveryValidScore(t *testing.T) {
	var rows []models.Book
	for v := -5; v <= 5; v++ {
		if v == 0 {
			continue
		}
		rows = append(rows, book(string(rune('a'+v+5)), "x", "y", float64(v), float64(v), models.FloatPtr(float64(v))))
	}

	m, err := Fit(rows, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []int{-5, -4, -3, -2, -1, 1, 2, 3, 4, 5}, m.Ratings())
	assert.Equal(t, 10, m.TrainingSize())
}

func TestFitNoRatedRows(t *testing.T) {
	rows := []models.Book{book("U", "x", "y", 1, 1, nil)}

	_, err := Fit(rows, DefaultConfig())
	var dataErr *DataError
	assert.True(t, errors.As(err, &dataErr))

	_, err = Fit(nil, DefaultConfig())
	assert.True(t, errors.As(err, &dataErr))
}

func TestPredict(t *testing.T) {
	m, err := Fit(trainingSet(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 8, m.TrainingSize())
	assert.Equal(t, 1.0, m.TrainingAccuracy())

	predictions, err := m.Predict([]models.Book{
		book("Loved", "Austen", "Romance", 8.2, 7.4, nil),
		book("Hated", "Brown", "Thriller", -7.5, -6, nil),
	})
	require.NoError(t, err)
	require.Len(t, predictions, 2)

	assert.Equal(t, "Loved", predictions[0].Title)
	assert.Equal(t, 5, predictions[0].Score)
	assert.Equal(t, -4, predictions[1].Score)
	assert.Empty(t, predictions[0].Unseen)
	assert.Greater(t, predictions[0].Probability, 0.5)
}

func TestPredictUnseenLabels(t *testing.T) {
	m, err := Fit(trainingSet(), DefaultConfig())
	require.NoError(t, err)

	predictions, err := m.Predict([]models.Book{
		book("New", "Morrison", "Literary", 8, 8, nil),
	})
	require.NoError(t, err)
	require.Len(t, predictions, 1)

	unseen := predictions[0].Unseen
	require.Len(t, unseen, 2)
	assert.Equal(t, FeatureAuthor, unseen[0].Feature)
	assert.Equal(t, "Morrison", unseen[0].Label)
	assert.Equal(t, m.Authors().FittedLen(), unseen[0].Code)
	assert.Equal(t, FeatureGenre, unseen[1].Feature)
	assert.Equal(t, labels.PolicyExtend, unseen[1].Policy)
}

func TestPredictUnknownPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = labels.PolicyUnknown
	m, err := Fit(trainingSet(), cfg)
	require.NoError(t, err)

	predictions, err := m.Predict([]models.Book{
		book("New 1", "Morrison", "Literary", 8, 8, nil),
		book("New 2", "Rushdie", "Magical Realism", 8, 8, nil),
	})
	require.NoError(t, err)

	assert.Equal(t, predictions[0].Unseen[0].Code, predictions[1].Unseen[0].Code)
	label, err := m.Authors().Decode(predictions[0].Unseen[0].Code)
	require.NoError(t, err)
	assert.Equal(t, labels.UnknownLabel, label)
}

func TestFitIsDeterministic(t *testing.T) {
	probe := []models.Book{book("P", "Tolkien", "Fantasy", 0.5, -0.5, nil)}

	var scores []int
	for i := 0; i < 3; i++ {
		m, err := Fit(trainingSet(), DefaultConfig())
		require.NoError(t, err)
		p, err := m.Predict(probe)
		require.NoError(t, err)
		scores = append(scores, p[0].Score)
	}
	assert.Equal(t, scores[0], scores[1])
	assert.Equal(t, scores[1], scores[2])
}

func TestDataErrorMessage(t *testing.T) {
	err := &DataError{
		Reason:  "bad scores",
		Invalid: []InvalidRating{{Title: "Dune", Value: 0}, {Title: "Emma", Value: 6}},
	}
	assert.Equal(t, `bad scores: "Dune"=0, "Emma"=6`, err.Error())
}
