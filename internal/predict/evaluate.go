package predict

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/lehigh-university-libraries/bookscore/internal/models"
)

// ClassMetrics holds held-out metrics for one rating.
type ClassMetrics struct {
	Rating    int     `json:"rating" yaml:"rating"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	Support   int     `json:"support" yaml:"support"`
}

// Evaluation is the result of a held-out split. Unlike TrainingAccuracy it
// scores rows the model never saw.
type Evaluation struct {
	Holdout   float64        `json:"holdout" yaml:"holdout"`
	TrainSize int            `json:"train_size" yaml:"train_size"`
	TestSize  int            `json:"test_size" yaml:"test_size"`
	Accuracy  float64        `json:"accuracy" yaml:"accuracy"`
	MacroF1   float64        `json:"macro_f1" yaml:"macro_f1"`
	Classes   []ClassMetrics `json:"classes" yaml:"classes"`
}

// Split shuffles the rated rows with the forest seed and holds out
// ceil(holdout * n) of them for testing.
func Split(rows []models.Book, holdout float64, seed uint64) (train, test []models.Book, err error) {
	if holdout <= 0 || holdout >= 1 {
		return nil, nil, fmt.Errorf("holdout fraction must be between 0 and 1, got %v", holdout)
	}

	rated := TrainingRows(rows)
	n := len(rated)
	testSize := int(math.Ceil(holdout * float64(n)))
	if n < 2 || testSize >= n {
		return nil, nil, &DataError{Reason: fmt.Sprintf("need at least 2 rated books for a %.0f%% holdout, have %d", holdout*100, n)}
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	for i, p := range perm {
		if i < testSize {
			test = append(test, rated[p])
		} else {
			train = append(train, rated[p])
		}
	}
	return train, test, nil
}

// Evaluate fits on the training part of a seeded split and scores the
// held-out part.
func Evaluate(rows []models.Book, holdout float64, cfg Config) (*Evaluation, error) {
	if err := Validate(rows); err != nil {
		return nil, err
	}

	train, test, err := Split(rows, holdout, cfg.Forest.Seed)
	if err != nil {
		return nil, err
	}

	m, err := Fit(train, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to fit on training split: %w", err)
	}

	predictions, err := m.Predict(test)
	if err != nil {
		return nil, fmt.Errorf("failed to predict held-out rows: %w", err)
	}

	actual := make([]int, len(test))
	predicted := make([]int, len(test))
	for i := range test {
		actual[i] = int(*test[i].MyScore)
		predicted[i] = predictions[i].Score
	}

	eval := Score(actual, predicted)
	eval.Holdout = holdout
	eval.TrainSize = len(train)
	eval.TestSize = len(test)
	return eval, nil
}

// Score computes accuracy and per-rating precision, recall and F1. Ratings
// that appear in either slice get a row; undefined ratios are 0.
func Score(actual, predicted []int) *Evaluation {
	eval := &Evaluation{}
	if len(actual) == 0 {
		return eval
	}

	var ratings []int
	ratings = append(ratings, actual...)
	ratings = append(ratings, predicted...)
	slices.Sort(ratings)
	ratings = slices.Compact(ratings)

	correct := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	eval.Accuracy = float64(correct) / float64(len(actual))

	var f1Sum float64
	for _, rating := range ratings {
		var tp, fp, fn int
		for i := range actual {
			switch {
			case actual[i] == rating && predicted[i] == rating:
				tp++
			case predicted[i] == rating:
				fp++
			case actual[i] == rating:
				fn++
			}
		}

		cm := ClassMetrics{
			Rating:    rating,
			Precision: ratio(tp, tp+fp),
			Recall:    ratio(tp, tp+fn),
			Support:   tp + fn,
		}
		if cm.Precision+cm.Recall > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
		}
		f1Sum += cm.F1
		eval.Classes = append(eval.Classes, cm)
	}
	eval.MacroF1 = f1Sum / float64(len(ratings))

	return eval
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
