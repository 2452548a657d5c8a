package forest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two well separated clusters on the first feature; the second never varies,
// so every split has to fall back to the first.
func clusters() ([][]float64, []int) {
	x := [][]float64{
		{-8, 5}, {-7.5, 5}, {-9, 5}, {-6, 5}, {-7, 5}, {-8.5, 5},
		{7, 5}, {8, 5}, {6.5, 5}, {9, 5}, {7.5, 5}, {8.2, 5},
	}
	y := []int{0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	return x, y
}

func TestFitPredictSeparable(t *testing.T) {
	x, y := clusters()
	f, err := Fit(x, y, 2, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 100, f.Trees())
	assert.Equal(t, 1, f.MaxFeatures())

	tests := []struct {
		name     string
		sample   []float64
		expected int
	}{
		{"far negative", []float64{-10, 2}, 0},
		{"far positive", []float64{10, 2}, 1},
		{"near negative cluster", []float64{-6.5, 0}, 0},
		{"near positive cluster", []float64{6.8, 4}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Predict(tt.sample)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFitIsDeterministic(t *testing.T) {
	x := [][]float64{
		{1, 0, 3, 1}, {2, 1, 0, 0}, {3, 0, 1, 2}, {4, 1, 2, 0},
		{5, 0, 3, 1}, {6, 1, 0, 2}, {7, 0, 1, 0}, {8, 1, 2, 1},
	}
	y := []int{0, 1, 2, 0, 1, 2, 0, 1}

	a, err := Fit(x, y, 3, DefaultConfig())
	require.NoError(t, err)
	b, err := Fit(x, y, 3, DefaultConfig())
	require.NoError(t, err)

	probes := [][]float64{{1.5, 0, 2, 1}, {4.5, 1, 1, 0}, {7.5, 0, 3, 2}, {0, 0, 0, 0}}
	for _, p := range probes {
		pa, err := a.PredictProba(p)
		require.NoError(t, err)
		pb, err := b.PredictProba(p)
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
	}
}

func TestPredictProbaSumsToOne(t *testing.T) {
	x, y := clusters()
	f, err := Fit(x, y, 3, DefaultConfig())
	require.NoError(t, err)

	proba, err := f.PredictProba([]float64{0, 0})
	require.NoError(t, err)
	require.Len(t, proba, 3)

	sum := 0.0
	for _, p := range proba {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Zero(t, proba[2], "class never seen in training")
}

func TestTrainingSetIsFitted(t *testing.T) {
	x, y := clusters()
	cfg := DefaultConfig()
	cfg.Bootstrap = false
	f, err := Fit(x, y, 2, cfg)
	require.NoError(t, err)

	for i := range x {
		got, err := f.Predict(x[i])
		require.NoError(t, err)
		assert.Equal(t, y[i], got, "sample %d", i)
	}
}

func TestSingleClass(t *testing.T) {
	f, err := Fit([][]float64{{1, 2}, {3, 4}}, []int{0, 0}, 1, DefaultConfig())
	require.NoError(t, err)

	got, err := f.Predict([]float64{100, -100})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestDuplicateFeaturesDifferentClasses(t *testing.T) {
	// Identical rows cannot be split; the tree must stop instead of recursing.
	x := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	y := []int{0, 1, 1}

	f, err := Fit(x, y, 2, Config{Trees: 5, Seed: 7})
	require.NoError(t, err)

	proba, err := f.PredictProba([]float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, proba[1], 1e-9)
}

func TestFitErrors(t *testing.T) {
	tests := []struct {
		name    string
		x       [][]float64
		y       []int
		classes int
	}{
		{"no samples", nil, nil, 2},
		{"length mismatch", [][]float64{{1}}, []int{0, 1}, 2},
		{"ragged features", [][]float64{{1, 2}, {1}}, []int{0, 1}, 2},
		{"class out of range", [][]float64{{1}}, []int{3}, 2},
		{"no features", [][]float64{{}}, []int{0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.x, tt.y, tt.classes, DefaultConfig())
			assert.Error(t, err)
		})
	}

	_, err := Fit(nil, nil, 2, DefaultConfig())
	assert.True(t, errors.Is(err, ErrNoSamples))
}

func TestPredictWrongWidth(t *testing.T) {
	x, y := clusters()
	f, err := Fit(x, y, 2, DefaultConfig())
	require.NoError(t, err)

	_, err = f.Predict([]float64{1})
	assert.Error(t, err)
}
