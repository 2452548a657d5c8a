// Package forest is a seeded random forest classifier over dense float
// features: bootstrapped CART trees split on Gini impurity, grown until their
// leaves are pure, with a random feature subset considered at each split.
// Training with the same data and seed always yields the same forest.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// DefaultSeed is the seed used when none is configured.
const DefaultSeed = 42

// Config controls training.
type Config struct {
	// Trees is the number of trees in the forest.
	Trees int `yaml:"trees" json:"trees"`
	// MaxFeatures is the number of features considered per split. Zero means
	// floor(sqrt(features)).
	MaxFeatures int `yaml:"max_features" json:"max_features"`
	// MaxDepth limits tree depth. Zero grows trees fully.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// Bootstrap samples the training rows with replacement for each tree.
	Bootstrap bool   `yaml:"bootstrap" json:"bootstrap"`
	Seed      uint64 `yaml:"seed" json:"seed"`
}

// DefaultConfig returns 100 bootstrapped, fully grown trees seeded with 42.
func DefaultConfig() Config {
	return Config{
		Trees:     100,
		Bootstrap: true,
		Seed:      DefaultSeed,
	}
}

var ErrNoSamples = errors.New("no training samples")

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	dist      []float64 // class proportions, leaves only
}

func (n *node) leaf() bool {
	return n.left == nil
}

// Forest is a fitted classifier. Prediction is read-only and safe for
// concurrent use.
type Forest struct {
	trees       []*node
	classes     int
	features    int
	maxFeatures int
}

// Fit trains a forest. y holds class indices in [0, classes).
func Fit(x [][]float64, y []int, classes int, cfg Config) (*Forest, error) {
	if len(x) == 0 {
		return nil, ErrNoSamples
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d samples but %d targets", len(x), len(y))
	}
	if classes < 1 {
		return nil, fmt.Errorf("invalid class count %d", classes)
	}
	features := len(x[0])
	if features == 0 {
		return nil, errors.New("samples have no features")
	}
	for i, row := range x {
		if len(row) != features {
			return nil, fmt.Errorf("sample %d has %d features, want %d", i, len(row), features)
		}
		if y[i] < 0 || y[i] >= classes {
			return nil, fmt.Errorf("sample %d has class %d outside [0, %d)", i, y[i], classes)
		}
	}
	if cfg.Trees <= 0 {
		cfg.Trees = DefaultConfig().Trees
	}

	maxFeatures := cfg.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Floor(math.Sqrt(float64(features))))
	}
	maxFeatures = min(max(maxFeatures, 1), features)

	// Per-tree seeds are drawn up front so the result does not depend on
	// scheduling.
	master := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	seeds := make([]uint64, cfg.Trees)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	f := &Forest{
		trees:       make([]*node, cfg.Trees),
		classes:     classes,
		features:    features,
		maxFeatures: maxFeatures,
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range f.trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seeds[i], uint64(i)))
			b := &builder{x: x, y: y, classes: classes, maxFeatures: maxFeatures, maxDepth: cfg.MaxDepth, rng: rng}

			samples := make([]int, len(x))
			for j := range samples {
				if cfg.Bootstrap {
					samples[j] = rng.IntN(len(x))
				} else {
					samples[j] = j
				}
			}
			f.trees[i] = b.grow(samples, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to grow trees: %w", err)
	}

	return f, nil
}

// Classes returns the number of classes.
func (f *Forest) Classes() int {
	return f.classes
}

// Trees returns the number of trees.
func (f *Forest) Trees() int {
	return len(f.trees)
}

// MaxFeatures returns the features considered per split.
func (f *Forest) MaxFeatures() int {
	return f.maxFeatures
}

// PredictProba returns the mean of the trees' leaf class proportions.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.features {
		return nil, fmt.Errorf("got %d features, want %d", len(x), f.features)
	}

	proba := make([]float64, f.classes)
	for _, t := range f.trees {
		n := t
		for !n.leaf() {
			if x[n.feature] <= n.threshold {
				n = n.left
			} else {
				n = n.right
			}
		}
		for c, p := range n.dist {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.trees))
	}
	return proba, nil
}

// Predict returns the most probable class. Ties go to the lowest class index.
func (f *Forest) Predict(x []float64) (int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return best, nil
}

type builder struct {
	x           [][]float64
	y           []int
	classes     int
	maxFeatures int
	maxDepth    int
	rng         *rand.Rand
}

func (b *builder) distribution(samples []int) []float64 {
	dist := make([]float64, b.classes)
	for _, s := range samples {
		dist[b.y[s]]++
	}
	for c := range dist {
		dist[c] /= float64(len(samples))
	}
	return dist
}

func (b *builder) grow(samples []int, depth int) *node {
	dist := b.distribution(samples)
	if len(samples) < 2 || pure(dist) || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return &node{dist: dist}
	}

	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		return &node{dist: dist}
	}

	var left, right []int
	for _, s := range samples {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{dist: dist}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      b.grow(left, depth+1),
		right:     b.grow(right, depth+1),
	}
}

// bestSplit visits features in random order and keeps drawing past
// maxFeatures until at least one feature that varies has been evaluated.
func (b *builder) bestSplit(samples []int) (feature int, threshold float64, ok bool) {
	bestImpurity := math.Inf(1)
	evaluated := 0

	order := make([]int, len(samples))
	for _, f := range b.rng.Perm(len(b.x[0])) {
		if evaluated >= b.maxFeatures && ok {
			break
		}
		evaluated++

		copy(order, samples)
		slices.SortStableFunc(order, func(i, j int) int {
			switch {
			case b.x[i][f] < b.x[j][f]:
				return -1
			case b.x[i][f] > b.x[j][f]:
				return 1
			}
			return 0
		})

		left := make([]float64, b.classes)
		right := make([]float64, b.classes)
		for _, s := range order {
			right[b.y[s]]++
		}

		n := float64(len(order))
		for i := 0; i < len(order)-1; i++ {
			c := b.y[order[i]]
			left[c]++
			right[c]--

			lo, hi := b.x[order[i]][f], b.x[order[i+1]][f]
			if lo == hi {
				continue
			}

			nl := float64(i + 1)
			impurity := nl/n*gini(left, nl) + (n-nl)/n*gini(right, n-nl)
			if impurity < bestImpurity {
				bestImpurity = impurity
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				ok = true
			}
		}
	}

	return feature, threshold, ok
}

func gini(counts []float64, total float64) float64 {
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func pure(dist []float64) bool {
	for _, p := range dist {
		if p == 1 {
			return true
		}
	}
	return false
}
