// Package classifier implements the binary random forest used to score packets.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"NetSentry/internal/model"
)

var (
	// ErrFeatureCount is returned when an input vector has the wrong width.
	ErrFeatureCount = errors.New("feature count mismatch")
	// ErrInvalidFeature is returned for NaN or infinite inputs.
	ErrInvalidFeature = errors.New("invalid feature value")
	// ErrEmptyModel is returned when predicting with a forest that has no trees.
	ErrEmptyModel = errors.New("model has no trees")
)

// Params controls forest fitting.
type Params struct {
	NumEstimators int
	// MaxDepth limits tree depth; 0 grows trees until leaves are pure.
	MaxDepth       int
	MinSamplesLeaf int
	// MaxFeatures is the number of candidate features per split; 0 uses sqrt(width).
	MaxFeatures int
	Seed        int64
	// NumWorkers bounds concurrent tree fitting; 0 uses runtime.NumCPU().
	NumWorkers int
}

// DefaultParams mirrors the reference training run: 100 trees, seed 42.
func DefaultParams() Params {
	return Params{NumEstimators: 100, MinSamplesLeaf: 1, Seed: 42}
}

// Forest is an ensemble of binary classification trees.
type Forest struct {
	NumFeatures int
	Trees       []Tree
}

// Fit trains a forest on rows X with binary labels y (0 benign, 1 malicious).
// Each tree draws its bootstrap sample and feature choices from a seed derived from
// p.Seed before any tree is fitted, so the result does not depend on scheduling.
func Fit(X [][]float64, y []int, p Params) (*Forest, error) {
	if len(X) == 0 {
		return nil, errors.New("no training rows")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", ErrFeatureCount, len(X), len(y))
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrFeatureCount, i, len(row), width)
		}
		if y[i] != 0 && y[i] != 1 {
			return nil, fmt.Errorf("row %d has label %d, expected 0 or 1", i, y[i])
		}
	}

	if p.NumEstimators <= 0 {
		p.NumEstimators = 100
	}
	if p.MinSamplesLeaf <= 0 {
		p.MinSamplesLeaf = 1
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > width {
		p.MaxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(width)))))
	}
	workers := p.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	master := rand.New(rand.NewSource(p.Seed))
	seeds := make([]int64, p.NumEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	f := &Forest{NumFeatures: width, Trees: make([]Tree, p.NumEstimators)}
	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				f.Trees[i] = growTree(X, y, p, rand.New(rand.NewSource(seeds[i])))
			}
		}()
	}
	for i := 0; i < p.NumEstimators; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return f, nil
}

// PredictProba returns the averaged malicious probability for one feature vector.
func (f *Forest) PredictProba(x []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, ErrEmptyModel
	}
	if len(x) != f.NumFeatures {
		return 0, fmt.Errorf("%w: got %d, expected %d", ErrFeatureCount, len(x), f.NumFeatures)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: feature %d is %v", ErrInvalidFeature, i, v)
		}
	}

	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictMaliciousProbability scores an encoded record.
func (f *Forest) PredictMaliciousProbability(rec model.EncodedRecord) (float64, error) {
	return f.PredictProba(rec.Features())
}

// Predict returns 1 when the malicious probability is strictly greater than 0.5.
func (f *Forest) Predict(x []float64) (int, error) {
	p, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

// Accuracy returns the fraction of rows whose predicted label matches y.
func (f *Forest) Accuracy(X [][]float64, y []int) (float64, error) {
	if len(X) == 0 {
		return 0, nil
	}
	correct := 0
	for i, row := range X {
		pred, err := f.Predict(row)
		if err != nil {
			return 0, err
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(X)), nil
}

// TrainTestSplit shuffles n row indices with a fixed seed and returns the train and test
// partitions. The test partition holds ceil(n*testSize) rows.
func TrainTestSplit(n int, testSize float64, seed int64) (train, test []int) {
	nTest := int(math.Ceil(float64(n) * testSize))
	if nTest > n {
		nTest = n
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest]
}
