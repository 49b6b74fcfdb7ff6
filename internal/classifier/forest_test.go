package classifier

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"NetSentry/internal/model"
)

// separable returns rows whose label is decided by the source port column alone.
func separable(n int) ([][]float64, []int) {
	X := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		port := float64(i % 100)
		X[i] = []float64{float64(i % 3), 0, 1, port, 443, 60, 0}
		if port >= 50 {
			y[i] = 1
		}
	}
	return X, y
}

func TestFit_LearnsSeparableData(t *testing.T) {
	X, y := separable(400)
	f, err := Fit(X, y, Params{NumEstimators: 15, Seed: 7})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	acc, err := f.Accuracy(X, y)
	if err != nil {
		t.Fatalf("Accuracy failed: %v", err)
	}
	if acc < 0.99 {
		t.Errorf("Expected near-perfect training accuracy, got %.3f", acc)
	}

	low, _ := f.PredictProba([]float64{0, 0, 1, 10, 443, 60, 0})
	high, _ := f.PredictProba([]float64{0, 0, 1, 90, 443, 60, 0})
	if low >= 0.5 || high <= 0.5 {
		t.Errorf("Unexpected probabilities: low=%.3f high=%.3f", low, high)
	}
}

func TestFit_DeterministicForSeed(t *testing.T) {
	X, y := separable(200)
	a, err := Fit(X, y, Params{NumEstimators: 8, Seed: 42, NumWorkers: 1})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	b, err := Fit(X, y, Params{NumEstimators: 8, Seed: 42, NumWorkers: 4})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("Same data and seed must produce identical forests regardless of worker count")
	}
}

func TestPredictProba_Errors(t *testing.T) {
	X, y := separable(50)
	f, err := Fit(X, y, Params{NumEstimators: 2, Seed: 1})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if _, err := f.PredictProba([]float64{1, 2, 3}); !errors.Is(err, ErrFeatureCount) {
		t.Errorf("Expected ErrFeatureCount, got %v", err)
	}
	if _, err := f.PredictProba([]float64{0, 0, 1, math.NaN(), 443, 60, 0}); !errors.Is(err, ErrInvalidFeature) {
		t.Errorf("Expected ErrInvalidFeature, got %v", err)
	}
	if _, err := (&Forest{NumFeatures: 7}).PredictProba(make([]float64, 7)); !errors.Is(err, ErrEmptyModel) {
		t.Errorf("Expected ErrEmptyModel, got %v", err)
	}
}

func TestFit_RejectsBadInput(t *testing.T) {
	if _, err := Fit(nil, nil, DefaultParams()); err == nil {
		t.Error("Expected an error for empty input")
	}
	if _, err := Fit([][]float64{{1, 2}, {1}}, []int{0, 1}, DefaultParams()); !errors.Is(err, ErrFeatureCount) {
		t.Errorf("Expected ErrFeatureCount for ragged rows, got %v", err)
	}
	if _, err := Fit([][]float64{{1}}, []int{2}, DefaultParams()); err == nil {
		t.Error("Expected an error for a non-binary label")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	X, y := separable(120)
	f, err := Fit(X, y, Params{NumEstimators: 5, Seed: 3})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "model.gob.gz")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	rec := model.EncodedRecord{SrcIPCode: 1, ProtoCode: 1, SrcPort: 77, DstPort: 443, FwdBytes: 60}
	want, _ := f.PredictMaliciousProbability(rec)
	got, err := loaded.PredictMaliciousProbability(rec)
	if err != nil {
		t.Fatalf("Prediction with loaded model failed: %v", err)
	}
	if got != want {
		t.Errorf("Loaded model predicts %.4f, original %.4f", got, want)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.gob.gz")); err == nil {
		t.Fatal("Expected an error for a missing model file")
	}
}

func TestTrainTestSplit(t *testing.T) {
	train, test := TrainTestSplit(10, 0.2, 42)
	if len(train) != 8 || len(test) != 2 {
		t.Fatalf("Expected 8/2 split, got %d/%d", len(train), len(test))
	}

	train2, test2 := TrainTestSplit(10, 0.2, 42)
	if !reflect.DeepEqual(train, train2) || !reflect.DeepEqual(test, test2) {
		t.Error("Split must be reproducible for the same seed")
	}

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		if seen[i] {
			t.Fatalf("Index %d appears twice", i)
		}
		seen[i] = true
	}
	if len(seen) != 10 {
		t.Errorf("Expected all 10 indices, got %d", len(seen))
	}
}
