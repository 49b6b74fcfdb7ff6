package artifact

import (
	"errors"
	"os"
	"testing"

	"NetSentry/internal/classifier"
	"NetSentry/internal/config"
	"NetSentry/internal/encoder"
	"NetSentry/internal/knownbad"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()
	X := [][]float64{
		{0, 0, 0, 1000, 80, 60, 0},
		{1, 1, 0, 4444, 80, 60, 0},
		{0, 1, 1, 1001, 53, 70, 0},
		{1, 0, 0, 4444, 22, 64, 0},
	}
	y := []int{0, 1, 0, 1}
	forest, err := classifier.Fit(X, y, classifier.Params{NumEstimators: 3, Seed: 1})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return &Bundle{
		Encoders: encoder.FitSet([]string{"10.0.0.1", "10.0.0.2"}, []string{"8.8.8.8", "1.1.1.1"}, []string{"tcp", "udp"}),
		Model:    forest,
		KnownBad: knownbad.New([]knownbad.Pair{{IP: "10.0.0.2", Port: 4444}}),
	}
}

func TestBundle_SaveAndLoad(t *testing.T) {
	cfg := config.Default()
	cfg.Artifacts.Dir = t.TempDir()

	want := testBundle(t)
	if err := want.Save(cfg.Artifacts.Dir, PathsFrom(cfg)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := LoadBundle(cfg)
	if err != nil {
		t.Fatalf("LoadBundle failed: %v", err)
	}
	if !got.Encoders.Equal(want.Encoders) {
		t.Error("Encoders changed across save/load")
	}
	if !got.KnownBad.Equal(want.KnownBad) {
		t.Error("Known-bad set changed across save/load")
	}
	if len(got.Model.Trees) != len(want.Model.Trees) {
		t.Errorf("Expected %d trees, got %d", len(want.Model.Trees), len(got.Model.Trees))
	}
}

func TestLoadBundle_MissingArtifact(t *testing.T) {
	cfg := config.Default()
	cfg.Artifacts.Dir = t.TempDir()
	if err := testBundle(t).Save(cfg.Artifacts.Dir, PathsFrom(cfg)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for name, path := range map[string]string{
		"encoder":   PathsFrom(cfg).ProtoEncoder,
		"model":     PathsFrom(cfg).Model,
		"known-bad": PathsFrom(cfg).KnownBad,
	} {
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if err := os.Remove(path); err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			defer os.WriteFile(path, data, 0644)

			_, err = LoadBundle(cfg)
			if !errors.Is(err, ErrArtifactMissing) {
				t.Errorf("Expected ErrArtifactMissing, got %v", err)
			}
		})
	}
}

func TestLoadBundle_CorruptArtifact(t *testing.T) {
	cfg := config.Default()
	cfg.Artifacts.Dir = t.TempDir()
	if err := testBundle(t).Save(cfg.Artifacts.Dir, PathsFrom(cfg)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.WriteFile(PathsFrom(cfg).Model, []byte("not a model"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadBundle(cfg); !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("Expected ErrArtifactMissing for an unreadable model, got %v", err)
	}
}
