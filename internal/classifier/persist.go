package classifier

import (
	"encoding/gob"
	"fmt"
	"os"

	"NetSentry/internal/model"

	"github.com/klauspost/compress/gzip"
)

const artifactVersion = 1

type artifact struct {
	Version      int
	FeatureNames []string
	Forest       *Forest
}

// Save writes the forest to path as gzip-compressed gob.
func (f *Forest) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file '%s': %w", path, err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	a := artifact{Version: artifactVersion, FeatureNames: model.FeatureNames, Forest: f}
	if err := gob.NewEncoder(gz).Encode(&a); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush model file '%s': %w", path, err)
	}
	return file.Sync()
}

// Load reads a forest written by Save and checks that it was trained on the current
// feature schema.
func Load(path string) (*Forest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file '%s': %w", path, err)
	}
	defer gz.Close()

	var a artifact
	if err := gob.NewDecoder(gz).Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode model file '%s': %w", path, err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("model file '%s' has version %d, expected %d", path, a.Version, artifactVersion)
	}
	if len(a.FeatureNames) != len(model.FeatureNames) {
		return nil, fmt.Errorf("%w: model trained on %v", ErrFeatureCount, a.FeatureNames)
	}
	for i, name := range model.FeatureNames {
		if a.FeatureNames[i] != name {
			return nil, fmt.Errorf("model feature %d is '%s', expected '%s'", i, a.FeatureNames[i], name)
		}
	}
	if a.Forest == nil || len(a.Forest.Trees) == 0 {
		return nil, fmt.Errorf("model file '%s': %w", path, ErrEmptyModel)
	}
	return a.Forest, nil
}
