// Package artifact loads and stores the trained artifacts shared by the trainer and the
// sentinel.
package artifact

import (
	"errors"
	"fmt"
	"os"

	"NetSentry/internal/classifier"
	"NetSentry/internal/config"
	"NetSentry/internal/encoder"
	"NetSentry/internal/knownbad"

	zlog "github.com/rs/zerolog/log"
)

// ErrArtifactMissing is returned when an artifact file is absent or unreadable.
var ErrArtifactMissing = errors.New("artifact missing")

// Paths holds the resolved location of every artifact file.
type Paths struct {
	SrcIPEncoder string
	DstIPEncoder string
	ProtoEncoder string
	Model        string
	KnownBad     string
}

// PathsFrom resolves artifact file names against the configured directory.
func PathsFrom(cfg *config.Config) Paths {
	a := cfg.Artifacts
	return Paths{
		SrcIPEncoder: cfg.ArtifactPath(a.SrcIPEncoder),
		DstIPEncoder: cfg.ArtifactPath(a.DstIPEncoder),
		ProtoEncoder: cfg.ArtifactPath(a.ProtoEncoder),
		Model:        cfg.ArtifactPath(a.Model),
		KnownBad:     cfg.ArtifactPath(a.KnownBad),
	}
}

func (p Paths) all() []string {
	return []string{p.SrcIPEncoder, p.DstIPEncoder, p.ProtoEncoder, p.Model, p.KnownBad}
}

// Bundle is everything the decision engine needs, loaded once and never mutated.
type Bundle struct {
	Encoders *encoder.Set
	Model    *classifier.Forest
	KnownBad *knownbad.Set
}

// LoadBundle reads all artifacts named by cfg. Any failure is reported as
// ErrArtifactMissing wrapping the underlying cause.
func LoadBundle(cfg *config.Config) (*Bundle, error) {
	return LoadPaths(PathsFrom(cfg))
}

// LoadPaths reads all artifacts from explicit paths.
func LoadPaths(p Paths) (*Bundle, error) {
	for _, path := range p.all() {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArtifactMissing, path, err)
		}
	}

	encoders, err := encoder.LoadSet(p.SrcIPEncoder, p.DstIPEncoder, p.ProtoEncoder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMissing, err)
	}
	model, err := classifier.Load(p.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMissing, err)
	}
	known, err := knownbad.Load(p.KnownBad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMissing, err)
	}

	zlog.Info().
		Int("src_ip_classes", encoders.SrcIP.Len()).
		Int("dst_ip_classes", encoders.DstIP.Len()).
		Int("proto_classes", encoders.Proto.Len()).
		Int("trees", len(model.Trees)).
		Int("known_bad_pairs", known.Len()).
		Msg("Artifacts loaded")

	return &Bundle{Encoders: encoders, Model: model, KnownBad: known}, nil
}

// Save writes every artifact of the bundle, creating the directory if needed.
func (b *Bundle) Save(dir string, p Paths) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := b.Encoders.Save(p.SrcIPEncoder, p.DstIPEncoder, p.ProtoEncoder); err != nil {
		return err
	}
	if err := b.Model.Save(p.Model); err != nil {
		return err
	}
	return b.KnownBad.Save(p.KnownBad)
}
