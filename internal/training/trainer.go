package training

import (
	"errors"
	"fmt"
	"time"

	"NetSentry/internal/artifact"
	"NetSentry/internal/classifier"
	"NetSentry/internal/config"
	"NetSentry/internal/encoder"
	"NetSentry/internal/knownbad"
	"NetSentry/internal/model"

	zlog "github.com/rs/zerolog/log"
)

// Options controls the split and the forest.
type Options struct {
	TestSize float64
	Params   classifier.Params
}

// OptionsFrom builds training options from the trainer config section.
func OptionsFrom(cfg config.TrainerConfig) Options {
	return Options{
		TestSize: cfg.TestSize,
		Params: classifier.Params{
			NumEstimators:  cfg.NumEstimators,
			MaxDepth:       cfg.MaxDepth,
			MinSamplesLeaf: cfg.MinSamplesLeaf,
			Seed:           cfg.Seed,
		},
	}
}

// Report summarises one training run.
type Report struct {
	PrimaryRows    int            `json:"primary_rows"`
	AuxiliaryRows  map[string]int `json:"auxiliary_rows"`
	DroppedRows    int            `json:"dropped_rows"`
	Samples        int            `json:"samples"`
	MaliciousRows  int            `json:"malicious_rows"`
	TrainRows      int            `json:"train_rows"`
	TestRows       int            `json:"test_rows"`
	Accuracy       float64        `json:"accuracy"`
	KnownBadPairs  int            `json:"known_bad_pairs"`
	SrcIPClasses   int            `json:"src_ip_classes"`
	DstIPClasses   int            `json:"dst_ip_classes"`
	ProtoClasses   int            `json:"proto_classes"`
	NamedProtocols []string       `json:"named_protocols,omitempty"`
	Duration       time.Duration  `json:"duration"`
	ArtifactsSaved bool           `json:"artifacts_saved"`
}

// Run loads the configured datasets, trains, and persists every artifact.
func Run(cfg *config.Config) (*Report, error) {
	start := time.Now()

	primary, err := LoadPrimary(cfg.Trainer.PrimaryCSV)
	if err != nil {
		return nil, err
	}
	aux, auxCounts, err := LoadAuxiliaryDir(cfg.Trainer.DatasetsDir)
	if err != nil {
		return nil, err
	}
	if len(aux) == 0 {
		zlog.Warn().Str("dir", cfg.Trainer.DatasetsDir).Msg("No auxiliary dataset rows found")
	}

	samples, dropped := Clean(append(primary, aux...))
	zlog.Info().Int("kept", len(samples)).Int("dropped", dropped).Msg("Datasets cleaned")

	bundle, report, err := Fit(samples, OptionsFrom(cfg.Trainer))
	if err != nil {
		return nil, err
	}
	report.PrimaryRows = len(primary)
	report.AuxiliaryRows = auxCounts
	report.DroppedRows = dropped

	if err := bundle.Save(cfg.Artifacts.Dir, artifact.PathsFrom(cfg)); err != nil {
		return nil, fmt.Errorf("failed to save artifacts: %w", err)
	}
	report.ArtifactsSaved = true
	report.Duration = time.Since(start)

	zlog.Info().
		Float64("accuracy", report.Accuracy).
		Int("train_rows", report.TrainRows).
		Int("test_rows", report.TestRows).
		Str("dir", cfg.Artifacts.Dir).
		Msg("Model training done")
	return report, nil
}

// Fit trains on cleaned samples. The encoders and the known-bad set are built from the
// full sample set before it is split, so every value seen in either partition has a code.
func Fit(samples []Sample, opts Options) (*artifact.Bundle, *Report, error) {
	if len(samples) < 2 {
		return nil, nil, errors.New("need at least two samples to train")
	}

	srcIPs := make([]string, len(samples))
	dstIPs := make([]string, len(samples))
	protos := make([]string, len(samples))
	for i, s := range samples {
		srcIPs[i], dstIPs[i], protos[i] = s.SrcIP, s.DstIP, s.Proto
	}
	encoders := encoder.FitSet(srcIPs, dstIPs, protos)
	named := encoders.NamedProtocols()
	if len(named) > 0 {
		zlog.Warn().Strs("protocols", named).Msg("Protocol classes without an IP protocol number will not match live packets")
	}
	known := BuildKnownBad(samples)

	X := make([][]float64, len(samples))
	y := make([]int, len(samples))
	malicious := 0
	for i, s := range samples {
		X[i] = encodeSample(encoders, s).Features()
		y[i] = s.Label
		malicious += s.Label
	}

	trainIdx, testIdx := classifier.TrainTestSplit(len(samples), opts.TestSize, opts.Params.Seed)
	if len(trainIdx) == 0 {
		return nil, nil, fmt.Errorf("test size %v leaves no training rows", opts.TestSize)
	}
	XTrain, yTrain := subset(X, y, trainIdx)
	XTest, yTest := subset(X, y, testIdx)
	zlog.Info().Int("train_rows", len(trainIdx)).Int("test_rows", len(testIdx)).Int("features", len(model.FeatureNames)).Msg("Split complete")

	forest, err := classifier.Fit(XTrain, yTrain, opts.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fit classifier: %w", err)
	}
	acc, err := forest.Accuracy(XTest, yTest)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to score classifier: %w", err)
	}

	report := &Report{
		Samples:        len(samples),
		MaliciousRows:  malicious,
		TrainRows:      len(trainIdx),
		TestRows:       len(testIdx),
		Accuracy:       acc,
		KnownBadPairs:  known.Len(),
		SrcIPClasses:   encoders.SrcIP.Len(),
		DstIPClasses:   encoders.DstIP.Len(),
		ProtoClasses:   encoders.Proto.Len(),
		NamedProtocols: named,
	}
	return &artifact.Bundle{Encoders: encoders, Model: forest, KnownBad: known}, report, nil
}

// BuildKnownBad collects the (source IP, source port) and (destination IP, destination
// port) pairs of every malicious sample, keeping raw addresses.
func BuildKnownBad(samples []Sample) *knownbad.Set {
	var pairs []knownbad.Pair
	for _, s := range samples {
		if s.Label != 1 {
			continue
		}
		pairs = append(pairs,
			knownbad.Pair{IP: s.SrcIP, Port: int(s.SrcPort)},
			knownbad.Pair{IP: s.DstIP, Port: int(s.DstPort)},
		)
	}
	return knownbad.New(pairs)
}

func encodeSample(enc *encoder.Set, s Sample) model.EncodedRecord {
	return model.EncodedRecord{
		SrcIPCode: enc.SrcIP.Encode(s.SrcIP),
		DstIPCode: enc.DstIP.Encode(s.DstIP),
		ProtoCode: enc.EncodeProtocol(s.Proto),
		SrcPort:   int(s.SrcPort),
		DstPort:   int(s.DstPort),
		FwdBytes:  int(s.FwdBytes),
		RevBytes:  int(s.RevBytes),
	}
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i], ys[i] = X[j], y[j]
	}
	return xs, ys
}
