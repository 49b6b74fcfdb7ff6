// Package decision merges the known-bad lookup and the classifier score into a verdict.
package decision

import (
	"fmt"
	"time"

	"NetSentry/internal/encoder"
	"NetSentry/internal/knownbad"
	"NetSentry/internal/model"

	"github.com/google/uuid"
)

// KnownBadConfidence is reported for verdicts produced by a known-bad match.
const KnownBadConfidence = 1.0

// Engine is built once at startup and shared read-only by all workers.
type Engine struct {
	threshold  float64
	encoders   *encoder.Set
	classifier model.Classifier
	knownBad   *knownbad.Set
	now        func() time.Time
}

// NewEngine creates a decision engine. A record is malicious when its
// (source IP, source port) is in knownBad or when its probability is >= threshold.
func NewEngine(threshold float64, encoders *encoder.Set, classifier model.Classifier, knownBad *knownbad.Set) *Engine {
	return &Engine{
		threshold:  threshold,
		encoders:   encoders,
		classifier: classifier,
		knownBad:   knownBad,
		now:        time.Now,
	}
}

// Threshold returns the configured confidence threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Decide produces the verdict for one record. The known-bad check takes precedence and
// skips the classifier entirely.
func (e *Engine) Decide(rec *model.PacketRecord) (*model.Verdict, error) {
	v := &model.Verdict{
		ID:        uuid.NewString(),
		Timestamp: e.now(),
		Record:    *rec,
	}

	if e.knownBad.Contains(rec.SrcIP, int(rec.SrcPort)) {
		v.Kind = model.Malicious
		v.Confidence = KnownBadConfidence
		v.Source = model.SourceKnownBad
		return v, nil
	}

	encoded := e.encoders.EncodeRecord(rec)
	probability, err := e.classifier.PredictMaliciousProbability(encoded)
	if err != nil {
		return nil, fmt.Errorf("classification failed for %s:%d -> %s:%d: %w",
			rec.SrcIP, rec.SrcPort, rec.DstIP, rec.DstPort, err)
	}

	v.Source = model.SourceModel
	v.Confidence = probability
	if probability >= e.threshold {
		v.Kind = model.Malicious
	} else {
		v.Kind = model.Benign
	}
	return v, nil
}
