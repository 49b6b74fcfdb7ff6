package decision

import (
	"errors"
	"testing"

	"NetSentry/internal/encoder"
	"NetSentry/internal/knownbad"
	"NetSentry/internal/model"
)

type fakeClassifier struct {
	probability float64
	err         error
	calls       int
	last        model.EncodedRecord
}

func (f *fakeClassifier) PredictMaliciousProbability(rec model.EncodedRecord) (float64, error) {
	f.calls++
	f.last = rec
	return f.probability, f.err
}

func exampleRecord() *model.PacketRecord {
	return &model.PacketRecord{
		SrcIP:    "10.0.0.5",
		DstIP:    "8.8.8.8",
		Protocol: 6,
		SrcPort:  4444,
		DstPort:  443,
		FwdBytes: 60,
		HasTCP:   true,
	}
}

func newEngine(clf model.Classifier, pairs ...knownbad.Pair) *Engine {
	encoders := encoder.FitSet([]string{"10.0.0.5"}, []string{"8.8.8.8"}, []string{"tcp"})
	return NewEngine(0.01, encoders, clf, knownbad.New(pairs))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		knownBad    []knownbad.Pair
		wantKind    model.VerdictKind
		wantConf    float64
		wantSource  model.VerdictSource
	}{
		{
			name:        "known bad overrides a zero score",
			probability: 0,
			knownBad:    []knownbad.Pair{{IP: "10.0.0.5", Port: 4444}},
			wantKind:    model.Malicious,
			wantConf:    KnownBadConfidence,
			wantSource:  model.SourceKnownBad,
		},
		{
			name:        "below threshold is benign",
			probability: 0.002,
			wantKind:    model.Benign,
			wantConf:    0.002,
			wantSource:  model.SourceModel,
		},
		{
			name:        "threshold boundary is malicious",
			probability: 0.01,
			wantKind:    model.Malicious,
			wantConf:    0.01,
			wantSource:  model.SourceModel,
		},
		{
			name:        "destination pair does not trigger the override",
			probability: 0.002,
			knownBad:    []knownbad.Pair{{IP: "8.8.8.8", Port: 443}},
			wantKind:    model.Benign,
			wantConf:    0.002,
			wantSource:  model.SourceModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := &fakeClassifier{probability: tt.probability}
			v, err := newEngine(clf, tt.knownBad...).Decide(exampleRecord())
			if err != nil {
				t.Fatalf("Decide failed: %v", err)
			}
			if v.Kind != tt.wantKind || v.Confidence != tt.wantConf || v.Source != tt.wantSource {
				t.Errorf("Got %s/%.3f/%s, want %s/%.3f/%s", v.Kind, v.Confidence, v.Source, tt.wantKind, tt.wantConf, tt.wantSource)
			}
			if v.ID == "" || v.Timestamp.IsZero() {
				t.Error("Verdict must carry an ID and a timestamp")
			}
		})
	}
}

func TestDecide_KnownBadSkipsClassifier(t *testing.T) {
	clf := &fakeClassifier{err: errors.New("must not be called")}
	v, err := newEngine(clf, knownbad.Pair{IP: "10.0.0.5", Port: 4444}).Decide(exampleRecord())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !v.IsMalicious() || clf.calls != 0 {
		t.Errorf("Expected a malicious verdict without a classifier call, got %s after %d calls", v.Kind, clf.calls)
	}
}

func TestDecide_ClassifierError(t *testing.T) {
	boom := errors.New("boom")
	_, err := newEngine(&fakeClassifier{err: boom}).Decide(exampleRecord())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the classifier error to be wrapped, got %v", err)
	}
}

func TestDecide_UsesPersistedCodes(t *testing.T) {
	clf := &fakeClassifier{}
	eng := newEngine(clf)

	rec := exampleRecord()
	rec.SrcIP = "203.0.113.9"
	for i := 0; i < 3; i++ {
		if _, err := eng.Decide(rec); err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if clf.last.SrcIPCode != encoder.UnknownCode {
			t.Fatalf("Unseen source IP encoded as %d, want UnknownCode", clf.last.SrcIPCode)
		}
		if clf.last.DstIPCode != 0 || clf.last.ProtoCode != 0 {
			t.Fatalf("Known values must keep their fitted codes, got %+v", clf.last)
		}
	}
}
