package sink

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"NetSentry/internal/model"
)

func verdict(kind model.VerdictKind, confidence float64, tcp bool) *model.Verdict {
	return &model.Verdict{
		ID:         "id",
		Timestamp:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local),
		Kind:       kind,
		Confidence: confidence,
		Source:     model.SourceModel,
		Record: model.PacketRecord{
			SrcIP:    "10.0.0.5",
			DstIP:    "8.8.8.8",
			Protocol: 6,
			SrcPort:  4444,
			DstPort:  443,
			FwdBytes: 60,
			HasTCP:   tcp,
		},
	}
}

func TestFormatLine(t *testing.T) {
	got := FormatLine(verdict(model.Malicious, 0.5678, true))
	want := `2024-05-01 10:00:00 - Malicious packet detected by ML model (confidence: 0.57): ` +
		`{"Source IP":"10.0.0.5","Destination IP":"8.8.8.8","Protocol":6,"Packet Length":60,"Source Port":4444,"Destination Port":443}`
	if got != want {
		t.Errorf("FormatLine mismatch\n got: %s\nwant: %s", got, want)
	}

	got = FormatLine(verdict(model.Benign, 0.002, false))
	want = `2024-05-01 10:00:00 - Benign packet detected by ML model (confidence: 0.00): ` +
		`{"Source IP":"10.0.0.5","Destination IP":"8.8.8.8","Protocol":6,"Packet Length":60}`
	if got != want {
		t.Errorf("FormatLine mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestFileSink_SeparatesStreams(t *testing.T) {
	dir := t.TempDir()
	malPath := filepath.Join(dir, "malicious.log")
	benPath := filepath.Join(dir, "benign.log")

	s, err := NewFileSink(malPath, benPath)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	const perKind = 50
	var wg sync.WaitGroup
	for i := 0; i < perKind; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Write(verdict(model.Malicious, 0.9, true))
		}()
		go func() {
			defer wg.Done()
			s.Write(verdict(model.Benign, 0.001, true))
		}()
	}
	wg.Wait()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	checkLines(t, malPath, perKind, "Malicious packet")
	checkLines(t, benPath, perKind, "Benign packet")
}

func checkLines(t *testing.T, path string, want int, marker string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, marker) || !strings.HasSuffix(line, "}") {
			t.Errorf("Corrupted line in %s: %q", path, line)
		}
		count++
	}
	if count != want {
		t.Errorf("Expected %d lines in %s, got %d", want, path, count)
	}
}

func TestConsoleSink_AlertPrefix(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)
	s.Write(verdict(model.Malicious, 0.9, true))
	s.Write(verdict(model.Benign, 0.001, true))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ALERT: ") {
		t.Errorf("Malicious line must start with ALERT:, got %q", lines[0])
	}
	if strings.HasPrefix(lines[1], "ALERT: ") {
		t.Errorf("Benign line must not be prefixed, got %q", lines[1])
	}
}

type failingSink struct{ writes int }

func (f *failingSink) Write(*model.Verdict) error { f.writes++; return errors.New("down") }
func (f *failingSink) Close() error               { return nil }

func TestMulti_WritesAll(t *testing.T) {
	var buf bytes.Buffer
	failing := &failingSink{}
	m := Multi{failing, NewConsoleSink(&buf)}

	if err := m.Write(verdict(model.Benign, 0.1, false)); err == nil {
		t.Error("Expected the failing sink's error to be reported")
	}
	if failing.writes != 1 || buf.Len() == 0 {
		t.Error("Every sink must receive the verdict")
	}
}
