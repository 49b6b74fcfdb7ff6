package knownbad

import (
	"path/filepath"
	"testing"
)

func TestContains_ExactMatchOnly(t *testing.T) {
	s := New([]Pair{{IP: "10.0.0.5", Port: 4444}, {IP: "10.0.0.5", Port: 4444}, {IP: "192.168.1.0", Port: 80}})

	if s.Len() != 2 {
		t.Fatalf("Expected duplicates to collapse to 2 pairs, got %d", s.Len())
	}
	if !s.Contains("10.0.0.5", 4444) {
		t.Error("Expected (10.0.0.5, 4444) to be a member")
	}
	if s.Contains("10.0.0.5", 4445) {
		t.Error("A different port must not match")
	}
	if s.Contains("192.168.1.7", 80) {
		t.Error("Membership must not match by prefix")
	}
}

func TestNilSet(t *testing.T) {
	var s *Set
	if s.Contains("1.1.1.1", 1) || s.Len() != 0 {
		t.Error("A nil set must behave as empty")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_bad.json")
	s := New([]Pair{{IP: "10.0.0.5", Port: 4444}, {IP: "172.16.0.3", Port: 0}, {IP: "10.0.0.5", Port: 23}})

	if err := s.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !s.Equal(loaded) {
		t.Errorf("Round-tripped set differs: %v vs %v", s.Pairs(), loaded.Pairs())
	}
}

func TestPairs_Sorted(t *testing.T) {
	s := New([]Pair{{IP: "b", Port: 2}, {IP: "a", Port: 9}, {IP: "b", Port: 1}})
	got := s.Pairs()
	want := []Pair{{IP: "a", Port: 9}, {IP: "b", Port: 1}, {IP: "b", Port: 2}}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Pairs()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
