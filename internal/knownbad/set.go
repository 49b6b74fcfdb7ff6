// Package knownbad holds the exact-match set of (IP, port) pairs seen in labeled
// malicious traffic.
package knownbad

import (
	"fmt"
	"os"
	"sort"

	json "github.com/goccy/go-json"
)

// Pair is one (ip, port) entry.
type Pair struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Set is immutable after construction and safe for concurrent reads.
type Set struct {
	pairs map[Pair]struct{}
}

// New builds a set from the given pairs; duplicates collapse.
func New(pairs []Pair) *Set {
	s := &Set{pairs: make(map[Pair]struct{}, len(pairs))}
	for _, p := range pairs {
		s.pairs[p] = struct{}{}
	}
	return s
}

// Contains reports exact membership. No prefix or CIDR matching is done.
func (s *Set) Contains(ip string, port int) bool {
	if s == nil {
		return false
	}
	_, ok := s.pairs[Pair{IP: ip, Port: port}]
	return ok
}

// Len returns the number of distinct pairs.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.pairs)
}

// Pairs returns the members sorted by IP then port.
func (s *Set) Pairs() []Pair {
	out := make([]Pair, 0, s.Len())
	if s == nil {
		return out
	}
	for p := range s.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IP != out[j].IP {
			return out[i].IP < out[j].IP
		}
		return out[i].Port < out[j].Port
	})
	return out
}

// Equal reports whether both sets have the same membership.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s == nil || other == nil {
		return true
	}
	for p := range s.pairs {
		if _, ok := other.pairs[p]; !ok {
			return false
		}
	}
	return true
}

// Save writes the set to path as a JSON array of pairs.
func (s *Set) Save(path string) error {
	data, err := json.Marshal(s.Pairs())
	if err != nil {
		return fmt.Errorf("failed to encode known-bad set: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write known-bad set '%s': %w", path, err)
	}
	return nil
}

// Load reads a set written by Save.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read known-bad set: %w", err)
	}
	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode known-bad set '%s': %w", path, err)
	}
	return New(pairs), nil
}
