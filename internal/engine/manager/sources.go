package manager

import (
	"sort"
	"sync"

	"NetSentry/internal/model"
)

const (
	maxTrackedSources = 10000
	topSourcesInStats = 5
)

// sourceTally counts malicious verdicts per source address. Once maxTracked addresses
// are known, hits from new addresses are not tracked.
type sourceTally struct {
	mu         sync.Mutex
	counts     map[string]uint64
	maxTracked int
}

func newSourceTally(maxTracked int) *sourceTally {
	return &sourceTally{counts: make(map[string]uint64), maxTracked: maxTracked}
}

func (t *sourceTally) add(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.counts[ip]; !ok && len(t.counts) >= t.maxTracked {
		return
	}
	t.counts[ip]++
}

// top returns up to n addresses by descending count, ties broken by address.
func (t *sourceTally) top(n int) []model.SourceCount {
	t.mu.Lock()
	ranked := make([]model.SourceCount, 0, len(t.counts))
	for ip, c := range t.counts {
		ranked = append(ranked, model.SourceCount{IP: ip, Count: c})
	}
	t.mu.Unlock()

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].IP < ranked[j].IP
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
