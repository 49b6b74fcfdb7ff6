package training

import (
	"math"
	"strconv"
)

const maxPort = 65535

// Sample is a cleaned row with its numeric columns coerced.
type Sample struct {
	SrcIP    string
	DstIP    string
	Proto    string
	SrcPort  float64
	DstPort  float64
	FwdBytes float64
	RevBytes float64
	Label    int
}

// Clean fills empty fields with "0", coerces ports and byte counts to numbers and drops
// every row where coercion fails, yields NaN or an infinity, or falls outside the field's
// range (ports 0-65535, byte counts 0-MaxInt32). Rows whose label cannot be read as 0 or 1
// are dropped too. It returns the kept samples and the number dropped.
func Clean(rows []Row) ([]Sample, int) {
	samples := make([]Sample, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		s, ok := cleanRow(r)
		if !ok {
			dropped++
			continue
		}
		samples = append(samples, s)
	}
	return samples, dropped
}

func cleanRow(r Row) (Sample, bool) {
	s := Sample{
		SrcIP: fill(r.SrcIP),
		DstIP: fill(r.DstIP),
		Proto: fill(r.Proto),
	}
	for _, f := range []struct {
		raw string
		max float64
		dst *float64
	}{
		{r.SrcPort, maxPort, &s.SrcPort},
		{r.DstPort, maxPort, &s.DstPort},
		{r.FwdBytes, math.MaxInt32, &s.FwdBytes},
		{r.RevBytes, math.MaxInt32, &s.RevBytes},
	} {
		v, err := strconv.ParseFloat(fill(f.raw), 64)
		if err != nil || math.IsNaN(v) || v < 0 || v > f.max {
			return Sample{}, false
		}
		*f.dst = v
	}
	label, ok := parseLabel(fill(r.Label))
	if !ok {
		return Sample{}, false
	}
	s.Label = label
	return s, true
}

func fill(v string) string {
	if v == "" {
		return "0"
	}
	return v
}
