// Package encoder implements the categorical encoders shared by training and inference.
//
// An Encoder is fitted once over the full training corpus and persisted. At inference
// time it is loaded read-only and only looked up; it is never refitted, so a value maps
// to the same code on every call and values never seen during fitting map to UnknownCode.
package encoder

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// UnknownCode is returned for values that were not observed while fitting.
const UnknownCode = -1

// Encoder is an order-stable mapping from observed string values to small integers.
type Encoder struct {
	name    string
	classes []string
	index   map[string]int
}

// Fit assigns each distinct value a code in order of first observation.
func Fit(name string, values []string) *Encoder {
	e := &Encoder{name: name, index: make(map[string]int)}
	for _, v := range values {
		if _, ok := e.index[v]; ok {
			continue
		}
		e.index[v] = len(e.classes)
		e.classes = append(e.classes, v)
	}
	return e
}

// Encode returns the code assigned to v, or UnknownCode if v was never fitted.
func (e *Encoder) Encode(v string) int {
	if code, ok := e.index[v]; ok {
		return code
	}
	return UnknownCode
}

// Transform encodes a column of values.
func (e *Encoder) Transform(values []string) []int {
	codes := make([]int, len(values))
	for i, v := range values {
		codes[i] = e.Encode(v)
	}
	return codes
}

// Name returns the column the encoder was fitted for.
func (e *Encoder) Name() string {
	return e.name
}

// Len returns the number of known classes.
func (e *Encoder) Len() int {
	return len(e.classes)
}

// Classes returns a copy of the known values ordered by code.
func (e *Encoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Equal reports whether two encoders hold the same code mapping.
func (e *Encoder) Equal(other *Encoder) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.name != other.name || len(e.classes) != len(other.classes) {
		return false
	}
	for i, c := range e.classes {
		if other.classes[i] != c {
			return false
		}
	}
	return true
}

type artifact struct {
	Name        string   `json:"name"`
	UnknownCode int      `json:"unknown_code"`
	Classes     []string `json:"classes"`
}

// Save writes the encoder state to path as JSON.
func (e *Encoder) Save(path string) error {
	data, err := json.MarshalIndent(artifact{Name: e.name, UnknownCode: UnknownCode, Classes: e.classes}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode encoder '%s': %w", e.name, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write encoder file '%s': %w", path, err)
	}
	return nil
}

// Load reads an encoder previously written by Save.
func Load(path string) (*Encoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoder file: %w", err)
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode encoder file '%s': %w", path, err)
	}
	if a.UnknownCode != UnknownCode {
		return nil, fmt.Errorf("encoder file '%s' reserves unknown code %d, expected %d", path, a.UnknownCode, UnknownCode)
	}

	e := &Encoder{name: a.Name, classes: a.Classes, index: make(map[string]int, len(a.Classes))}
	for i, c := range a.Classes {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("encoder file '%s' lists value '%s' twice", path, c)
		}
		e.index[c] = i
	}
	return e, nil
}
