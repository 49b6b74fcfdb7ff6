// Package training builds the encoders, classifier and known-bad set from labeled
// packet datasets.
package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	zlog "github.com/rs/zerolog/log"
)

// ErrSchemaMismatch is returned when a dataset lacks a required column.
var ErrSchemaMismatch = errors.New("dataset schema mismatch")

// Row is one labeled observation in the shared schema, before numeric coercion.
type Row struct {
	SrcIP    string
	DstIP    string
	Proto    string
	SrcPort  string
	DstPort  string
	FwdBytes string
	RevBytes string
	Label    string
	// Source names the file the row came from.
	Source string
}

// Column layout of the primary capture-export dataset.
var primaryColumns = []string{"Source", "Destination", "Protocol", "Source Port", "Destination Port", "Length", "bad_packet"}

// Column layout of the auxiliary connection-log datasets.
var auxiliaryColumns = []string{"id.orig_h", "id.resp_h", "proto", "id.orig_p", "id.resp_p", "orig_bytes", "resp_bytes", "label"}

// AuxiliaryMaliciousLabel is the auxiliary label value mapped to the malicious class.
const AuxiliaryMaliciousLabel = "Malicious"

// LoadPrimary reads the comma-separated primary dataset. Its Length column becomes the
// forward byte count and the reverse byte count is "0".
func LoadPrimary(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary dataset: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	return readTable(f, name, ',', primaryColumns, func(v []string) Row {
		return Row{
			SrcIP:    v[0],
			DstIP:    v[1],
			Proto:    v[2],
			SrcPort:  v[3],
			DstPort:  v[4],
			FwdBytes: v[5],
			RevBytes: "0",
			Label:    v[6],
			Source:   name,
		}
	})
}

// LoadAuxiliary reads one pipe-delimited auxiliary dataset. The label is 1 for
// AuxiliaryMaliciousLabel and 0 for anything else.
func LoadAuxiliary(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open auxiliary dataset: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	return readTable(f, name, '|', auxiliaryColumns, func(v []string) Row {
		label := "0"
		if strings.TrimSpace(v[7]) == AuxiliaryMaliciousLabel {
			label = "1"
		}
		return Row{
			SrcIP:    v[0],
			DstIP:    v[1],
			Proto:    v[2],
			SrcPort:  v[3],
			DstPort:  v[4],
			FwdBytes: v[5],
			RevBytes: v[6],
			Label:    label,
			Source:   name,
		}
	})
}

// LoadAuxiliaryDir reads every *.csv file in dir in name order. A schema mismatch in any
// file fails the whole load.
func LoadAuxiliaryDir(dir string) ([]Row, map[string]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var rows []Row
	counts := make(map[string]int, len(names))
	for _, name := range names {
		zlog.Info().Str("file", name).Msg("Processing auxiliary dataset")
		fileRows, err := LoadAuxiliary(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, err
		}
		counts[name] = len(fileRows)
		rows = append(rows, fileRows...)
	}
	return rows, counts, nil
}

// readTable maps the header onto want and converts each record with build, which
// receives the values in the order of want. Short records are padded with empty fields.
func readTable(r io.Reader, name string, comma rune, want []string, build func([]string) Row) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: could not read header: %w", name, err)
	}
	colMap := make(map[string]int, len(header))
	for i, col := range header {
		colMap[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}

	idx := make([]int, len(want))
	var missing []string
	for i, col := range want {
		pos, ok := colMap[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[i] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s is missing columns %s", ErrSchemaMismatch, name, strings.Join(missing, ", "))
	}

	var rows []Row
	values := make([]string, len(want))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", name, line, err)
		}
		for i, pos := range idx {
			if pos < len(record) {
				values[i] = strings.TrimSpace(record[pos])
			} else {
				values[i] = ""
			}
		}
		rows = append(rows, build(values))
	}
	return rows, nil
}

// parseLabel accepts 0/1 in integer, float or boolean form.
func parseLabel(v string) (int, bool) {
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return 1, true
		}
		return 0, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	switch f {
	case 0:
		return 0, true
	case 1:
		return 1, true
	}
	return 0, false
}
