package main

import (
	"bytes"
	"strings"
	"testing"

	"NetSentry/internal/config"
	"NetSentry/internal/training"
)

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	if cmd == nil {
		t.Fatal("newRootCmd returned nil")
	}
	if cmd.Use != "ns-train" {
		t.Errorf("Expected use 'ns-train', got '%s'", cmd.Use)
	}
}

func TestApplyOverrides(t *testing.T) {
	cmd := newRootCmd()
	for flag, value := range map[string]string{
		"out":        "/tmp/artifacts",
		"seed":       "7",
		"max-depth":  "0",
		"estimators": "25",
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("Set %s failed: %v", flag, err)
		}
	}

	cfg := config.Default()
	cfg.Trainer.MaxDepth = 12
	applyOverrides(cmd, cfg)

	if cfg.Artifacts.Dir != "/tmp/artifacts" || cfg.Trainer.Seed != 7 || cfg.Trainer.NumEstimators != 25 {
		t.Errorf("Overrides not applied: %+v %+v", cfg.Artifacts, cfg.Trainer)
	}
	if cfg.Trainer.MaxDepth != 0 {
		t.Errorf("An explicit max-depth of 0 must override the config, got %d", cfg.Trainer.MaxDepth)
	}
	if cfg.Trainer.TestSize != 0.2 || cfg.Trainer.PrimaryCSV != "packetdataset.csv" {
		t.Errorf("Unset flags must keep config values: %+v", cfg.Trainer)
	}
}

func TestPrintReport(t *testing.T) {
	r := &training.Report{
		PrimaryRows:   40,
		AuxiliaryRows: map[string]int{"b.csv": 5, "a.csv": 10},
		DroppedRows:   1,
		Samples:       54,
		TrainRows:     43,
		TestRows:      11,
		Accuracy:      0.954,
	}

	var buf bytes.Buffer
	if err := printReport(&buf, r, false); err != nil {
		t.Fatalf("printReport failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "accuracy:          0.95") {
		t.Errorf("Accuracy line missing: %s", out)
	}
	if strings.Index(out, "a.csv") > strings.Index(out, "b.csv") {
		t.Errorf("Auxiliary files must be listed in name order: %s", out)
	}

	buf.Reset()
	if err := printReport(&buf, r, true); err != nil {
		t.Fatalf("printReport failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"dropped_rows": 1`) {
		t.Errorf("JSON report missing fields: %s", buf.String())
	}
}
