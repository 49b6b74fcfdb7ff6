package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_ShippedFile(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	if err != nil {
		t.Fatalf("Failed to load shipped config: %v", err)
	}
	if cfg.Sentinel.ConfidenceThreshold != 0.01 {
		t.Errorf("Expected threshold 0.01, got %v", cfg.Sentinel.ConfidenceThreshold)
	}
	if cfg.ArtifactPath(cfg.Artifacts.Model) != filepath.Join("artifacts", "packet_detection_model.gob.gz") {
		t.Errorf("Unexpected model path %s", cfg.ArtifactPath(cfg.Artifacts.Model))
	}
	if len(cfg.Alerter.Rules) != 3 {
		t.Errorf("Expected 3 alerter rules, got %d", len(cfg.Alerter.Rules))
	}
}

func TestLoadConfig_DefaultsFillMissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  mode: pcap\n  pcap_file: in.pcap\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Capture.BPFFilter != "ip" || cfg.Sentinel.NumWorkers != 1 || cfg.Trainer.Seed != 42 || cfg.Trainer.TestSize != 0.2 {
		t.Errorf("Defaults not applied: %+v %+v %+v", cfg.Capture, cfg.Sentinel, cfg.Trainer)
	}
	if cfg.Artifacts.KnownBad != "known_bad_ip_ports.json" {
		t.Errorf("Unexpected known-bad file name %s", cfg.Artifacts.KnownBad)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"threshold above one", func(c *Config) { c.Sentinel.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"negative threshold", func(c *Config) { c.Sentinel.ConfidenceThreshold = -0.1 }, "confidence_threshold"},
		{"test size of one", func(c *Config) { c.Trainer.TestSize = 1 }, "test_size"},
		{"unknown capture mode", func(c *Config) { c.Capture.Mode = "carrier-pigeon" }, "capture.mode"},
		{"unknown archive encoding", func(c *Config) { c.Archive.Encoding = "gob" }, "archive.encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Expected error mentioning %q, got %v", tt.errSub, err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Defaults must validate: %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
