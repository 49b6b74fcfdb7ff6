package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Pretty      bool   `yaml:"pretty"`
	ServiceName string `yaml:"service_name"`
}

// SentinelConfig holds the online decision pipeline settings.
type SentinelConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	NumWorkers          int     `yaml:"num_workers"`
	SizeOfPacketChannel int     `yaml:"size_of_packet_channel"`
	PrintVerdicts       bool    `yaml:"print_verdicts"`
}

// CaptureConfig selects where packets come from.
type CaptureConfig struct {
	// Mode is one of "live", "pcap" or "nats".
	Mode        string `yaml:"mode"`
	Interface   string `yaml:"interface"`
	PcapFile    string `yaml:"pcap_file"`
	BPFFilter   string `yaml:"bpf_filter"`
	SnapshotLen int32  `yaml:"snapshot_len"`
	Promiscuous bool   `yaml:"promiscuous"`
}

// ArtifactsConfig names the persisted training artifacts.
type ArtifactsConfig struct {
	Dir          string `yaml:"dir"`
	SrcIPEncoder string `yaml:"src_ip_encoder"`
	DstIPEncoder string `yaml:"dst_ip_encoder"`
	ProtoEncoder string `yaml:"proto_encoder"`
	Model        string `yaml:"model"`
	KnownBad     string `yaml:"known_bad"`
}

// AlertLogConfig holds the two append-only verdict logs.
type AlertLogConfig struct {
	MaliciousPath string `yaml:"malicious_path"`
	BenignPath    string `yaml:"benign_path"`
}

// ProbeConfig holds the NATS connection used between probes and the sentinel.
type ProbeConfig struct {
	NATSURL        string `yaml:"nats_url"`
	Subject        string `yaml:"subject"`
	VerdictSubject string `yaml:"verdict_subject"`
}

// ArchiveConfig controls the probe's on-disk packet archive.
type ArchiveConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Path              string `yaml:"path"`
	Encoding          string `yaml:"encoding"` // "pcap" or "text"
	ChannelBufferSize int    `yaml:"channel_buffer_size"`
}

// ClickHouseConfig holds the connection details for the verdict store.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// BatchSize and MaxPending bound the verdict sink's insert batches and retry buffer.
	BatchSize  int `yaml:"batch_size"`
	MaxPending int `yaml:"max_pending"`
}

// APIConfig holds the listen addresses of the sentinel's HTTP and gRPC surfaces.
type APIConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	GRPCListenAddr string `yaml:"grpc_listen_addr"`
}

// AlerterRule defines a single threshold rule over verdict counters.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the periodic alert summary settings.
type AlerterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval string        `yaml:"check_interval"`
	Rules         []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the settings for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// TrainerConfig holds the offline training settings.
type TrainerConfig struct {
	PrimaryCSV     string  `yaml:"primary_csv"`
	DatasetsDir    string  `yaml:"datasets_dir"`
	TestSize       float64 `yaml:"test_size"`
	Seed           int64   `yaml:"seed"`
	NumEstimators  int     `yaml:"num_estimators"`
	MaxDepth       int     `yaml:"max_depth"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Sentinel   SentinelConfig   `yaml:"sentinel"`
	Capture    CaptureConfig    `yaml:"capture"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	AlertLog   AlertLogConfig   `yaml:"alert_log"`
	Probe      ProbeConfig      `yaml:"probe"`
	Archive    ArchiveConfig    `yaml:"archive"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	API        APIConfig        `yaml:"api"`
	Alerter    AlerterConfig    `yaml:"alerter"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Trainer    TrainerConfig    `yaml:"trainer"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct
// with defaults applied.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = "netsentry"
	}

	if c.Sentinel.ConfidenceThreshold == 0 {
		c.Sentinel.ConfidenceThreshold = 0.01
	}
	if c.Sentinel.NumWorkers <= 0 {
		c.Sentinel.NumWorkers = 1
	}
	if c.Sentinel.SizeOfPacketChannel <= 0 {
		c.Sentinel.SizeOfPacketChannel = 10000
	}

	if c.Capture.Mode == "" {
		c.Capture.Mode = "live"
	}
	if c.Capture.BPFFilter == "" {
		c.Capture.BPFFilter = "ip"
	}
	if c.Capture.SnapshotLen <= 0 {
		c.Capture.SnapshotLen = 1600
	}

	a := &c.Artifacts
	if a.Dir == "" {
		a.Dir = "artifacts"
	}
	if a.SrcIPEncoder == "" {
		a.SrcIPEncoder = "label_encoder_ip_src.json"
	}
	if a.DstIPEncoder == "" {
		a.DstIPEncoder = "label_encoder_ip_dst.json"
	}
	if a.ProtoEncoder == "" {
		a.ProtoEncoder = "label_encoder_proto.json"
	}
	if a.Model == "" {
		a.Model = "packet_detection_model.gob.gz"
	}
	if a.KnownBad == "" {
		a.KnownBad = "known_bad_ip_ports.json"
	}

	if c.AlertLog.MaliciousPath == "" {
		c.AlertLog.MaliciousPath = "malicious_packets.log"
	}
	if c.AlertLog.BenignPath == "" {
		c.AlertLog.BenignPath = "benign_packets.log"
	}

	if c.Probe.NATSURL == "" {
		c.Probe.NATSURL = "nats://127.0.0.1:4222"
	}
	if c.Probe.Subject == "" {
		c.Probe.Subject = "netsentry.packets.raw"
	}

	if c.Archive.Path == "" {
		c.Archive.Path = "archive"
	}
	if c.Archive.Encoding == "" {
		c.Archive.Encoding = "pcap"
	}
	if c.Archive.ChannelBufferSize <= 0 {
		c.Archive.ChannelBufferSize = 10000
	}

	if c.Alerter.CheckInterval == "" {
		c.Alerter.CheckInterval = "1m"
	}

	t := &c.Trainer
	if t.PrimaryCSV == "" {
		t.PrimaryCSV = "packetdataset.csv"
	}
	if t.DatasetsDir == "" {
		t.DatasetsDir = "datasets"
	}
	if t.TestSize == 0 {
		t.TestSize = 0.2
	}
	if t.Seed == 0 {
		t.Seed = 42
	}
	if t.NumEstimators <= 0 {
		t.NumEstimators = 100
	}
	if t.MinSamplesLeaf <= 0 {
		t.MinSamplesLeaf = 1
	}
}

// Validate checks value ranges that defaults cannot repair.
func (c *Config) Validate() error {
	if th := c.Sentinel.ConfidenceThreshold; th <= 0 || th > 1 {
		return fmt.Errorf("sentinel.confidence_threshold must be in (0, 1], got %v", th)
	}
	if ts := c.Trainer.TestSize; ts <= 0 || ts >= 1 {
		return fmt.Errorf("trainer.test_size must be in (0, 1), got %v", ts)
	}
	switch c.Archive.Encoding {
	case "pcap", "text":
	default:
		return fmt.Errorf("unknown archive.encoding '%s'", c.Archive.Encoding)
	}
	switch c.Capture.Mode {
	case "live", "pcap", "nats":
	default:
		return fmt.Errorf("unknown capture.mode '%s'", c.Capture.Mode)
	}
	return nil
}

// ArtifactPath joins an artifact file name onto the artifacts directory.
func (c *Config) ArtifactPath(name string) string {
	return filepath.Join(c.Artifacts.Dir, name)
}
