package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"batchauction/domain/auction"
	"batchauction/infra/log"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. AUCTION_GRPC_LISTEN_ADDRESS.
	EnvPrefix = "AUCTION"

	DefaultHomeDir = ".batchauction"
	configFileName = "config"

	KafkaClientSarama  = "sarama"
	KafkaClientKafkaGo = "kafka-go"
)

// Config is the top level configuration of the auction house server.
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	Engine          *EngineConfig          `mapstructure:"engine"`
	WAL             *WALConfig             `mapstructure:"wal"`
	Outbox          *OutboxConfig          `mapstructure:"outbox"`
	Kafka           *KafkaConfig           `mapstructure:"kafka"`
	GRPC            *GRPCConfig            `mapstructure:"grpc"`
	Snapshot        *SnapshotConfig        `mapstructure:"snapshot"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		Engine:          DefaultEngineConfig(),
		WAL:             DefaultWALConfig(),
		Outbox:          DefaultOutboxConfig(),
		Kafka:           DefaultKafkaConfig(),
		GRPC:            DefaultGRPCConfig(),
		Snapshot:        DefaultSnapshotConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.LogLevel = log.LogLevelError
	cfg.WAL.SegmentSize = 1 << 20
	cfg.Kafka.Enabled = false
	cfg.GRPC.ListenAddress = "127.0.0.1:0"
	cfg.Snapshot.Interval = 0
	cfg.Instrumentation.Prometheus = false
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Engine.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [engine] section: %w", err)
	}
	if err := cfg.WAL.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [wal] section: %w", err)
	}
	if err := cfg.Kafka.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [kafka] section: %w", err)
	}
	if cfg.Snapshot.Interval < 0 {
		return errors.New("error in [snapshot] section: interval can't be negative")
	}
	return nil
}

// Path resolves p against the home directory unless it is absolute.
func (cfg *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.RootDir, p)
}

//-----------------------------------------------------------------------------
// BaseConfig

type BaseConfig struct {
	// RootDir holds the config file and every relative data directory.
	RootDir   string `mapstructure:"home"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		LogLevel:  log.LogLevelInfo,
		LogFormat: log.LogFormatPlain,
	}
}

func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case log.LogFormatPlain, log.LogFormatText, log.LogFormatJSON:
	default:
		return errors.New("unknown log_format (must be 'plain', 'text' or 'json')")
	}
	switch cfg.LogLevel {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelError:
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	return nil
}

//-----------------------------------------------------------------------------
// EngineConfig

type EngineConfig struct {
	// Owner may change the fee schedule at runtime.
	Owner string `mapstructure:"owner"`
	// FeeNumerator is per mille of the raised amount.
	FeeNumerator uint64 `mapstructure:"fee_numerator"`
	FeeReceiver  string `mapstructure:"fee_receiver"`
	// MaxScanSteps caps one PrecalculateSellAmountSum call.
	MaxScanSteps int `mapstructure:"max_scan_steps"`
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxScanSteps: auction.DefaultMaxScanSteps,
	}
}

func (cfg *EngineConfig) FeeSchedule() auction.FeeSchedule {
	return auction.FeeSchedule{Numerator: cfg.FeeNumerator, Receiver: cfg.FeeReceiver}
}

func (cfg *EngineConfig) ValidateBasic() error {
	if cfg.MaxScanSteps <= 0 {
		return errors.New("max_scan_steps must be positive")
	}
	return cfg.FeeSchedule().Validate()
}

//-----------------------------------------------------------------------------
// WALConfig

type WALConfig struct {
	Dir             string        `mapstructure:"dir"`
	SegmentSize     int64         `mapstructure:"segment_size"`
	SegmentDuration time.Duration `mapstructure:"segment_duration"`
	SyncWrites      bool          `mapstructure:"sync_writes"`
}

func DefaultWALConfig() *WALConfig {
	return &WALConfig{
		Dir:             "data/wal_entry",
		SegmentSize:     2 * 1024 * 1024,
		SegmentDuration: time.Minute,
		SyncWrites:      true,
	}
}

func (cfg *WALConfig) ValidateBasic() error {
	if cfg.SegmentSize <= 0 {
		return errors.New("segment_size must be positive")
	}
	if cfg.SegmentDuration < 0 {
		return errors.New("segment_duration can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// OutboxConfig

type OutboxConfig struct {
	Dir string `mapstructure:"dir"`
}

func DefaultOutboxConfig() *OutboxConfig {
	return &OutboxConfig{Dir: "data/wal_exit"}
}

//-----------------------------------------------------------------------------
// KafkaConfig

type KafkaConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Client selects the producer library: "sarama" or "kafka-go".
	Client   string        `mapstructure:"client"`
	Brokers  []string      `mapstructure:"brokers"`
	Topic    string        `mapstructure:"topic"`
	Interval time.Duration `mapstructure:"interval"`
	// MaxRetries parks an event after this many failed deliveries. Zero
	// retries forever.
	MaxRetries uint32 `mapstructure:"max_retries"`
}

func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Enabled:  true,
		Client:   KafkaClientSarama,
		Brokers:  []string{"localhost:9092"},
		Topic:    "auction-events",
		Interval: 250 * time.Millisecond,
	}
}

func (cfg *KafkaConfig) ValidateBasic() error {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Client {
	case KafkaClientSarama, KafkaClientKafkaGo:
	default:
		return fmt.Errorf("unknown client %q (must be 'sarama' or 'kafka-go')", cfg.Client)
	}
	if len(cfg.Brokers) == 0 {
		return errors.New("brokers can't be empty")
	}
	if cfg.Topic == "" {
		return errors.New("topic can't be empty")
	}
	if cfg.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// GRPCConfig

type GRPCConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}

func DefaultGRPCConfig() *GRPCConfig {
	return &GRPCConfig{ListenAddress: ":50051"}
}

//-----------------------------------------------------------------------------
// SnapshotConfig

type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
	// Interval between snapshots; zero disables the job.
	Interval time.Duration `mapstructure:"interval"`
}

func DefaultSnapshotConfig() *SnapshotConfig {
	return &SnapshotConfig{
		Dir:      "data/snapshot",
		Interval: time.Minute,
	}
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	Prometheus           bool   `mapstructure:"prometheus"`
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr"`
	Namespace            string `mapstructure:"namespace"`
}

func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		Namespace:            "batchauction",
	}
}

//-----------------------------------------------------------------------------
// Loading

// Load reads config.yaml from home, applies AUCTION_* environment
// overrides on top of the defaults, and validates the result. A missing
// config file is not an error.
func Load(v *viper.Viper, home string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.RootDir = home
	setDefaults(v, cfg)

	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(home)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that environment overrides apply
// even when the config file omits them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("home", cfg.RootDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)

	v.SetDefault("engine.owner", cfg.Engine.Owner)
	v.SetDefault("engine.fee_numerator", cfg.Engine.FeeNumerator)
	v.SetDefault("engine.fee_receiver", cfg.Engine.FeeReceiver)
	v.SetDefault("engine.max_scan_steps", cfg.Engine.MaxScanSteps)

	v.SetDefault("wal.dir", cfg.WAL.Dir)
	v.SetDefault("wal.segment_size", cfg.WAL.SegmentSize)
	v.SetDefault("wal.segment_duration", cfg.WAL.SegmentDuration)
	v.SetDefault("wal.sync_writes", cfg.WAL.SyncWrites)

	v.SetDefault("outbox.dir", cfg.Outbox.Dir)

	v.SetDefault("kafka.enabled", cfg.Kafka.Enabled)
	v.SetDefault("kafka.client", cfg.Kafka.Client)
	v.SetDefault("kafka.brokers", cfg.Kafka.Brokers)
	v.SetDefault("kafka.topic", cfg.Kafka.Topic)
	v.SetDefault("kafka.interval", cfg.Kafka.Interval)
	v.SetDefault("kafka.max_retries", cfg.Kafka.MaxRetries)

	v.SetDefault("grpc.listen_address", cfg.GRPC.ListenAddress)

	v.SetDefault("snapshot.dir", cfg.Snapshot.Dir)
	v.SetDefault("snapshot.interval", cfg.Snapshot.Interval)

	v.SetDefault("instrumentation.prometheus", cfg.Instrumentation.Prometheus)
	v.SetDefault("instrumentation.prometheus_listen_addr", cfg.Instrumentation.PrometheusListenAddr)
	v.SetDefault("instrumentation.namespace", cfg.Instrumentation.Namespace)
}
