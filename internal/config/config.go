// Package config loads and validates a node's YAML configuration file: its
// network identity, data directory, peer list, replication strategy, and
// the timing knobs that govern election, fan-out, and snapshotting.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Strategy selects which replication strategy a node runs.
type Strategy string

const (
	StrategyLeader     Strategy = "leader"
	StrategyMasterless Strategy = "masterless"
)

// PeerSpec is one entry in the peer list.
type PeerSpec struct {
	ID      string `yaml:"id" validate:"required"`
	Address string `yaml:"address" validate:"required,hostname_port"`
}

// Config is a single node's full configuration, loaded from a YAML file.
type Config struct {
	NodeID string `yaml:"node_id" validate:"required"`
	Host   string `yaml:"host" validate:"required"`
	Port   int    `yaml:"port" validate:"required,min=1,max=65535"`

	// AdminPort serves internal/httpapi — must differ from Port, which
	// serves the raw TCP KV wire protocol.
	AdminPort int `yaml:"admin_port" validate:"required,min=1,max=65535,necsfield=Port"`

	DataDir string     `yaml:"data_dir" validate:"required"`
	Peers   []PeerSpec `yaml:"peers" validate:"dive"`

	Strategy Strategy `yaml:"strategy" validate:"required,oneof=leader masterless"`

	// EmbeddingDim is loaded and validated only; internal/index always
	// embeds with its own fixed index.Dim (128), whatever this is set to.
	EmbeddingDim int `yaml:"embedding_dim" validate:"required,min=1"`

	// Of the timing knobs below, only IndexSnapshotInterval is used by the
	// server. The election-timeout range, fan-out cadence and RPC deadline
	// are loaded and validated, but internal/cluster runs on its own
	// constants (1.5–3s, 10ms, 150ms) and does not read these fields.

	IndexSnapshotInterval time.Duration `yaml:"index_snapshot_interval"`

	ElectionTimeoutMin time.Duration `yaml:"election_timeout_min"`
	ElectionTimeoutMax time.Duration `yaml:"election_timeout_max" validate:"gtefield=ElectionTimeoutMin"`

	FanOutCadence time.Duration `yaml:"fan_out_cadence"`
	RPCDeadline   time.Duration `yaml:"rpc_deadline" validate:"lte=2s"`

	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogJSON   bool   `yaml:"log_json"`
}

// Defaults returns a Config with every timing knob set to the values fixed
// by the external contract, for fields a loaded file leaves zero.
func Defaults() Config {
	return Config{
		EmbeddingDim:          128,
		IndexSnapshotInterval: 30 * time.Second,
		ElectionTimeoutMin:    1500 * time.Millisecond,
		ElectionTimeoutMax:    3000 * time.Millisecond,
		FanOutCadence:         10 * time.Millisecond,
		RPCDeadline:           150 * time.Millisecond,
		LogLevel:              "info",
	}
}

var validate = validator.New()

// rawConfig mirrors Config but with duration fields as YAML duration
// strings ("30s", "1.5s") instead of time.Duration, since yaml.v3 has no
// built-in duration-string support. UnmarshalYAML converts through this
// shadow type so Config itself keeps real time.Duration fields end to end
// (needed for validator's duration-aware gte/lte tags).
type rawConfig struct {
	NodeID                string     `yaml:"node_id"`
	Host                  string     `yaml:"host"`
	Port                  int        `yaml:"port"`
	AdminPort             int        `yaml:"admin_port"`
	DataDir               string     `yaml:"data_dir"`
	Peers                 []PeerSpec `yaml:"peers"`
	Strategy              Strategy   `yaml:"strategy"`
	EmbeddingDim          int        `yaml:"embedding_dim"`
	IndexSnapshotInterval string     `yaml:"index_snapshot_interval"`
	ElectionTimeoutMin    string     `yaml:"election_timeout_min"`
	ElectionTimeoutMax    string     `yaml:"election_timeout_max"`
	FanOutCadence         string     `yaml:"fan_out_cadence"`
	RPCDeadline           string     `yaml:"rpc_deadline"`
	LogLevel              string     `yaml:"log_level"`
	LogJSON               bool       `yaml:"log_json"`
}

// UnmarshalYAML parses duration fields as Go duration strings, leaving any
// field absent from the document untouched (the caller seeds Config with
// Defaults() before unmarshaling into it).
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.NodeID = raw.NodeID
	c.Host = raw.Host
	c.Port = raw.Port
	c.AdminPort = raw.AdminPort
	c.DataDir = raw.DataDir
	c.Peers = raw.Peers
	c.Strategy = raw.Strategy
	if raw.EmbeddingDim != 0 {
		c.EmbeddingDim = raw.EmbeddingDim
	}
	if raw.LogLevel != "" {
		c.LogLevel = raw.LogLevel
	}
	c.LogJSON = raw.LogJSON

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{raw.IndexSnapshotInterval, &c.IndexSnapshotInterval},
		{raw.ElectionTimeoutMin, &c.ElectionTimeoutMin},
		{raw.ElectionTimeoutMax, &c.ElectionTimeoutMax},
		{raw.FanOutCadence, &c.FanOutCadence},
		{raw.RPCDeadline, &c.RPCDeadline},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Load reads path as YAML, layers it over Defaults(), and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
