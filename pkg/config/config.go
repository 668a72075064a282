// Package config provides a reusable loader for relay configuration files
// and environment variables (spec.md §6.3).
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/torqfin/messaging-core/pkg/utils"
)

// ValidationConfig mirrors relay.ValidationPolicy's wire-configurable
// fields (spec.md §6.3): "checksum: bool, audit: bool, strict: bool,
// max_message_size: usize".
type ValidationConfig struct {
	Checksum       bool `mapstructure:"checksum" json:"checksum"`
	Audit          bool `mapstructure:"audit" json:"audit"`
	Strict         bool `mapstructure:"strict" json:"strict"`
	MaxMessageSize int  `mapstructure:"max_message_size" json:"max_message_size"`
}

// TopicConfig selects and parameterizes one of the three topic strategies
// (spec.md §6.3: "Fixed(name) | BySource(table) | ByInstrumentVenue").
type TopicConfig struct {
	Strategy     string            `mapstructure:"strategy" json:"strategy"` // "fixed" | "by_source" | "by_instrument_venue"
	FixedTopic   string            `mapstructure:"fixed_topic" json:"fixed_topic"`
	SourceTable  map[string]string `mapstructure:"source_table" json:"source_table"`
	VenueTable   map[string]string `mapstructure:"venue_table" json:"venue_table"`
	Topics       []string          `mapstructure:"topics" json:"topics"`
	AutoDiscover bool              `mapstructure:"auto_discover" json:"auto_discover"`
}

// QueueConfig carries the per-connection outbound queue sizing (spec.md
// §6.3: "Queue sizes and watermarks").
type QueueConfig struct {
	Capacity        int `mapstructure:"capacity" json:"capacity"`
	HighWatermark   int `mapstructure:"high_watermark" json:"high_watermark"`
	LowWatermark    int `mapstructure:"low_watermark" json:"low_watermark"`
	DegradedTimeout int `mapstructure:"degraded_timeout_ms" json:"degraded_timeout_ms"`
}

// RelayConfig is the unified configuration for one relay process, loaded
// from a declarative YAML document at startup (spec.md §6.3).
type RelayConfig struct {
	Domain     string            `mapstructure:"domain" json:"domain"`
	Transport  string            `mapstructure:"transport" json:"transport"` // "unix" | "tcp" | "udp"
	Bind       string            `mapstructure:"bind" json:"bind"`           // socket path or bind address
	Validation ValidationConfig  `mapstructure:"validation" json:"validation"`
	Topic      TopicConfig       `mapstructure:"topic" json:"topic"`
	Queue      QueueConfig       `mapstructure:"queue" json:"queue"`
	Retention  int               `mapstructure:"retention_size" json:"retention_size"`
	AdminAddr  string            `mapstructure:"admin_addr" json:"admin_addr"`
	Logging    LoggingConfig     `mapstructure:"logging" json:"logging"`
}

// LoggingConfig follows the teacher's logging section.
type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig RelayConfig

// Load reads the relay configuration document and any environment-specific
// override, merging the two. TORQ_ prefixed environment variables override
// individual fields (spec.md §1.3).
func Load(env string) (*RelayConfig, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("TORQ")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the TORQ_ENV environment variable.
func LoadFromEnv() (*RelayConfig, error) {
	return Load(utils.EnvOrDefault("TORQ_ENV", ""))
}
