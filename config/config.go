// Package config loads and validates the gateway configuration from a file,
// FINALEFTP_* environment variables, and defaults, in that order of
// precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/unifyhq/finale-ftp/models"
)

// Config is the complete gateway configuration.
type Config struct {
	// Logging controls log backend, level and format.
	Logging LoggingConfig `mapstructure:"logging"`

	// FTP configures the control listener, the credential pair and the
	// passive data-channel behavior.
	FTP FTPConfig `mapstructure:"ftp"`

	// Storage describes the afero backend the upload root lives on.
	Storage models.Access `mapstructure:"storage"`

	// Ingest configures the upload ingestion pipeline.
	Ingest IngestConfig `mapstructure:"ingest"`

	// Database configures the relational store.
	Database DatabaseConfig `mapstructure:"database"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	// Backend selects the logging implementation.
	Backend string `mapstructure:"backend" validate:"required,oneof=zap logrus oark"`

	// Level is the minimum log level to emit.
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// Format is either text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// FTPConfig configures the protocol engine.
type FTPConfig struct {
	// ListenAddr is the address the control listener binds to,
	// e.g. "0.0.0.0:21".
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	// Greeting is the 220 banner text sent on connect.
	Greeting string `mapstructure:"greeting" validate:"required"`

	// User and Pass are the single accepted credential pair.
	User string `mapstructure:"user" validate:"required"`
	Pass string `mapstructure:"pass" validate:"required"`

	// PublicIP, when set, is advertised verbatim in PASV replies.
	PublicIP string `mapstructure:"public_ip"`

	// PasvURL is consulted when PublicIP is empty. It is only used when it
	// parses as a literal IPv4 address.
	PasvURL string `mapstructure:"pasv_url"`

	// PasvMinPort..PasvMaxPort bounds the passive data port range.
	PasvMinPort int `mapstructure:"pasv_min_port" validate:"required,gte=1,lte=65535"`
	PasvMaxPort int `mapstructure:"pasv_max_port" validate:"required,gte=1,lte=65535"`

	// IdleTimeout closes control connections with no activity.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
}

// IngestConfig configures the upload ingestion pipeline.
type IngestConfig struct {
	// ProcessedDir is the virtual directory processed artifacts move to.
	ProcessedDir string `mapstructure:"processed_dir" validate:"required"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	// URL is the Postgres connection string.
	URL string `mapstructure:"url" validate:"required"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty, in which case only environment variables and
// defaults apply. A missing config file at an explicit path is an error;
// missing at the default search location is not.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper wires environment variables and the config file location.
// Environment variables use the FINALEFTP_ prefix with underscores,
// e.g. FINALEFTP_FTP_USER=ingest.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("FINALEFTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so every
	// key that may come from the environment alone is bound here.
	for _, key := range []string{
		"logging.backend", "logging.level", "logging.format",
		"ftp.listen_addr", "ftp.greeting", "ftp.user", "ftp.pass",
		"ftp.public_ip", "ftp.pasv_url",
		"ftp.pasv_min_port", "ftp.pasv_max_port", "ftp.idle_timeout",
		"storage.fs", "storage.read_only",
		"ingest.processed_dir",
		"database.url",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("finale-ftp")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
