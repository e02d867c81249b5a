package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Table naming styles for child tables.
const (
	NamingCapitalize = "capitalize"
	NamingCamel      = "camel"
)

// Config represents the complete configuration for enphase-api
type Config struct {
	Metadata   string           `yaml:"metadata"`
	TypeMap    string           `yaml:"type_map"`
	OutputDir  string           `yaml:"output_dir"`
	Offline    bool             `yaml:"offline"`
	Naming     NamingConfig     `yaml:"naming"`
	Formatting FormattingConfig `yaml:"formatting"`
	Document   DocumentConfig   `yaml:"document"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Cache      CacheConfig      `yaml:"cache"`
	Meters     MetersConfig     `yaml:"meters"`
	Log        LogConfig        `yaml:"log"`
}

// NamingConfig controls how child tables are named
type NamingConfig struct {
	TableNames string `yaml:"table_names"`
}

// FormattingConfig controls how example payloads are printed
type FormattingConfig struct {
	IndentExamples bool `yaml:"indent_examples"`
}

// DocumentConfig holds the document attributes shared by every page
type DocumentConfig struct {
	Title          string `yaml:"title"`
	Author         string `yaml:"author"`
	AuthorURL      string `yaml:"author_url"`
	OrgURL         string `yaml:"org_url"`
	Repo           string `yaml:"repo"`
	Project        string `yaml:"project"`
	ReleaseVersion string `yaml:"release_version"`
	AuthPage       string `yaml:"auth_page"`
}

// GatewayConfig locates the local gateway
type GatewayConfig struct {
	Host     string        `yaml:"host"`
	Token    string        `yaml:"token"`
	CertFile string        `yaml:"cert_file"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CacheConfig controls the example response cache
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// Refresh ignores cached responses and fetches again
	Refresh bool `yaml:"refresh"`
}

// MetersConfig controls the meter report poller
type MetersConfig struct {
	Path        string        `yaml:"path"`
	Interval    time.Duration `yaml:"interval"`
	Buffer      int           `yaml:"buffer"`
	Database    string        `yaml:"database"`
	MetricsAddr string        `yaml:"metrics_addr"`
	MQTT        MQTTConfig    `yaml:"mqtt"`
}

// MQTTConfig describes the broker meter readings are published to
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// Meter polling defaults, also used when a poller is built from a zero config.
const (
	DefaultMetersInterval = 990 * time.Millisecond
	DefaultMetersBuffer   = 64
)

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Metadata:  "API_Details.json",
		OutputDir: filepath.Join("Documentation", "IQ Gateway API"),
		Naming: NamingConfig{
			TableNames: NamingCapitalize,
		},
		Document: DocumentConfig{
			Title:          "IQ Gateway API",
			Author:         "Matthew1471",
			AuthorURL:      "https://github.com/matthew1471",
			OrgURL:         "https://github.com/Matthew1471",
			Repo:           "Enphase-API",
			Project:        "Enphase-API",
			ReleaseVersion: "1.0",
			AuthPage:       "Auth/Check_JWT.adoc",
		},
		Gateway: GatewayConfig{
			Host:     "https://envoy.local",
			CertFile: filepath.Join("configuration", "gateway.cer"),
			Timeout:  10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "enphase-api.db",
		},
		Meters: MetersConfig{
			Path:     "/ivp/meters/reports",
			Interval: DefaultMetersInterval,
			Buffer:   DefaultMetersBuffer,
			MQTT: MQTTConfig{
				Topic:    "Enphase/MeterStream",
				ClientID: "enphase-api",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".enphase-api.yml", ".enphase-api.yaml", "enphase-api.yml", "enphase-api.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Search up the directory tree
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate rejects settings no component can act on
func (c *Config) Validate() error {
	switch c.Naming.TableNames {
	case "", NamingCapitalize, NamingCamel:
	default:
		return fmt.Errorf("invalid naming.table_names %q: want %q or %q", c.Naming.TableNames, NamingCapitalize, NamingCamel)
	}
	if c.Meters.MQTT.QoS > 2 {
		return fmt.Errorf("invalid meters.mqtt.qos %d: want 0, 1 or 2", c.Meters.MQTT.QoS)
	}
	if c.Meters.Interval <= 0 {
		return fmt.Errorf("invalid meters.interval %s: must be positive", c.Meters.Interval)
	}
	if c.Meters.Buffer < 0 {
		return fmt.Errorf("invalid meters.buffer %d: must not be negative", c.Meters.Buffer)
	}
	return nil
}

// BaseURL returns the gateway host with a scheme and without a trailing slash
func (c *Config) BaseURL() string {
	host := strings.TrimRight(c.Gateway.Host, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host
}

// applyEnvOverrides lets the environment replace file settings
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if v := getenv("ENPHASE_GATEWAY_HOST"); v != "" {
		c.Gateway.Host = v
	}
	if v := getenv("ENPHASE_GATEWAY_TOKEN"); v != "" {
		c.Gateway.Token = v
	}
	if v := getenv("ENPHASE_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := getenv("ENPHASE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("ENPHASE_MQTT_BROKER"); v != "" {
		c.Meters.MQTT.Broker = v
	}
}

// Overrides holds values given on the command line. Empty strings and nil
// pointers leave the loaded configuration alone.
type Overrides struct {
	Metadata  string
	TypeMap   string
	OutputDir string
	Host      string
	Token     string
	LogLevel  string
	Offline   *bool
	NoCache   *bool
	Refresh   *bool
}

// LoadConfigWithCLI loads config with CLI argument precedence: defaults, then
// the file, then the environment, then the command line.
func LoadConfigWithCLI(configPath string, cli Overrides) (*Config, error) {
	cfg := NewConfig()

	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	cfg.applyEnvOverrides(os.Getenv)

	if cli.Metadata != "" {
		cfg.Metadata = cli.Metadata
	}
	if cli.TypeMap != "" {
		cfg.TypeMap = cli.TypeMap
	}
	if cli.OutputDir != "" {
		cfg.OutputDir = cli.OutputDir
	}
	if cli.Host != "" {
		cfg.Gateway.Host = cli.Host
	}
	if cli.Token != "" {
		cfg.Gateway.Token = cli.Token
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.Offline != nil {
		cfg.Offline = *cli.Offline
	}
	if cli.NoCache != nil {
		cfg.Cache.Enabled = !*cli.NoCache
	}
	if cli.Refresh != nil {
		cfg.Cache.Refresh = *cli.Refresh
	}

	return cfg, nil
}
