package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"btcforecast/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Paths     PathsConfig     `yaml:"paths"`
	Input     InputConfig     `yaml:"input"`
	Prepare   PrepareConfig   `yaml:"prepare"`
	Model     ModelConfig     `yaml:"model"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	History   HistoryConfig   `yaml:"history"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Format      string `yaml:"format" split_words:"true"`
	Output      string `yaml:"output" split_words:"true"`
	FilePath    string `yaml:"file_path" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" split_words:"true"`
	ReportsDir string `yaml:"reports_dir" split_words:"true"`
	LogsDir    string `yaml:"logs_dir" split_words:"true"`
}

// InputConfig names the raw price table
type InputConfig struct {
	Path       string `yaml:"path" split_words:"true"`
	SeriesName string `yaml:"series_name" split_words:"true"`
}

// PrepareConfig controls resampling and transforms
type PrepareConfig struct {
	Frequency  time.Duration `yaml:"frequency" split_words:"true"`
	FillPolicy string        `yaml:"fill_policy" split_words:"true"`
	Transform  string        `yaml:"transform" split_words:"true"`
	MinPoints  int           `yaml:"min_points" split_words:"true"`
}

// ModelConfig controls the forecast model
type ModelConfig struct {
	P                   int     `yaml:"p" split_words:"true"`
	D                   int     `yaml:"d" split_words:"true"`
	Q                   int     `yaml:"q" split_words:"true"`
	Auto                bool    `yaml:"auto" split_words:"true"`
	MaxP                int     `yaml:"max_p" split_words:"true"`
	MaxD                int     `yaml:"max_d" split_words:"true"`
	MaxQ                int     `yaml:"max_q" split_words:"true"`
	Criterion           string  `yaml:"criterion" split_words:"true"`
	Horizon             int     `yaml:"horizon" split_words:"true"`
	Confidence          float64 `yaml:"confidence" split_words:"true"`
	TestSize            int     `yaml:"test_size" split_words:"true"`
	EnforceStationarity bool    `yaml:"enforce_stationarity" split_words:"true"`
	Workers             int     `yaml:"workers" split_words:"true"`
}

// OutputConfig names the forecast artifact
type OutputConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

// TelemetryConfig contains tracing and metrics configuration
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" split_words:"true"`
	Environment    string  `yaml:"environment" split_words:"true"`
	TraceExporter  string  `yaml:"trace_exporter" split_words:"true"`
	MetricExporter string  `yaml:"metric_exporter" split_words:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" split_words:"true"`
	// MetricsFile receives a Prometheus text exposition dump after each run.
	MetricsFile string `yaml:"metrics_file" split_words:"true"`
}

// HistoryConfig enables the run history ledger when SqlitePath is set
type HistoryConfig struct {
	SqlitePath string `yaml:"sqlite_path" split_words:"true"`
}

// ToDomain converts the model section to the runner's configuration
func (m ModelConfig) ToDomain() domain.ModelConfig {
	return domain.ModelConfig{
		Order:               domain.Order{P: m.P, D: m.D, Q: m.Q},
		Auto:                m.Auto,
		MaxP:                m.MaxP,
		MaxD:                m.MaxD,
		MaxQ:                m.MaxQ,
		Criterion:           m.Criterion,
		Confidence:          m.Confidence,
		TestSize:            m.TestSize,
		EnforceStationarity: m.EnforceStationarity,
		Workers:             m.Workers,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (or the first one found in the default locations), then BTCF_* environment
// variables. Later sources win. Variables are named BTCF_<SECTION>_<KEY>,
// e.g. BTCF_MODEL_HORIZON; unprefixed names such as PATH are never read.
func Load(path string) (*Config, error) {
	cfg := Default()

	configFile := path
	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg. Keys absent from the file keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate re-checks the configuration after callers override fields
func (c *Config) Validate() error {
	return c.validate()
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Input.SeriesName == "" {
		return fmt.Errorf("input series name must not be empty")
	}

	if c.Prepare.Frequency <= 0 {
		return fmt.Errorf("prepare frequency must be positive")
	}

	switch c.Prepare.FillPolicy {
	case "ffill", "interpolate", "drop":
	default:
		return fmt.Errorf("invalid fill policy: %s", c.Prepare.FillPolicy)
	}

	if _, err := domain.ParseTransform(c.Prepare.Transform); err != nil {
		return err
	}

	if c.Prepare.MinPoints < 1 {
		return fmt.Errorf("prepare min points must be at least 1")
	}

	if c.Model.Horizon < 1 {
		return fmt.Errorf("model horizon must be positive: %d", c.Model.Horizon)
	}

	if c.Model.Confidence < 0 || c.Model.Confidence >= 1 {
		return fmt.Errorf("model confidence must be in [0,1): %v", c.Model.Confidence)
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}

	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return fmt.Errorf("unsupported metric exporter: %s", c.Telemetry.MetricExporter)
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		return env
	}

	locations := []string{
		DefaultConfigFile,
		"configs/" + DefaultConfigFile,
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ReportsDir: "data/reports",
			LogsDir:    "logs",
		},
		Input: InputConfig{
			Path:       "data/btc_prices.xlsx",
			SeriesName: "BTC-USD",
		},
		Prepare: PrepareConfig{
			Frequency:  24 * time.Hour,
			FillPolicy: "ffill",
			Transform:  "none",
			MinPoints:  30,
		},
		Model: ModelConfig{
			P:          1,
			D:          1,
			Q:          1,
			MaxP:       3,
			MaxD:       2,
			MaxQ:       3,
			Criterion:  "aic",
			Horizon:    30,
			Confidence: 0.95,
			Workers:    4,
		},
		Output: OutputConfig{
			Path: "data/reports/forecast.csv",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
