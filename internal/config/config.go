package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING" json:"logging"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS" json:"paths"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE" json:"pipeline"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER" json:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY" json:"telemetry"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" json:"level" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" json:"output" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" json:"file_path" validate:"required_unless=Output console"`
}

// PathsConfig contains the input and output locations of a run
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" json:"data_dir" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" json:"output_dir" validate:"required"`
}

// ToggleConfig switches named stages away from their defaults
type ToggleConfig struct {
	Enabled  []string `yaml:"enabled" envconfig:"ENABLED" json:"enabled,omitempty"`
	Disabled []string `yaml:"disabled" envconfig:"DISABLED" json:"disabled,omitempty"`
}

// ThresholdsConfig contains the sample definition
type ThresholdsConfig struct {
	MinYearIncome     float64 `yaml:"min_year_income" envconfig:"MIN_YEAR_INCOME" json:"min_year_income" validate:"gte=0"`
	MinMonthTxns      float64 `yaml:"min_month_txns" envconfig:"MIN_MONTH_TXNS" json:"min_month_txns" validate:"gte=0"`
	MinMonthSpend     float64 `yaml:"min_month_spend" envconfig:"MIN_MONTH_SPEND" json:"min_month_spend" validate:"gte=0"`
	MaxActiveAccounts int     `yaml:"max_active_accounts" envconfig:"MAX_ACTIVE_ACCOUNTS" json:"max_active_accounts" validate:"gte=1"`
	MinPreMonths      int     `yaml:"min_pre_months" envconfig:"MIN_PRE_MONTHS" json:"min_pre_months" validate:"gte=0"`
	MinPostMonths     int     `yaml:"min_post_months" envconfig:"MIN_POST_MONTHS" json:"min_post_months" validate:"gte=0"`
	MinAge            float64 `yaml:"min_age" envconfig:"MIN_AGE" json:"min_age" validate:"gte=0"`
	MaxAge            float64 `yaml:"max_age" envconfig:"MAX_AGE" json:"max_age" validate:"gtefield=MinAge"`
	MinSignupYM       string  `yaml:"min_signup_ym" envconfig:"MIN_SIGNUP_YM" json:"min_signup_ym" validate:"datetime=2006-01"`
}

// OutlierConfig overrides the treatment of one column
type OutlierConfig struct {
	Column string  `yaml:"column" json:"column" validate:"required"`
	Method string  `yaml:"method" json:"method" validate:"oneof=trim winsorize"`
	Pct    float64 `yaml:"pct" json:"pct" validate:"gte=0,lt=50"`
	Side   string  `yaml:"side" json:"side" validate:"oneof=both lower upper"`
}

// SavingsFlowConfig decides which savings account transactions count as flows
type SavingsFlowConfig struct {
	MinAmount       float64  `yaml:"min_amount" envconfig:"MIN_AMOUNT" json:"min_amount" validate:"gte=0"`
	ExcludedTags    []string `yaml:"excluded_tags" envconfig:"EXCLUDED_TAGS" json:"excluded_tags"`
	ExcludedPattern string   `yaml:"excluded_pattern" envconfig:"EXCLUDED_PATTERN" json:"excluded_pattern"`
}

// PipelineConfig contains the panel construction parameters
type PipelineConfig struct {
	// Workers bounds concurrent shard workers; 0 uses every CPU
	Workers      int               `yaml:"workers" envconfig:"WORKERS" json:"workers" validate:"gte=0"`
	Stages       ToggleConfig      `yaml:"stages" envconfig:"STAGES" json:"stages"`
	Metrics      ToggleConfig      `yaml:"metrics" envconfig:"METRICS" json:"metrics"`
	Selection    ToggleConfig      `yaml:"selection" envconfig:"SELECTION" json:"selection"`
	Validation   ToggleConfig      `yaml:"validation" envconfig:"VALIDATION" json:"validation"`
	Thresholds   ThresholdsConfig  `yaml:"thresholds" envconfig:"THRESHOLDS" json:"thresholds"`
	WinPct       float64           `yaml:"win_pct" envconfig:"WIN_PCT" json:"win_pct" validate:"gte=0,lt=50"`
	Outliers     []OutlierConfig   `yaml:"outliers" ignored:"true" json:"outliers,omitempty" validate:"dive"`
	SavingsFlows SavingsFlowConfig `yaml:"savings_flows" envconfig:"SAVINGS_FLOWS" json:"savings_flows"`
	// LoanTags and DiscretionaryTags fall back to the built-in tag lists when empty
	LoanTags          []string `yaml:"loan_tags" envconfig:"LOAN_TAGS" json:"loan_tags"`
	DiscretionaryTags []string `yaml:"discretionary_tags" envconfig:"DISCRETIONARY_TAGS" json:"discretionary_tags"`
	EntropyWeight     string   `yaml:"entropy_weight" envconfig:"ENTROPY_WEIGHT" json:"entropy_weight" validate:"oneof=count amount"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" json:"enabled"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" json:"rps" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" json:"burst" validate:"gte=1"`
}

// WebSocketConfig contains the run event stream configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" json:"read_buffer_size" validate:"gte=256"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" json:"write_buffer_size" validate:"gte=256"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" json:"ping_period" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" json:"pong_wait" validate:"gtfield=PingPeriod"`
}

// ServerConfig contains the status server configuration
type ServerConfig struct {
	Addr            string          `yaml:"addr" envconfig:"ADDR" json:"addr" validate:"required"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" json:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" json:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" json:"shutdown_timeout" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT" json:"rate_limit"`
	WebSocket       WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET" json:"websocket"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" json:"service_name" validate:"required"`
	Tracing     string `yaml:"tracing" envconfig:"TRACING" json:"tracing" validate:"oneof=stdout none"`
	Metrics     string `yaml:"metrics" envconfig:"METRICS" json:"metrics" validate:"oneof=prometheus none"`
}

// Load builds the configuration from defaults, the YAML file at path (or the
// first file found in a standard location when path is empty) and the
// environment, then validates it
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}
	return nil
}

// getConfigFilePath returns the first config file found in a standard location
func getConfigFilePath() string {
	locations := []string{
		"panel.yaml",
		"configs/panel.yaml",
		"../configs/panel.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules tags cannot express
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if p := c.Pipeline.SavingsFlows.ExcludedPattern; p != "" {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid savings_flows.excluded_pattern: %w", err)
		}
	}
	for _, t := range c.Pipeline.toggles() {
		for _, name := range t.Enabled {
			for _, other := range t.Disabled {
				if name == other {
					return fmt.Errorf("%s is both enabled and disabled", name)
				}
			}
		}
	}
	return nil
}

func (p PipelineConfig) toggles() []ToggleConfig {
	return []ToggleConfig{p.Stages, p.Metrics, p.Selection, p.Validation}
}

// WorkerCount resolves the configured worker bound
func (c *Config) WorkerCount() int {
	if c.Pipeline.Workers > 0 {
		return c.Pipeline.Workers
	}
	return runtime.NumCPU()
}

// OutputPath joins a file name onto the output directory
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.Paths.OutputDir, name)
}

// Digest fingerprints the pipeline section, which alone determines the panel
// produced from a given input
func (c *Config) Digest() (string, error) {
	data, err := yaml.Marshal(c.Pipeline)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/panel.log",
		},
		Paths: PathsConfig{
			DataDir:   "data",
			OutputDir: "output",
		},
		Pipeline: PipelineConfig{
			Thresholds: ThresholdsConfig{
				MinYearIncome:     5000,
				MinMonthTxns:      10,
				MinMonthSpend:     200,
				MaxActiveAccounts: 10,
				MinPreMonths:      6,
				MinPostMonths:     6,
				MinAge:            18,
				MaxAge:            65,
				MinSignupYM:       "2017-04",
			},
			WinPct: 1.0,
			SavingsFlows: SavingsFlowConfig{
				MinAmount:       5,
				ExcludedTags:    []string{"interest"},
				ExcludedPattern: `(?i)save\s?the\s?change`,
			},
			EntropyWeight: "count",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
			WebSocket: WebSocketConfig{
				ReadBufferSize:  1024,
				WriteBufferSize: 1024,
				PingPeriod:      30 * time.Second,
				PongWait:        60 * time.Second,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName: AppName,
			Tracing:     "none",
			Metrics:     "prometheus",
		},
	}
}
