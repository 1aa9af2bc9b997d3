// File: internal/config/config.go
package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Workflow WorkflowConfig `mapstructure:"workflow" yaml:"workflow"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the headless browser sessions that drive
// directory submissions. Timeout bounds every network-bound browser
// operation (navigation, fill, click, screenshot).
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PostLoadWait   time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	ScreenshotDir  string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	Args           []string      `mapstructure:"args" yaml:"args"`
}

// LLMConfig configures the vision/LLM backend used for form detection.
type LLMConfig struct {
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// AgentConfig configures the autonomous cloud browsing agent used by the
// agent submission strategy.
type AgentConfig struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey       string        `mapstructure:"api_key" yaml:"-"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
}

// WorkflowConfig tunes the submission workflow engine.
type WorkflowConfig struct {
	// UseAgent selects the autonomous-agent executor instead of the scripted
	// state machine.
	UseAgent bool `mapstructure:"use_agent" yaml:"use_agent"`
	// ConcurrentSubmissions is the global ceiling on simultaneous browser
	// sessions during a bulk run.
	ConcurrentSubmissions int           `mapstructure:"concurrent_submissions" yaml:"concurrent_submissions"`
	MaxRetries            int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay            time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	RetryInterval         time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`

	// Result-page classification markers, checked in order: any success
	// marker wins; failure markers are consulted only when no success marker
	// matched; neither matching defaults to success.
	SuccessMarkers []string `mapstructure:"success_markers" yaml:"success_markers"`
	FailureMarkers []string `mapstructure:"failure_markers" yaml:"failure_markers"`
}

// SecurityConfig holds the key for encrypting directory login credentials at
// rest. The key is base64-encoded 32 bytes (AES-256).
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key" yaml:"-"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "listforge")
	v.SetDefault("logger.log_file", "listforge.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.timeout", "30s")
	v.SetDefault("browser.post_load_wait", "2s")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.screenshot_dir", "./uploads/screenshots")

	// -- LLM --
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.requests_per_minute", 30.0)

	// -- Agent --
	v.SetDefault("agent.endpoint", "https://api.browser-use.com/api/v1")
	v.SetDefault("agent.poll_interval", "5s")
	v.SetDefault("agent.task_timeout", "10m")

	// -- Workflow --
	v.SetDefault("workflow.use_agent", false)
	v.SetDefault("workflow.concurrent_submissions", 3)
	v.SetDefault("workflow.max_retries", 3)
	v.SetDefault("workflow.retry_delay", "5m")
	v.SetDefault("workflow.retry_interval", "30m")
	v.SetDefault("workflow.success_markers", []string{
		"success", "thank you", "submitted", "received",
		"confirmation", "pending review", "approved",
	})
	v.SetDefault("workflow.failure_markers", []string{
		"error", "invalid", "failed", "required field",
		"please correct", "try again",
	})
}

// NewDefaultConfig creates a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	_ = v.BindEnv("database.url", "LISTFORGE_DATABASE_URL")
	_ = v.BindEnv("llm.api_key", "LISTFORGE_LLM_API_KEY")
	_ = v.BindEnv("agent.api_key", "LISTFORGE_AGENT_API_KEY")
	_ = v.BindEnv("security.encryption_key", "LISTFORGE_ENCRYPTION_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Workflow.ConcurrentSubmissions <= 0 {
		return fmt.Errorf("workflow.concurrent_submissions must be a positive integer")
	}
	if c.Workflow.MaxRetries < 0 {
		return fmt.Errorf("workflow.max_retries must not be negative")
	}
	if c.Workflow.RetryInterval <= 0 {
		return fmt.Errorf("workflow.retry_interval must be a positive duration")
	}
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("browser.timeout must be a positive duration")
	}
	if c.Security.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("security.encryption_key is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("security.encryption_key must decode to 32 bytes, got %d", len(key))
		}
	}
	return nil
}
