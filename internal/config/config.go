package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrAPIKeyMissing is returned by Validate when no platform credential is set.
var ErrAPIKeyMissing = errors.New("OPENAI_API_KEY must be set")

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // listen address, e.g. ":8080"

	// SessionTTL drops browser sessions idle for longer than this.
	SessionTTL time.Duration `yaml:"sessionTTL"`
}

// UploadConfig controls where uploaded patient files are written.
type UploadConfig struct {
	Dir string `yaml:"dir"`

	// Tabular converts .csv and .xlsx uploads to row objects instead of
	// requiring JSON content.
	Tabular bool `yaml:"tabular"`
}

// OpenAIConfig configures the platform adapter.
type OpenAIConfig struct {
	APIKey       string        `yaml:"apiKey"`
	BaseURL      string        `yaml:"baseURL"`
	Model        string        `yaml:"model"`
	AssistantID  string        `yaml:"assistantID"`  // reused when set, otherwise created once per process
	IndexName    string        `yaml:"indexName"`    // name given to newly created vector stores
	PollInterval time.Duration `yaml:"pollInterval"` // run status polling period
	ReplyTimeout time.Duration `yaml:"replyTimeout"` // 0 means no timeout
}

// PracticeConfig fills the placeholders of the Lyra script.
type PracticeConfig struct {
	ProviderName    string `yaml:"providerName"`
	PracticeName    string `yaml:"practiceName"`
	CareManagerName string `yaml:"careManagerName"`
}

// LoggerConfig holds the log level ("debug", "info", "warn", "error").
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// Config is the root of the YAML configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upload   UploadConfig   `yaml:"upload"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Practice PracticeConfig `yaml:"practice"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// Load builds the configuration.  The YAML file at path is optional (an
// empty path skips it), a .env file in the working directory is loaded if
// present, environment variables override file values, and defaults fill
// whatever is still empty.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}
	// A missing .env is the normal case in deployments.
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	c.Server.SessionTTL = getEnvDuration("SESSION_TTL", c.Server.SessionTTL)
	c.Upload.Dir = getEnv("UPLOAD_DIR", c.Upload.Dir)
	c.Upload.Tabular = getEnvBool("UPLOAD_TABULAR", c.Upload.Tabular)
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = getEnv("OPENAI_MODEL_CHAT", c.OpenAI.Model)
	c.OpenAI.AssistantID = getEnv("OPENAI_ASSISTANT_ID", c.OpenAI.AssistantID)
	c.OpenAI.PollInterval = getEnvDuration("OPENAI_POLL_INTERVAL", c.OpenAI.PollInterval)
	c.OpenAI.ReplyTimeout = getEnvDuration("OPENAI_REPLY_TIMEOUT", c.OpenAI.ReplyTimeout)
	c.Practice.ProviderName = getEnv("PROVIDER_NAME", c.Practice.ProviderName)
	c.Practice.PracticeName = getEnv("PRACTICE_NAME", c.Practice.PracticeName)
	c.Practice.CareManagerName = getEnv("CARE_MANAGER_NAME", c.Practice.CareManagerName)
	c.Logger.Level = getEnv("LOG_LEVEL", c.Logger.Level)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.SessionTTL <= 0 {
		c.Server.SessionTTL = 12 * time.Hour
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4.1"
	}
	if c.OpenAI.IndexName == "" {
		c.OpenAI.IndexName = "MyKnowledgeBase"
	}
	if c.OpenAI.PollInterval <= 0 {
		c.OpenAI.PollInterval = 500 * time.Millisecond
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
}

// Validate reports configuration that makes the server unusable.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return ErrAPIKeyMissing
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

// getEnvDuration accepts Go duration strings ("750ms") or plain seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
