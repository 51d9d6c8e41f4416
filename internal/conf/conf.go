package conf

import (
	"os"
	"strconv"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Classifier endpoint configuration
	Classifier ClassifierConfig

	// Moderation configuration
	Moderation ModerationConfig

	// Analyze window policy
	Analyze AnalyzeConfig

	// Directory for CSV exports and the moderation log
	DataDir string

	// Optional SQLite path for persistent channel topics.
	// Empty means in-memory topics that do not survive a restart.
	TopicDBPath string

	// Prompts configuration (loaded from YAML)
	Prompts *PromptsConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// ClassifierConfig contains the OpenAI-compatible endpoint configuration
type ClassifierConfig struct {
	APIKey         string
	BaseURL        string
	SentimentModel string
	TopicModel     string
}

// ModerationConfig contains topic moderation configuration
type ModerationConfig struct {
	// ConfidenceThreshold gates deletion: mismatches below it only warn.
	// 0 disables the gate (every mismatch is deleted), which is the default.
	ConfidenceThreshold float64
	CountdownSeconds    int
}

// AnalyzeConfig contains the analyze window policy
type AnalyzeConfig struct {
	MinWindowMinutes int
	MaxWindowMinutes int
	DefaultWindow    string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	threshold := 0.0
	if val := os.Getenv("CONFIDENCE_THRESHOLD"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			threshold = parsed
		}
	}

	countdownSec := 10
	if val := os.Getenv("COUNTDOWN_SECONDS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			countdownSec = parsed
		}
	}

	minWindow := 5 // 5 minutes
	if val := os.Getenv("MIN_WINDOW_MINUTES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			minWindow = parsed
		}
	}

	maxWindow := 10080 // 7 days
	if val := os.Getenv("MAX_WINDOW_MINUTES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			maxWindow = parsed
		}
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}

	defaultWindow := os.Getenv("DEFAULT_WINDOW")
	if defaultWindow == "" {
		defaultWindow = "24h"
	}

	// Load prompts from YAML
	promptsConfig, _ := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Classifier: ClassifierConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			SentimentModel: os.Getenv("SENTIMENT_MODEL"),
			TopicModel:     os.Getenv("TOPIC_MODEL"),
		},
		Moderation: ModerationConfig{
			ConfidenceThreshold: threshold,
			CountdownSeconds:    countdownSec,
		},
		Analyze: AnalyzeConfig{
			MinWindowMinutes: minWindow,
			MaxWindowMinutes: maxWindow,
			DefaultWindow:    defaultWindow,
		},
		DataDir:     dataDir,
		TopicDBPath: os.Getenv("TOPIC_DB_PATH"),
		Prompts:     promptsConfig,
		Debug:       os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.Classifier.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.Moderation.ConfidenceThreshold < 0 || c.Moderation.ConfidenceThreshold > 1 {
		return &ConfigError{Field: "CONFIDENCE_THRESHOLD", Message: "must be in [0,1]"}
	}
	if c.Analyze.MinWindowMinutes < 1 || c.Analyze.MaxWindowMinutes < c.Analyze.MinWindowMinutes {
		return &ConfigError{Field: "MIN_WINDOW_MINUTES/MAX_WINDOW_MINUTES", Message: "invalid window policy"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
