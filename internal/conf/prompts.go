package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains the classifier prompts loaded from YAML
type PromptsConfig struct {
	Sentiment ClassifierPrompt `yaml:"sentiment"`
	Topic     ClassifierPrompt `yaml:"topic"`
}

// ClassifierPrompt is the system prompt for one classifier instance
type ClassifierPrompt struct {
	SystemPrompt string `yaml:"system_prompt"`
}

// LoadPromptsConfig loads prompts configuration from a YAML file
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"./configs/prompts.yaml",
			"/etc/feishu-sentinel/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	var data []byte
	var loadedPath string

	for _, p := range paths {
		if p == "" {
			continue
		}
		if read, err := os.ReadFile(p); err == nil {
			data = read
			loadedPath = p
			break
		}
	}

	if data == nil {
		fmt.Println("[Config] No prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	fmt.Printf("[Config] Loading prompts from: %s\n", loadedPath)

	cfg := DefaultPromptsConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultPromptsConfig(), fmt.Errorf("parse prompts config: %w", err)
	}

	// Empty sections fall back to defaults
	defaults := DefaultPromptsConfig()
	if cfg.Sentiment.SystemPrompt == "" {
		cfg.Sentiment = defaults.Sentiment
	}
	if cfg.Topic.SystemPrompt == "" {
		cfg.Topic = defaults.Topic
	}

	return cfg, nil
}

// DefaultPromptsConfig returns the built-in classifier prompts
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		Sentiment: ClassifierPrompt{
			SystemPrompt: `You classify chat messages by sentiment.

Labels: Negative, Neutral, Positive.

Reply with exactly one line: the label followed by your confidence as a
number between 0 and 1. Example: Positive 0.92

No explanations.`,
		},
		Topic: ClassifierPrompt{
			SystemPrompt: `You classify chat messages by news topic.

Labels: World, Sports, Business, Sci/Tech.

Reply with exactly one line: the label followed by your confidence as a
number between 0 and 1. Example: Sci/Tech 0.87

No explanations.`,
		},
	}
}
