// Package config loads and validates the analysis configuration file.
// Parsing and validation are separate passes: Load never rejects values, so
// a config can be inspected even when it is not runnable.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/archlens/archlens/internal/graphstore"
	"github.com/archlens/archlens/internal/llm"
	"github.com/archlens/archlens/internal/vectorstore"
)

// ChatModelConfig configures the chat model driving the agent loops.
type ChatModelConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	RequestsPerMinute  int `yaml:"requests_per_minute"`
	MaxConcurrentCalls int `yaml:"max_concurrent_calls"`
}

// StageToggles selects, per stage, whether a cached intermediate result is
// reused instead of re-running the stage.
type StageToggles struct {
	IdentifyServices     bool `yaml:"identify_services"`
	ProcessConfigCenter  bool `yaml:"process_config_center"`
	ParseDeployConfigs   bool `yaml:"parse_deploy_configs"`
	EmbedCodes           bool `yaml:"embed_codes"`
	FindDataInteractions bool `yaml:"find_data_interactions"`
}

// CacheConfig points at the intermediate-result store.
type CacheConfig struct {
	Dir                   string       `yaml:"dir"`
	UseIntermediateResult StageToggles `yaml:"use_intermediate_result"`
}

// Config is the full analysis configuration.
type Config struct {
	Debug bool `yaml:"debug"`

	ChatModel       ChatModelConfig             `yaml:"chat_model"`
	OpenAIEmbedding vectorstore.EmbeddingConfig `yaml:"openai_embedding"`
	VectorDB        vectorstore.WeaviateConfig  `yaml:"vector_db"`
	Neo4j           graphstore.Config           `yaml:"neo4j"`

	ProjectLocation  string `yaml:"project_location"`
	ConfigCenterName string `yaml:"config_center_name"`
	ConfigCenterDir  string `yaml:"config_center_dir"`

	// Concurrency bounds per-file and per-service fan-out. 0 means the
	// runner's default cap.
	Concurrency int  `yaml:"concurrency"`
	BuildGraph  bool `yaml:"build_graph"`

	Cache CacheConfig `yaml:"cache"`
}

// Load reads and decodes the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks everything a run needs up front and reports all problems
// at once.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.ProjectLocation) == "" {
		problems = append(problems, "project_location is required")
	} else if info, err := os.Stat(c.ProjectLocation); err != nil || !info.IsDir() {
		problems = append(problems, fmt.Sprintf("project_location %q is not a directory", c.ProjectLocation))
	}

	if c.ChatModel.Type != "" && c.ChatModel.Type != "anthropic" {
		problems = append(problems, fmt.Sprintf("unsupported chat model type %q (only anthropic)", c.ChatModel.Type))
	}
	if c.ChatModel.Temperature < 0 || c.ChatModel.Temperature > 1 {
		problems = append(problems, "chat_model.temperature must be within [0, 1]")
	}
	if c.ChatModel.MaxTokens < 0 {
		problems = append(problems, "chat_model.max_tokens must not be negative")
	}

	if c.VectorDB.Host == "" {
		problems = append(problems, "vector_db.host is required")
	}
	if c.Concurrency < 0 {
		problems = append(problems, "concurrency must not be negative")
	}

	if c.BuildGraph {
		if err := c.Neo4j.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration:\n  - " + strings.Join(problems, "\n  - "))
}

// LLMConfig translates the chat model section into the llm client config.
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		APIKey:             c.ChatModel.APIKey,
		BaseURL:            c.ChatModel.BaseURL,
		Model:              c.ChatModel.Model,
		MaxTokens:          c.ChatModel.MaxTokens,
		Temperature:        c.ChatModel.Temperature,
		RequestsPerMinute:  c.ChatModel.RequestsPerMinute,
		MaxConcurrentCalls: c.ChatModel.MaxConcurrentCalls,
	}
}
