package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from toqcheck.yml.
type ProjectConfig struct {
	Model            string  `yaml:"model,omitempty"`
	BaseURL          string  `yaml:"baseUrl,omitempty"`
	APIKeyEnv        string  `yaml:"apiKeyEnv,omitempty"`
	MaxTokens        int     `yaml:"maxTokens,omitempty"`
	Temperature      float32 `yaml:"temperature,omitempty"`
	Context          string  `yaml:"context,omitempty"`
	MaxPlans         int     `yaml:"maxPlans,omitempty"`
	DedupePartitions bool    `yaml:"dedupePartitions,omitempty"`
	Strict           bool    `yaml:"strict,omitempty"`
	PlanWorkers      int     `yaml:"planWorkers,omitempty"`
	EvalWorkers      int     `yaml:"evalWorkers,omitempty"`
	Normalize        bool    `yaml:"normalize,omitempty"`
	StorePath        string  `yaml:"storePath,omitempty"`
	Verbose          bool    `yaml:"verbose,omitempty"`
}

// Load attempts to read toqcheck.yml or toqcheck.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"toqcheck.yml", "toqcheck.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}

// APIKey reads the backend key from the configured environment variable,
// defaulting to OPENAI_API_KEY.
func (c *ProjectConfig) APIKey() string {
	env := c.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}
