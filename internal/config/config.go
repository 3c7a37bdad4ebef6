package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Data struct {
		Registry  string `yaml:"registry"`
		Relations string `yaml:"relations"`
		Lexicon   string `yaml:"lexicon"`
		Passages  string `yaml:"passages"`
		Attested  string `yaml:"attested"`
		DB        string `yaml:"db"`
	} `yaml:"data"`
	LLM struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		// Pointer so an explicit `temperature: 0` (deterministic
		// sampling) is distinguishable from an absent key.
		Temperature *float64 `yaml:"temperature"`
		MaxTokens   int      `yaml:"max_tokens"`
	} `yaml:"llm"`
	Narrative struct {
		MaxQuotes int `yaml:"max_quotes"`
	} `yaml:"narrative"`
}

// LoadConfig reads the YAML config, overlays .env, then environment
// variables, then fills defaults.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	var cfg Config

	// 2. Load YAML config; a missing file falls through to defaults.
	if file, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// 3. Override with environment variables if present
	if apiKey := os.Getenv("SDKLENS_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if provider := os.Getenv("SDKLENS_LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if baseURL := os.Getenv("SDKLENS_LLM_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("SDKLENS_LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if temp := os.Getenv("SDKLENS_LLM_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			cfg.LLM.Temperature = &v
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Data.Registry == "" {
		c.Data.Registry = "data/symbols.json"
	}
	if c.Data.Relations == "" {
		c.Data.Relations = "data/relations.json"
	}
	if c.Data.Lexicon == "" {
		c.Data.Lexicon = "data/lexicon.json"
	}
	if c.Data.Passages == "" {
		c.Data.Passages = "data/passages.json"
	}
	if c.Data.Attested == "" {
		c.Data.Attested = "data/attested.json"
	}
	if c.Data.DB == "" {
		c.Data.DB = "sdklens.db"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.BaseURL == "" && c.LLM.Provider == "openai" {
		c.LLM.BaseURL = "http://localhost:1234"
	}
	if c.LLM.Temperature == nil {
		v := 0.2
		c.LLM.Temperature = &v
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 400
	}
	if c.Narrative.MaxQuotes == 0 {
		c.Narrative.MaxQuotes = 4
	}
}
