// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package appconfig loads and saves the engine's data-directory config
// file, the JSON contract described in SPEC_FULL.md §6.
package appconfig

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/northbound/kbengine/internal/apperrors"
)

// LLMConfig configures the LLM Stream Client.
type LLMConfig struct {
	APIKey      string   `json:"apiKey"`
	Model       string   `json:"model"`
	BaseURL     string   `json:"baseUrl,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stream      bool     `json:"stream"`
}

// EmbeddingConfig configures the Embedding Client.
type EmbeddingConfig struct {
	BaseURL string `json:"baseUrl,omitempty"`
}

// SpeechConfig is carried in the schema even though speech-to-text is out
// of scope (SPEC_FULL.md §1) — the key must round-trip for callers that
// persist a config file written by a version of the app that has it.
type SpeechConfig struct {
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

// Config is the `{data_dir}/config.json` contract.
type Config struct {
	LLM       LLMConfig        `json:"llm"`
	Embedding *EmbeddingConfig `json:"embedding,omitempty"`
	Speech    *SpeechConfig    `json:"speech,omitempty"`
}

func Default() Config {
	maxTokens := 4000
	temperature := 0.7
	return Config{
		LLM: LLMConfig{
			Model:       "gpt-4",
			BaseURL:     "https://api.openai.com/v1",
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			Stream:      true,
		},
	}
}

func path(dataDir string) string {
	return filepath.Join(dataDir, "config.json")
}

func examplePath(dataDir string) string {
	return filepath.Join(dataDir, "config.example.json")
}

// Load reads and validates the config file, generating config.example.json
// alongside it if the real file is missing. Missing llm.apiKey or
// llm.model is a fatal validation error, matching original_source's
// config.rs load_from_file/validate.
func Load(dataDir string) (Config, error) {
	p := path(dataDir)
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		if werr := writeExample(dataDir); werr != nil {
			return Config{}, apperrors.Runtime("writing config.example.json", werr)
		}
		return Config{}, apperrors.Validation("config.json not found; see config.example.json")
	}
	if err != nil {
		return Config{}, apperrors.Runtime("reading config.json", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, apperrors.Validation("config.json is not valid JSON: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the fatal-on-missing rule from SPEC_FULL.md §6.
func (c Config) Validate() error {
	if c.LLM.APIKey == "" {
		return apperrors.Validation("llm.apiKey is required")
	}
	if c.LLM.Model == "" {
		return apperrors.Validation("llm.model is required")
	}
	return nil
}

// Save writes the config pretty-printed, as original_source's
// save_to_file does.
func Save(dataDir string, cfg Config) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return apperrors.Runtime("creating data dir", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return apperrors.Runtime("marshalling config", err)
	}
	return os.WriteFile(path(dataDir), data, 0o644)
}

func writeExample(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(examplePath(dataDir), data, 0o644)
}
