// Package config loads .flow/config.json, deep-merging it over built-in
// defaults the way every other store component layers runtime over
// definition: defaults first, then whatever the file overrides.
package config

import (
	"encoding/json"
	"os"
)

// ReviewBackend selects which review tool the review orchestrator shells
// out to.
type ReviewBackend string

const (
	BackendRP    ReviewBackend = "rp"
	BackendCodex ReviewBackend = "codex"
	BackendNone  ReviewBackend = "none"
)

// Config holds all of .flow/config.json.
type Config struct {
	ReviewBackend      ReviewBackend `json:"review_backend"`
	CodexModel         string        `json:"codex_model"`
	CodexEmbedMaxBytes int           `json:"codex_embed_max_bytes"`
	ReviewerTimeoutSec int           `json:"reviewer_timeout_sec"`
	RPTimeoutSec       int           `json:"rp_timeout_sec"`
	DiffCapBytes       int           `json:"diff_cap_bytes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ReviewBackend:      BackendCodex,
		CodexModel:         "",
		CodexEmbedMaxBytes: 102400,
		ReviewerTimeoutSec: 600,
		RPTimeoutSec:       1200,
		DiffCapBytes:       50 * 1024,
	}
}

// Load reads path and deep-merges its contents over Default(). A missing
// file is not an error — it just means all defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, err
	}
	if err := cfg.mergeOverlay(overlay); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeOverlay applies whichever fields overlay sets, leaving the rest at
// their default values — a field-by-field merge rather than a full
// struct replace, so a config.json that only sets review_backend doesn't
// reset everything else to zero values.
func (c *Config) mergeOverlay(overlay map[string]json.RawMessage) error {
	type patch struct {
		ReviewBackend      *ReviewBackend `json:"review_backend"`
		CodexModel         *string        `json:"codex_model"`
		CodexEmbedMaxBytes *int           `json:"codex_embed_max_bytes"`
		ReviewerTimeoutSec *int           `json:"reviewer_timeout_sec"`
		RPTimeoutSec       *int           `json:"rp_timeout_sec"`
		DiffCapBytes       *int           `json:"diff_cap_bytes"`
	}
	raw, err := json.Marshal(overlay)
	if err != nil {
		return err
	}
	var p patch
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if p.ReviewBackend != nil {
		c.ReviewBackend = *p.ReviewBackend
	}
	if p.CodexModel != nil {
		c.CodexModel = *p.CodexModel
	}
	if p.CodexEmbedMaxBytes != nil {
		c.CodexEmbedMaxBytes = *p.CodexEmbedMaxBytes
	}
	if p.ReviewerTimeoutSec != nil {
		c.ReviewerTimeoutSec = *p.ReviewerTimeoutSec
	}
	if p.RPTimeoutSec != nil {
		c.RPTimeoutSec = *p.RPTimeoutSec
	}
	if p.DiffCapBytes != nil {
		c.DiffCapBytes = *p.DiffCapBytes
	}
	return nil
}

// Save writes c to path as formatted JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// Get returns the string representation of a single config key, used by
// the `config get` command.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case "review_backend":
		return string(c.ReviewBackend), true
	case "codex_model":
		return c.CodexModel, true
	default:
		return "", false
	}
}

// Set applies a single string value to a config key, used by the
// `config set` command. It does not persist; callers call Save after.
func (c *Config) Set(key, value string) bool {
	switch key {
	case "review_backend":
		c.ReviewBackend = ReviewBackend(value)
	case "codex_model":
		c.CodexModel = value
	default:
		return false
	}
	return true
}
