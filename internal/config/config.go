package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/user/gardencalm/internal/empathy"
)

type Config struct {
	DataDir           string `json:"data_dir"`
	LogLevel          string `json:"log_level"`
	Store             string `json:"store"` // "memory" or "file"
	MaxConcurrentDeep int    `json:"max_concurrent_deep"`
	CleanupSchedule   string `json:"cleanup_schedule"`
	LLM               struct {
		Provider    string  `json:"provider"`
		BaseURL     string  `json:"base_url"`
		APIKey      string  `json:"api_key"`
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float32 `json:"temperature"`
	} `json:"llm"`
	Server struct {
		Addr string `json:"addr"`
	} `json:"server"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	Empathy struct {
		DecayIntervalMin      int     `json:"decay_interval_min"`
		DecayRate             float64 `json:"decay_rate"`
		SuggestionThreshold   float64 `json:"suggestion_threshold"`
		SuggestionMargin      float64 `json:"suggestion_margin"`
		SuggestionCooldownMin int     `json:"suggestion_cooldown_min"`
		EscalationCooldownMin int     `json:"escalation_cooldown_min"`
		BlendThreshold        float64 `json:"blend_threshold"`
		SessionTTLHours       int     `json:"session_ttl_hours"`
	} `json:"empathy"`
}

func Load(path string) (*Config, error) {
	// .env values become plain env vars before the override pass below.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:           filepath.Join(os.Getenv("HOME"), ".gardencalm"),
		LogLevel:          "info",
		Store:             "memory",
		MaxConcurrentDeep: 2,
		CleanupSchedule:   "*/10 * * * *",
	}
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 1000
	cfg.LLM.Temperature = 0.7
	cfg.Server.Addr = ":8080"

	def := empathy.DefaultConfig()
	cfg.Empathy.DecayIntervalMin = int(def.DecayInterval / time.Minute)
	cfg.Empathy.DecayRate = def.DecayRate
	cfg.Empathy.SuggestionThreshold = def.SuggestionThreshold
	cfg.Empathy.SuggestionMargin = def.SuggestionMargin
	cfg.Empathy.SuggestionCooldownMin = int(def.SuggestionCooldown / time.Minute)
	cfg.Empathy.EscalationCooldownMin = int(def.EscalationCooldown / time.Minute)
	cfg.Empathy.BlendThreshold = def.BlendThreshold
	cfg.Empathy.SessionTTLHours = int(def.SessionTTL / time.Hour)

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if addr := os.Getenv("GARDENCALM_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	return cfg, nil
}

// EmpathyConfig maps the file's tunables onto the engine's config,
// falling back to engine defaults for anything left at zero.
func (c *Config) EmpathyConfig() empathy.Config {
	ec := empathy.DefaultConfig()
	if c.Empathy.DecayIntervalMin > 0 {
		ec.DecayInterval = time.Duration(c.Empathy.DecayIntervalMin) * time.Minute
	}
	if c.Empathy.DecayRate > 0 {
		ec.DecayRate = c.Empathy.DecayRate
	}
	if c.Empathy.SuggestionThreshold > 0 {
		ec.SuggestionThreshold = c.Empathy.SuggestionThreshold
	}
	if c.Empathy.SuggestionMargin > 0 {
		ec.SuggestionMargin = c.Empathy.SuggestionMargin
	}
	if c.Empathy.SuggestionCooldownMin > 0 {
		ec.SuggestionCooldown = time.Duration(c.Empathy.SuggestionCooldownMin) * time.Minute
	}
	if c.Empathy.EscalationCooldownMin > 0 {
		ec.EscalationCooldown = time.Duration(c.Empathy.EscalationCooldownMin) * time.Minute
	}
	if c.Empathy.BlendThreshold > 0 {
		ec.BlendThreshold = c.Empathy.BlendThreshold
	}
	if c.Empathy.SessionTTLHours > 0 {
		ec.SessionTTL = time.Duration(c.Empathy.SessionTTLHours) * time.Hour
	}
	return ec
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
