// Package config loads kitchen.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"kitchencraft.ai/internal/cooking"
)

// Environment variables that override the file.
const (
	EnvAPIKey         = "GEMINI_API_KEY"
	EnvAPIEndpoint    = "GEMINI_API_ENDPOINT"
	EnvTimeoutSeconds = "GEMINI_TIMEOUT_SECONDS"
)

type Config struct {
	KitchenID          string         `yaml:"kitchen_id"`
	TickRateHz         int            `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int            `yaml:"snapshot_every_ticks"`
	Capacities         map[string]int `yaml:"capacities,omitempty"`

	Server  ServerConfig  `yaml:"server"`
	AI      AIConfig      `yaml:"ai"`
	Storage StorageConfig `yaml:"storage"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// RecipeTimeoutSeconds bounds one websocket request end to end.
	RecipeTimeoutSeconds int `yaml:"recipe_timeout_seconds"`
}

type AIConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key,omitempty"`
	// ConnectTimeoutSeconds bounds dialing the API.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	// RequestTimeoutSeconds bounds a whole generation call.
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	Temperature           float64 `yaml:"temperature"`
	MaxOutputTokens       int     `yaml:"max_output_tokens"`
	Workers               int     `yaml:"workers"`
	// CacheTTLSeconds > 0 reuses recipes per dish and category. Off by default.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	CatalogDir string `yaml:"catalog_dir,omitempty"`
	DisableDB  bool   `yaml:"disable_db"`
	DisableLog bool   `yaml:"disable_log"`
}

func Defaults() Config {
	return Config{
		KitchenID:          "kitchen_1",
		TickRateHz:         20,
		SnapshotEveryTicks: 6000,
		Server: ServerConfig{
			Addr:                 ":8080",
			RecipeTimeoutSeconds: 90,
		},
		AI: AIConfig{
			Endpoint:              "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent",
			ConnectTimeoutSeconds: 30,
			RequestTimeoutSeconds: 60,
			Temperature:           0.7,
			MaxOutputTokens:       2048,
			Workers:               2,
		},
	}
}

// Load reads path (may be empty for defaults) and applies env overrides from
// getenv. Pass os.Getenv in production.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("kitchen.yaml: %w", err)
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("kitchen.yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoint settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	if v := strings.TrimSpace(getenv(EnvAPIKey)); v != "" {
		c.AI.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIEndpoint)); v != "" {
		c.AI.Endpoint = v
	}
	if v := strings.TrimSpace(getenv(EnvTimeoutSeconds)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeoutSeconds, err)
		}
		c.AI.ConnectTimeoutSeconds = n
	}
	return nil
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	d := Defaults()
	c.KitchenID = strings.TrimSpace(c.KitchenID)
	if c.KitchenID == "" {
		c.KitchenID = d.KitchenID
	}
	if c.TickRateHz == 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RecipeTimeoutSeconds == 0 {
		c.Server.RecipeTimeoutSeconds = d.Server.RecipeTimeoutSeconds
	}
	if strings.TrimSpace(c.AI.Endpoint) == "" {
		c.AI.Endpoint = d.AI.Endpoint
	}
	if c.AI.ConnectTimeoutSeconds == 0 {
		c.AI.ConnectTimeoutSeconds = d.AI.ConnectTimeoutSeconds
	}
	if c.AI.RequestTimeoutSeconds == 0 {
		c.AI.RequestTimeoutSeconds = d.AI.RequestTimeoutSeconds
	}
	if c.AI.MaxOutputTokens == 0 {
		c.AI.MaxOutputTokens = d.AI.MaxOutputTokens
	}
	if c.AI.Workers == 0 {
		c.AI.Workers = d.AI.Workers
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data/kitchens/" + c.KitchenID
	}
}

func (c Config) Validate() error {
	if c.TickRateHz <= 0 || c.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in [1, 1000]")
	}
	if c.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	for k, n := range c.Capacities {
		kind, err := cooking.ParseKind(k)
		if err != nil {
			return fmt.Errorf("capacities: %w", err)
		}
		p, _ := cooking.ProfileFor(kind)
		if !p.Cooks {
			return fmt.Errorf("capacities: %s has no ingredient ledger", k)
		}
		if n <= 0 || n > 64 {
			return fmt.Errorf("capacities.%s must be in [1, 64]", k)
		}
	}
	if c.Server.RecipeTimeoutSeconds < 0 {
		return fmt.Errorf("server.recipe_timeout_seconds must be >= 0")
	}
	if c.AI.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("ai.connect_timeout_seconds must be > 0")
	}
	if c.AI.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("ai.request_timeout_seconds must be > 0")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be in [0, 2]")
	}
	if c.AI.MaxOutputTokens <= 0 {
		return fmt.Errorf("ai.max_output_tokens must be > 0")
	}
	if c.AI.Workers <= 0 || c.AI.Workers > 64 {
		return fmt.Errorf("ai.workers must be in [1, 64]")
	}
	if c.AI.CacheTTLSeconds < 0 {
		return fmt.Errorf("ai.cache_ttl_seconds must be >= 0")
	}
	return nil
}

// KindCapacities converts the capacities map for the kitchen.
func (c Config) KindCapacities() map[cooking.Kind]int {
	out := make(map[cooking.Kind]int, len(c.Capacities))
	for k, n := range c.Capacities {
		out[cooking.Kind(k)] = n
	}
	return out
}
