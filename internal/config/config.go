package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Similarity SimilarityConfig
	Gemini     GeminiConfig
	Pipeline   PipelineConfig
	Cache      CacheConfig
	Storage    StorageConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
	// APIToken, when non-empty, enables bearer auth on the /v1 routes.
	APIToken string
}

type SimilarityConfig struct {
	// URL of the similarity search endpoint. May be empty at startup;
	// retrieval fails with a categorized error when attempted without it.
	URL string
}

type GeminiConfig struct {
	APIKey       string
	DefaultModel string
}

type PipelineConfig struct {
	DefaultK           int
	DefaultTemperature float64
	ContextLimitChars  int
}

type CacheConfig struct {
	// Enabled toggles the (query, k) retrieval cache. Purely a latency
	// optimization; results are identical with it off.
	Enabled    bool
	Size       int
	TTLSeconds int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Gemini: GeminiConfig{
			DefaultModel: "gemini-2.5-flash-lite",
		},
		Pipeline: PipelineConfig{
			DefaultK:           5,
			DefaultTemperature: 0.5,
			ContextLimitChars:  12000,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Size:       128,
			TTLSeconds: 300,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".owl"
	}
	return filepath.Join(home, ".owl")
}

// Load reads configuration from defaults, an optional .env file in the
// working directory, and environment variables (OWL_*). The legacy names
// GOOGLE_API_KEY and SIMILARITY_API are honored when the OWL_* variables
// are unset.
//
// A missing Gemini API key is a fatal load error. A missing similarity
// endpoint URL is not: retrieval reports it when first attempted.
func Load() (Config, error) {
	// Ignore a missing .env; env vars and defaults still apply.
	_ = godotenv.Load()
	return loadWith(os.Getenv)
}

func loadWith(lookup func(string) string) (Config, error) {
	cfg := defaults()

	applyEnvOverrides(&cfg, lookup)

	// Legacy variable names used by earlier deployments.
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = lookup("GOOGLE_API_KEY")
	}
	if cfg.Similarity.URL == "" {
		cfg.Similarity.URL = lookup("SIMILARITY_API")
	}

	if cfg.Gemini.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: Gemini API key. " +
			"Set it via environment variable OWL_GEMINI_API_KEY (or GOOGLE_API_KEY)")
	}

	return cfg, nil
}
