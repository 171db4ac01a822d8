package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "OWL_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "OWL_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
	},
	{
		env: "OWL_SIMILARITY_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Similarity.URL = v.(string) },
	},
	{
		env: "OWL_GEMINI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
	},
	{
		env: "OWL_GEMINI_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Gemini.DefaultModel = v.(string) },
	},
	{
		env: "OWL_PIPELINE_K", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Pipeline.DefaultK = v.(int) },
	},
	{
		env: "OWL_PIPELINE_TEMPERATURE", typ: kFloat,
		apply: func(cfg *Config, v any) { cfg.Pipeline.DefaultTemperature = v.(float64) },
	},
	{
		env: "OWL_PIPELINE_CONTEXT_LIMIT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Pipeline.ContextLimitChars = v.(int) },
	},
	{
		env: "OWL_CACHE_ENABLED", typ: kBool,
		apply: func(cfg *Config, v any) { cfg.Cache.Enabled = v.(bool) },
	},
	{
		env: "OWL_CACHE_SIZE", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Cache.Size = v.(int) },
	},
	{
		env: "OWL_CACHE_TTL_SECONDS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Cache.TTLSeconds = v.(int) },
	},
	{
		env: "OWL_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "OWL_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config, lookup func(string) string) {
	for _, s := range specs {
		raw := lookup(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
