// Package config loads gate deployment settings from YAML and the
// environment. Loading is fail-safe in the conservative direction: a
// missing or malformed file yields the default (strictest) settings
// with a logged warning, never a more permissive gate.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/aegis/pkg/gate"
)

// Settings is the full deployment configuration: gate policy plus the
// operational surround (audit backend, stats sink, archive, receipts).
type Settings struct {
	Gate gate.Config `yaml:"gate" json:"gate"`

	LexiconPath string `yaml:"lexicon_path" json:"lexicon_path"`
	LogLevel    string `yaml:"log_level" json:"log_level"`

	Audit   AuditSettings   `yaml:"audit" json:"audit"`
	Stats   StatsSettings   `yaml:"stats" json:"stats"`
	Archive ArchiveSettings `yaml:"archive" json:"archive"`
	Receipt ReceiptSettings `yaml:"receipt" json:"receipt"`
}

// AuditSettings selects the audit persistence backend.
type AuditSettings struct {
	Backend string `yaml:"backend" json:"backend"` // "memory" | "sqlite" | "postgres"
	DSN     string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// StatsSettings configures the optional Redis statistics sink.
type StatsSettings struct {
	RedisAddr     string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty" json:"redis_db,omitempty"`
	Key           string `yaml:"key,omitempty" json:"key,omitempty"`
}

// ArchiveSettings configures the optional S3 audit archive.
type ArchiveSettings struct {
	Bucket           string  `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Region           string  `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint         string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Prefix           string  `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	BatchesPerMinute float64 `yaml:"batches_per_minute,omitempty" json:"batches_per_minute,omitempty"`
	BatchSize        int     `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
}

// ReceiptSettings configures signed verdict receipts.
type ReceiptSettings struct {
	Secret     string `yaml:"secret,omitempty" json:"secret,omitempty"`
	Issuer     string `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	TTLMinutes int    `yaml:"ttl_minutes,omitempty" json:"ttl_minutes,omitempty"`
}

// settingsSchema bounds the numeric policy knobs. Validation rejects
// files that are syntactically fine but semantically out of range, so
// they fall back to defaults instead of half-applying.
const settingsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "gate": {
      "type": "object",
      "properties": {
        "tau_reject":         {"type": "number", "minimum": 0, "maximum": 1},
        "tau_repair":         {"type": "number", "minimum": 0, "maximum": 1},
        "max_repairs":        {"type": "integer", "minimum": 0, "maximum": 5},
        "tau_drift_reject":   {"type": "number", "minimum": 0, "maximum": 1},
        "tau_drift_escalate": {"type": "number", "minimum": 0, "maximum": 1},
        "strict_no_escalate": {"type": "boolean"}
      }
    },
    "audit": {
      "type": "object",
      "properties": {
        "backend": {"type": "string", "enum": ["memory", "sqlite", "postgres"]}
      }
    },
    "log_level": {"type": "string", "enum": ["debug", "info", "warn", "error", ""]}
  }
}`

// Default returns the settings a gate runs with when nothing else is
// configured.
func Default() Settings {
	return Settings{
		Gate:     gate.DefaultConfig(),
		LogLevel: "info",
		Audit:    AuditSettings{Backend: "memory"},
	}
}

// Load reads settings from an optional YAML file, applies environment
// overrides, and validates. It never returns an error: a bad file or
// bad values produce Default() with a warning, keeping the gate at its
// strictest rather than refusing to start or loosening by accident.
func Load(path string, logger *slog.Logger) Settings {
	if logger == nil {
		logger = slog.Default()
	}
	s := Default()

	if path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			logger.Warn("config file rejected, using defaults", "path", path, "error", err)
		} else {
			s = loaded
		}
	}

	applyEnv(&s)
	s.Gate = s.Gate.Normalize()
	if s.Audit.Backend == "" {
		s.Audit.Backend = "memory"
	}
	return s
}

func loadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(raw); err != nil {
		return Settings{}, fmt.Errorf("validate config: %w", err)
	}

	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	return s, nil
}

func validate(raw any) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	const schemaURL = "https://aegis.schemas.local/settings.schema.json"
	if err := c.AddResource(schemaURL, strings.NewReader(settingsSchema)); err != nil {
		return fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("schema compile failed: %w", err)
	}
	return compiled.Validate(normalizeYAML(raw))
}

// normalizeYAML converts yaml.v3's map[string]any trees into the
// map[string]any/float64 shapes the schema validator expects.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	case int:
		return float64(t)
	default:
		return v
	}
}

// applyEnv layers AEGIS_* environment variables over file settings.
// Malformed values are ignored, leaving the stricter current value.
func applyEnv(s *Settings) {
	if v := os.Getenv("AEGIS_LEXICON_PATH"); v != "" {
		s.LexiconPath = v
	}
	if v := os.Getenv("AEGIS_LOG_LEVEL"); v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("AEGIS_AUDIT_BACKEND"); v != "" {
		s.Audit.Backend = v
	}
	if v := os.Getenv("AEGIS_AUDIT_DSN"); v != "" {
		s.Audit.DSN = v
	}
	if v := os.Getenv("AEGIS_REDIS_ADDR"); v != "" {
		s.Stats.RedisAddr = v
	}
	if v := os.Getenv("AEGIS_REDIS_PASSWORD"); v != "" {
		s.Stats.RedisPassword = v
	}
	if v := os.Getenv("AEGIS_RECEIPT_SECRET"); v != "" {
		s.Receipt.Secret = v
	}
	if v := os.Getenv("AEGIS_TAU_REJECT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.Gate.TauReject = f
		}
	}
	if v := os.Getenv("AEGIS_TAU_REPAIR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.Gate.TauRepair = f
		}
	}
	if v := os.Getenv("AEGIS_MAX_REPAIRS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Gate.MaxRepairs = n
		}
	}
	if v := os.Getenv("AEGIS_STRICT_NO_ESCALATE"); v != "" {
		s.Gate.StrictNoEscalate = v == "true" || v == "1"
	}
}

// SlogLevel maps the configured level string onto slog.
func (s Settings) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
