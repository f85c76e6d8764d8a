// Package session derives the per-session configuration from dispatch metadata.
package session

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Defaults applied when dispatch metadata omits a field.
const (
	DefaultVoice = "cartesia/sonic-3:a0e99841-438c-4a64-b679-ae501e7d6091"
	DefaultModel = "openai/gpt-4.1-mini"
)

// Config is the configuration of a single session. It is derived once from
// dispatch metadata and passed by value afterwards.
type Config struct {
	// SessionID correlates transcript turns with a remote conversation
	// record. Empty disables transcript persistence.
	SessionID string

	// Realtime selects the single speech-to-speech backend instead of the
	// hybrid text LLM + separate synthesis pipeline.
	Realtime bool

	// Voice is a provider-qualified voice descriptor ("provider/model:voice_id").
	Voice string

	// Model is a provider-qualified LLM identifier, used in hybrid mode only.
	Model string

	ToolCalling bool
	WebSearch   bool
}

// Mode returns "realtime" or "hybrid".
func (c Config) Mode() string {
	if c.Realtime {
		return "realtime"
	}
	return "hybrid"
}

// DefaultConfig returns the configuration used when no metadata is supplied.
func DefaultConfig() Config {
	return Config{
		Voice:       DefaultVoice,
		Model:       DefaultModel,
		ToolCalling: true,
		WebSearch:   true,
	}
}

// ParseMetadata builds a Config from raw dispatch metadata. It never fails:
// absent or malformed metadata yields DefaultConfig, and a field of the wrong
// type keeps its default.
func ParseMetadata(raw string) Config {
	cfg := DefaultConfig()
	if strings.TrimSpace(raw) == "" {
		return cfg
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		slog.Warn("failed to parse dispatch metadata, using defaults", "error", err)
		return cfg
	}

	decode(fields, "session_id", &cfg.SessionID)
	decode(fields, "realtime", &cfg.Realtime)
	decode(fields, "voice", &cfg.Voice)
	decode(fields, "model", &cfg.Model)
	decode(fields, "tool_calling_enabled", &cfg.ToolCalling)
	decode(fields, "web_search_enabled", &cfg.WebSearch)

	cfg.SessionID = strings.TrimSpace(cfg.SessionID)
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = DefaultVoice
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	return cfg
}

// decode overwrites *dst with fields[key] when present and well-typed.
func decode[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("ignoring dispatch metadata field", "field", key, "error", err)
		return
	}
	*dst = v
}
