// Package voice turns compact voice descriptors of the form
// "provider/model:voice-id" into a parsed provider selection.
//
// A descriptor that names a provider carvoice can call directly, and for
// which a credential is configured, resolves to that provider. Everything
// else resolves to the inference-gateway fallback, which carries the
// original string so the gateway can interpret it.
package voice

import (
	"log/slog"
	"strings"
)

// Provider tags the variant held by a Descriptor.
type Provider string

const (
	ProviderCartesia   Provider = "cartesia"
	ProviderElevenLabs Provider = "elevenlabs"
	ProviderFallback   Provider = "inference-fallback"
)

// Baseline models used when a descriptor omits the model segment.
const (
	CartesiaBaselineModel   = "sonic-3"
	ElevenLabsBaselineModel = "eleven_flash_v2_5"
)

// Descriptor is a parsed voice descriptor.
// Raw always holds the string it was resolved from.
type Descriptor struct {
	Provider Provider
	Model    string
	VoiceID  string
	Raw      string
}

// IsFallback reports whether the descriptor must be routed through the inference gateway.
func (d Descriptor) IsFallback() bool { return d.Provider == ProviderFallback }

// Fallback returns the inference-gateway variant for raw.
func Fallback(raw string) Descriptor {
	return Descriptor{Provider: ProviderFallback, Raw: raw}
}

// Credentials holds the direct-provider API keys. Only presence is checked.
type Credentials struct {
	Cartesia   string
	ElevenLabs string
}

func (c Credentials) has(p Provider) bool {
	switch p {
	case ProviderCartesia:
		return c.Cartesia != ""
	case ProviderElevenLabs:
		return c.ElevenLabs != ""
	default:
		return false
	}
}

// Resolver parses descriptors against a fixed set of credentials.
type Resolver struct {
	creds  Credentials
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger uses slog.Default().
func NewResolver(creds Credentials, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{creds: creds, logger: logger}
}

// Resolve parses raw. It never fails: unknown providers, malformed
// descriptors and missing credentials all yield Fallback(raw).
func (r *Resolver) Resolve(raw string) Descriptor {
	head, voiceID, hasVoice := strings.Cut(raw, ":")

	provider := Provider(head)
	if i := strings.Index(head, "/"); i >= 0 {
		provider = Provider(head[:i])
	}
	switch provider {
	case ProviderCartesia, ProviderElevenLabs:
	default:
		return Fallback(raw)
	}

	if !hasVoice || voiceID == "" {
		r.logger.Warn("invalid voice descriptor, expected provider/model:voice_id", "descriptor", raw)
		return Fallback(raw)
	}

	model := ""
	if i := strings.LastIndex(head, "/"); i >= 0 {
		model = head[i+1:]
	}
	if model == "" {
		model = baselineModel(provider)
	}

	if !r.creds.has(provider) {
		r.logger.Warn("voice provider credential missing, using inference gateway",
			"provider", provider, "descriptor", raw)
		return Fallback(raw)
	}

	return Descriptor{
		Provider: provider,
		Model:    model,
		VoiceID:  voiceID,
		Raw:      raw,
	}
}

func baselineModel(p Provider) string {
	if p == ProviderElevenLabs {
		return ElevenLabsBaselineModel
	}
	return CartesiaBaselineModel
}
