package dispatch

import (
	"log/slog"

	"github.com/nadzzz/carvoice/internal/interpreter"
	"github.com/nadzzz/carvoice/internal/interpreter/gateway"
	"github.com/nadzzz/carvoice/internal/interpreter/realtime"
	"github.com/nadzzz/carvoice/internal/session"
	"github.com/nadzzz/carvoice/internal/tts"
	"github.com/nadzzz/carvoice/internal/tts/cartesia"
	"github.com/nadzzz/carvoice/internal/tts/elevenlabs"
	ttsgateway "github.com/nadzzz/carvoice/internal/tts/gateway"
	"github.com/nadzzz/carvoice/internal/voice"
)

// Backends is the pair of backends bound to one session. In realtime mode
// both fields hold the same *realtime.Model.
type Backends struct {
	Understanding interpreter.Backend
	Synthesis     tts.Backend
}

// Shared reports whether one backend serves both roles.
func (b Backends) Shared() bool {
	return any(b.Understanding) == any(b.Synthesis)
}

// Synthesizer returns the in-process synthesizer, if the synthesis backend is one.
func (b Backends) Synthesizer() (tts.Synthesizer, bool) {
	s, ok := b.Synthesis.(tts.Synthesizer)
	return s, ok
}

// Close releases the in-process synthesizer, if any.
func (b Backends) Close() error {
	if s, ok := b.Synthesizer(); ok {
		return s.Close()
	}
	return nil
}

// Factory selects and constructs the backends for a session configuration.
type Factory struct {
	resolver *voice.Resolver
	creds    voice.Credentials
	logger   *slog.Logger

	cartesiaOpts   []cartesia.Option
	elevenLabsOpts []elevenlabs.Option
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithCartesiaOptions passes options to every Cartesia synthesizer built.
func WithCartesiaOptions(opts ...cartesia.Option) FactoryOption {
	return func(f *Factory) { f.cartesiaOpts = append(f.cartesiaOpts, opts...) }
}

// WithElevenLabsOptions passes options to every ElevenLabs synthesizer built.
func WithElevenLabsOptions(opts ...elevenlabs.Option) FactoryOption {
	return func(f *Factory) { f.elevenLabsOpts = append(f.elevenLabsOpts, opts...) }
}

// WithFactoryLogger sets the logger used for resolution warnings.
func WithFactoryLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a Factory using the direct-provider credentials in creds.
func NewFactory(creds voice.Credentials, opts ...FactoryOption) *Factory {
	f := &Factory{creds: creds, logger: slog.Default()}
	for _, o := range opts {
		o(f)
	}
	f.resolver = voice.NewResolver(creds, f.logger)
	return f
}

// Build returns the backends for cfg. It never fails: anything that cannot
// be served directly is routed through the inference gateway.
func (f *Factory) Build(cfg session.Config) Backends {
	if cfg.Realtime {
		m := realtime.New(cfg.Voice)
		return Backends{Understanding: m, Synthesis: m}
	}
	return Backends{
		Understanding: gateway.New(cfg.Model),
		Synthesis:     f.synthesis(cfg.Voice),
	}
}

func (f *Factory) synthesis(raw string) tts.Backend {
	d := f.resolver.Resolve(raw)

	var (
		s   tts.Synthesizer
		err error
	)
	switch d.Provider {
	case voice.ProviderCartesia:
		s, err = cartesia.New(f.creds.Cartesia, d.Model, d.VoiceID, f.cartesiaOpts...)
	case voice.ProviderElevenLabs:
		s, err = elevenlabs.New(f.creds.ElevenLabs, d.Model, d.VoiceID, f.elevenLabsOpts...)
	default:
		f.logger.Info("using inference gateway for synthesis", "descriptor", raw)
		return ttsgateway.New(raw)
	}
	if err != nil {
		f.logger.Warn("direct synthesis unavailable, using inference gateway",
			"provider", d.Provider, "descriptor", raw, "error", err)
		return ttsgateway.New(raw)
	}

	f.logger.Info("using direct synthesis", "provider", d.Provider, "model", d.Model, "voice", d.VoiceID)
	return s
}
