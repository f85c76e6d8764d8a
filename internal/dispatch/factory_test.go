package dispatch

import (
	"io"
	"log/slog"
	"testing"

	"github.com/nadzzz/carvoice/internal/interpreter/gateway"
	"github.com/nadzzz/carvoice/internal/interpreter/realtime"
	"github.com/nadzzz/carvoice/internal/session"
	"github.com/nadzzz/carvoice/internal/tts/cartesia"
	"github.com/nadzzz/carvoice/internal/tts/elevenlabs"
	ttsgateway "github.com/nadzzz/carvoice/internal/tts/gateway"
	"github.com/nadzzz/carvoice/internal/voice"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFactory(creds voice.Credentials) *Factory {
	return NewFactory(creds, WithFactoryLogger(quietLogger()))
}

func TestBuild_Realtime(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Realtime = true
	cfg.Voice = "cartesia/sonic-3:abc"

	b := newTestFactory(voice.Credentials{Cartesia: "ck"}).Build(cfg)
	if !b.Shared() {
		t.Fatal("realtime backends should be one object")
	}
	m, ok := b.Understanding.(*realtime.Model)
	if !ok {
		t.Fatalf("understanding = %T, want *realtime.Model", b.Understanding)
	}
	if m.Voice != "cartesia/sonic-3:abc" || m.Temperature != 0.8 {
		t.Errorf("model = %+v", m)
	}
	if _, ok := b.Synthesizer(); ok {
		t.Error("realtime mode should not run an in-process synthesizer")
	}
}

func TestBuild_HybridCartesia(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Voice = "cartesia/sonic-3:abc"

	b := newTestFactory(voice.Credentials{Cartesia: "ck"}).Build(cfg)
	if b.Shared() {
		t.Fatal("hybrid backends should be distinct")
	}
	llm, ok := b.Understanding.(*gateway.LLM)
	if !ok || llm.Model != session.DefaultModel {
		t.Errorf("understanding = %#v", b.Understanding)
	}
	s, ok := b.Synthesis.(*cartesia.Synthesizer)
	if !ok {
		t.Fatalf("synthesis = %T, want *cartesia.Synthesizer", b.Synthesis)
	}
	spec := s.SynthesisSpec()
	if spec.Voice != "abc" || spec.Model != "sonic-3" || !spec.InProcess {
		t.Errorf("spec = %+v", spec)
	}
}

func TestBuild_HybridElevenLabs(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Voice = "elevenlabs:xyz"

	b := newTestFactory(voice.Credentials{ElevenLabs: "ek"}).Build(cfg)
	s, ok := b.Synthesis.(*elevenlabs.Synthesizer)
	if !ok {
		t.Fatalf("synthesis = %T, want *elevenlabs.Synthesizer", b.Synthesis)
	}
	if spec := s.SynthesisSpec(); spec.Model != voice.ElevenLabsBaselineModel || spec.Voice != "xyz" {
		t.Errorf("spec = %+v", spec)
	}
}

func TestBuild_GatewayFallback(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		creds voice.Credentials
	}{
		{"missing credential", "cartesia/sonic-3:abc", voice.Credentials{}},
		{"unknown provider", "openai/tts-1:alloy", voice.Credentials{Cartesia: "ck", ElevenLabs: "ek"}},
		{"malformed descriptor", "elevenlabs", voice.Credentials{ElevenLabs: "ek"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := session.DefaultConfig()
			cfg.Voice = tt.voice

			b := newTestFactory(tt.creds).Build(cfg)
			g, ok := b.Synthesis.(*ttsgateway.Synthesizer)
			if !ok {
				t.Fatalf("synthesis = %T, want gateway", b.Synthesis)
			}
			if g.Descriptor != tt.voice {
				t.Errorf("descriptor = %q, want %q", g.Descriptor, tt.voice)
			}
			if spec := g.SynthesisSpec(); spec.InProcess {
				t.Error("gateway synthesis should not be in-process")
			}
		})
	}
}
