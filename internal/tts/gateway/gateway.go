// Package gateway provides the synthesis backend used when no direct
// provider is available. The descriptor is handed to the media worker
// verbatim and resolved by the inference gateway.
package gateway

import "github.com/nadzzz/carvoice/internal/tts"

// Synthesizer routes synthesis through the inference gateway.
type Synthesizer struct {
	Descriptor string
}

// New returns a gateway-routed backend for descriptor.
func New(descriptor string) *Synthesizer {
	return &Synthesizer{Descriptor: descriptor}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "gateway" }

// SynthesisSpec describes the backend for the media worker.
func (s *Synthesizer) SynthesisSpec() tts.Spec {
	return tts.Spec{Kind: "gateway", Descriptor: s.Descriptor}
}
