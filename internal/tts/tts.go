// Package tts defines the speech-synthesis side of a session.
//
// Every session has exactly one synthesis Backend. Backends that run inside
// carvoice (direct provider clients) also implement Synthesizer; the media
// worker sends them text and plays back the returned audio. The remaining
// backends are descriptors that the media worker resolves on its own, either
// through the inference gateway or through the realtime model.
package tts

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when asked to synthesize blank text.
var ErrEmptyText = errors.New("empty text for synthesis")

// Output format shared by the in-process synthesizers.
const (
	SampleRate  = 24000
	Encoding    = "pcm_s16le"
	ContentType = "audio/pcm;rate=24000"
)

// Spec is the wire description of a synthesis backend sent to the media worker.
type Spec struct {
	// Kind is "cartesia", "elevenlabs", "gateway" or "realtime".
	Kind string `json:"kind"`

	Model string `json:"model,omitempty"`
	Voice string `json:"voice,omitempty"`

	// Descriptor is the raw descriptor for gateway-routed synthesis.
	Descriptor string `json:"descriptor,omitempty"`

	// InProcess is true when carvoice performs synthesis itself.
	InProcess bool `json:"in_process"`
}

// Backend is the synthesis backend bound to a session.
type Backend interface {
	// Name returns the backend identifier (e.g., "cartesia", "gateway").
	Name() string

	// SynthesisSpec describes the backend for the media worker.
	SynthesisSpec() Spec
}

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr").
	Language string

	// Voice overrides the backend's configured voice id.
	Voice string
}

// Synthesizer converts text to audio in-process.
type Synthesizer interface {
	Backend

	// Synthesize generates raw PCM 16-bit LE audio at SampleRate from text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio.
	Audio []byte

	// ContentType is the MIME type of the audio.
	ContentType string

	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Channels is the number of audio channels (typically 1).
	Channels int
}
