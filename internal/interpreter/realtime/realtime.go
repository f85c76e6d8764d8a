// Package realtime describes the full-duplex speech-to-speech backend.
//
// The realtime model consumes and produces audio directly, so one Model
// value is bound as both the understanding and the synthesis backend of a
// session.
package realtime

import (
	"github.com/nadzzz/carvoice/internal/interpreter"
	"github.com/nadzzz/carvoice/internal/tts"
)

// DefaultTemperature is the fixed sampling temperature for realtime sessions.
const DefaultTemperature = 0.8

// Model is a realtime speech-to-speech backend.
type Model struct {
	// Voice is passed to the model as its native voice id, unresolved.
	Voice       string
	Temperature float64
}

var (
	_ interpreter.Backend = (*Model)(nil)
	_ tts.Backend         = (*Model)(nil)
)

// New creates a realtime model speaking with voice.
func New(voice string) *Model {
	return &Model{Voice: voice, Temperature: DefaultTemperature}
}

// Name returns the backend identifier.
func (m *Model) Name() string { return "realtime" }

// UnderstandingSpec describes the understanding side for the media worker.
func (m *Model) UnderstandingSpec() interpreter.Spec {
	return interpreter.Spec{
		Kind:        "realtime",
		Voice:       m.Voice,
		Temperature: m.Temperature,
		Modalities:  []string{interpreter.ModalityText, interpreter.ModalityAudio},
	}
}

// SynthesisSpec describes the speaking side. The model voices its own
// output, so nothing runs in-process.
func (m *Model) SynthesisSpec() tts.Spec {
	return tts.Spec{Kind: "realtime", Voice: m.Voice}
}
