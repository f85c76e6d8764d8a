// Package gateway provides the text-only LLM backend reached through the
// inference gateway.
package gateway

import "github.com/nadzzz/carvoice/internal/interpreter"

// LLM is a text-only model identified by a "provider/model" handle.
type LLM struct {
	Model string
}

var _ interpreter.Backend = (*LLM)(nil)

// New returns an LLM backend for the model handle.
func New(model string) *LLM {
	return &LLM{Model: model}
}

// Name returns the backend identifier.
func (l *LLM) Name() string { return "gateway" }

// UnderstandingSpec describes the backend for the media worker.
func (l *LLM) UnderstandingSpec() interpreter.Spec {
	return interpreter.Spec{
		Kind:       "gateway",
		Model:      l.Model,
		Modalities: []string{interpreter.ModalityText},
	}
}
