// Package interpreter defines the speech-understanding side of a session.
//
// carvoice ships with two backends: a realtime speech-to-speech model that
// both understands and speaks, and a text-only LLM reached through the
// inference gateway that is paired with a separate synthesis backend.
// Neither runs inside carvoice; the media worker hosts them from the Spec.
package interpreter

// Modalities produced by an understanding backend.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// Spec is the wire description of an understanding backend sent to the media worker.
type Spec struct {
	// Kind is "realtime" or "gateway".
	Kind        string   `json:"kind"`
	Model       string   `json:"model,omitempty"`
	Voice       string   `json:"voice,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Modalities  []string `json:"modalities"`
}

// Backend is the understanding backend bound to a session.
type Backend interface {
	// Name returns the backend identifier (e.g., "realtime", "gateway").
	Name() string

	// UnderstandingSpec describes the backend for the media worker.
	UnderstandingSpec() Spec
}

// ProducesAudio reports whether b generates speech itself.
func ProducesAudio(b Backend) bool {
	for _, m := range b.UnderstandingSpec().Modalities {
		if m == ModalityAudio {
			return true
		}
	}
	return false
}
