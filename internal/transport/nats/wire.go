package nats

import (
	"encoding/json"

	"github.com/nadzzz/carvoice/internal/interpreter"
	"github.com/nadzzz/carvoice/internal/message"
	"github.com/nadzzz/carvoice/internal/tts"
)

// Subjects are the per-session subjects shared with the media worker.
type Subjects struct {
	Start       string `json:"start"`
	Reply       string `json:"reply"`
	Transcripts string `json:"transcripts"`
	Tools       string `json:"tools"`
	TTS         string `json:"tts,omitempty"`
	Ended       string `json:"ended"`
}

// SubjectsFor returns the subjects for jobID under prefix.
func SubjectsFor(prefix, jobID string) Subjects {
	base := prefix + "." + jobID
	return Subjects{
		Start:       base + ".start",
		Reply:       base + ".reply",
		Transcripts: base + ".transcripts",
		Tools:       base + ".tools",
		TTS:         base + ".tts",
		Ended:       base + ".ended",
	}
}

// Tool returns the request subject for the named tool.
func (s Subjects) Tool(name string) string { return s.Tools + "." + name }

type startRequest struct {
	JobID         string           `json:"job_id"`
	Room          string           `json:"room"`
	URL           string           `json:"url"`
	Token         string           `json:"token"`
	Identity      string           `json:"identity"`
	Instructions  string           `json:"instructions"`
	Understanding interpreter.Spec `json:"understanding"`
	Synthesis     tts.Spec         `json:"synthesis"`
	Tools         []toolSpec       `json:"tools"`
	Subjects      Subjects         `json:"subjects"`
}

type toolSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

type startReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type replyRequest struct {
	Instructions string `json:"instructions"`
}

type transcriptEvent struct {
	Speaker message.Speaker `json:"speaker"`
	Text    string          `json:"text"`
}

type toolRequest struct {
	Query string `json:"query"`
}

type toolResponse struct {
	Text string `json:"text"`
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

type jobRequest struct {
	ID       string          `json:"id"`
	Room     string          `json:"room"`
	Metadata json.RawMessage `json:"metadata"`
}

type jobReply struct {
	*message.StartResult
	Error string `json:"error,omitempty"`
}
