// Package message defines the core data types flowing through the carvoice pipeline.
package message

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job is a request to run an assistant session in a room.
type Job struct {
	// ID is a unique identifier for this job (UUID). Assigned on intake when empty.
	ID string `json:"id"`

	// Room is the name of the real-time audio room to join.
	Room string `json:"room"`

	// Metadata is the raw dispatch metadata JSON. It may be empty or malformed;
	// the session falls back to defaults in that case.
	Metadata string `json:"metadata,omitempty"`

	// ReceivedAt is when the job was accepted.
	ReceivedAt time.Time `json:"received_at"`
}

// ErrInvalidJobID is returned for job ids that cannot name a session subject.
var ErrInvalidJobID = errors.New("job id must contain only letters, digits, '-' and '_'")

// jobIDPattern admits UUIDs and other single subject tokens. Wildcards, dots
// and whitespace would let one session listen on another's subjects.
var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateID reports whether the job id is usable. An empty id is valid;
// EnsureID assigns one later.
func (j Job) ValidateID() error {
	if j.ID == "" || jobIDPattern.MatchString(j.ID) {
		return nil
	}
	return ErrInvalidJobID
}

// EnsureID assigns a fresh UUID when the job has none.
func (j *Job) EnsureID() {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
}

// MetadataFromJSON renders a metadata field that arrived either as a JSON
// string or as an inline object into the raw string form.
func MetadataFromJSON(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one finalized utterance queued for persistence.
type Turn struct {
	SessionID string  `json:"-"`
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
}

// NewTurn builds a Turn with trimmed text. ok is false when the text is
// blank or no session id is set, in which case nothing should be persisted.
func NewTurn(sessionID string, speaker Speaker, text string) (turn Turn, ok bool) {
	text = strings.TrimSpace(text)
	if sessionID == "" || text == "" {
		return Turn{}, false
	}
	return Turn{SessionID: sessionID, Speaker: speaker, Text: text}, true
}

// StartResult describes a session that was started for a Job.
type StartResult struct {
	JobID     string   `json:"id"`
	Room      string   `json:"room"`
	Mode      string   `json:"mode"`
	SessionID string   `json:"session_id,omitempty"`
	Voice     string   `json:"voice"`
	Synthesis string   `json:"synthesis"`
	Tools     []string `json:"tools"`
}
