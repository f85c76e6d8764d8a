package dispatch

import (
	"context"

	"github.com/nadzzz/carvoice/internal/message"
	"github.com/nadzzz/carvoice/internal/tools"
)

// Plan is everything a runtime needs to join a room and run the agent.
type Plan struct {
	JobID    string
	Room     string
	RoomURL  string
	Token    string
	Identity string

	Instructions string
	Backends     Backends
	Tools        *tools.Set
}

// TranscriptHandler receives one finalized utterance. It must not block.
type TranscriptHandler func(speaker message.Speaker, text string)

// Runtime drives the media side of one session: room membership, audio
// and turn-taking.
type Runtime interface {
	// Start joins the room and starts the agent. An error is session-fatal.
	Start(ctx context.Context, plan Plan) error

	// OnTranscript registers a handler for finalized utterances. It is
	// called before Start.
	OnTranscript(h TranscriptHandler)

	// GenerateReply asks the agent to speak following instructions.
	GenerateReply(ctx context.Context, instructions string) error

	// Done is closed when the session has ended.
	Done() <-chan struct{}
}

// Connector creates the Runtime for a job.
type Connector interface {
	Connect(jobID string) Runtime
}
