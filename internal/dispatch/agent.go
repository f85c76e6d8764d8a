package dispatch

import (
	"github.com/nadzzz/carvoice/internal/session"
	"github.com/nadzzz/carvoice/internal/tools"
	"github.com/nadzzz/carvoice/internal/tools/websearch"
)

const (
	// Instructions is the assistant persona.
	Instructions = "You are a helpful voice AI assistant for CarPlay. " +
		"Keep responses concise and clear for safe driving. " +
		"Answer questions directly and briefly."

	// GreetingInstructions is issued once after the session starts.
	GreetingInstructions = "Greet the user briefly and ask how you can help them."
)

// Agent is the conversational persona plus the tools it may call.
type Agent struct {
	Instructions string
	Tools        *tools.Set
}

// NewAgent wraps the persona with the capabilities enabled in cfg. With
// tool calling off the agent has no tools at all; otherwise web_search is
// registered and applies its own per-session gate.
func NewAgent(cfg session.Config, search websearch.Options) Agent {
	if !cfg.ToolCalling {
		return Agent{Instructions: Instructions, Tools: tools.NewSet()}
	}
	return Agent{
		Instructions: Instructions,
		Tools:        tools.NewSet(websearch.New(cfg.WebSearch, search)),
	}
}
