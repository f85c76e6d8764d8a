// Package dispatch turns room jobs into running assistant sessions.
//
// For every job the dispatcher resolves the session configuration from the
// dispatch metadata, selects backends, wires the agent's tools, starts the
// runtime on the media worker and attaches the transcript pipeline. Only a
// runtime start failure fails the job; every other problem degrades to a
// default and a log line.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/carvoice/internal/message"
	"github.com/nadzzz/carvoice/internal/session"
	"github.com/nadzzz/carvoice/internal/tools"
	"github.com/nadzzz/carvoice/internal/tools/websearch"
	"github.com/nadzzz/carvoice/internal/transcript"
	"github.com/nadzzz/carvoice/internal/voice"
)

// TokenIssuer mints room join credentials for the agent.
type TokenIssuer interface {
	URL() string
	AgentToken(room, identity string) (string, error)
}

// Options configures a Dispatcher.
type Options struct {
	Factory   *Factory
	Issuer    TokenIssuer
	Connector Connector

	// AgentName is the identity the agent joins rooms with.
	AgentName string

	Search websearch.Options

	TranscriptURL     string
	TranscriptTimeout time.Duration
}

// Session is a started assistant session.
type Session struct {
	JobID    string
	Room     string
	Config   session.Config
	Backends Backends
	Tools    *tools.Set
	Recorder *transcript.Recorder

	runtime Runtime
}

// Result summarizes the session for the job submitter.
func (s *Session) Result() *message.StartResult {
	return &message.StartResult{
		JobID:     s.JobID,
		Room:      s.Room,
		Mode:      s.Config.Mode(),
		SessionID: s.Config.SessionID,
		Voice:     s.Config.Voice,
		Synthesis: s.Backends.Synthesis.Name(),
		Tools:     s.Tools.Names(),
	}
}

// Dispatcher starts and tracks sessions.
type Dispatcher struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
	starting map[string]struct{}
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Factory == nil {
		opts.Factory = NewFactory(voice.Credentials{})
	}
	return &Dispatcher{
		opts:     opts,
		sessions: make(map[string]*Session),
		starting: make(map[string]struct{}),
	}
}

// Start runs the session entrypoint for job. The returned error is non-nil
// only when the runtime could not be started.
func (d *Dispatcher) Start(ctx context.Context, job message.Job) (*Session, error) {
	start := time.Now()
	if err := job.ValidateID(); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	job.EnsureID()
	logger := slog.With("job_id", job.ID, "room", job.Room)

	if err := d.reserve(job.ID); err != nil {
		logger.Error("rejecting job", "error", err)
		return nil, err
	}
	defer d.release(job.ID)

	cfg := session.ParseMetadata(job.Metadata)
	logger = logger.With("mode", cfg.Mode(), "session_id", cfg.SessionID)
	logger.Info("connecting to room", "voice", cfg.Voice, "tool_calling", cfg.ToolCalling, "web_search", cfg.WebSearch)

	backends := d.opts.Factory.Build(cfg)
	agent := NewAgent(cfg, d.opts.Search)

	token, err := d.opts.Issuer.AgentToken(job.Room, d.opts.AgentName)
	if err != nil {
		backends.Close()
		logger.Error("failed to mint room token", "error", err)
		return nil, fmt.Errorf("starting session: %w", err)
	}

	rec := transcript.New(d.opts.TranscriptURL, cfg.SessionID,
		transcript.WithTimeout(d.opts.TranscriptTimeout),
		transcript.WithLogger(logger),
	)
	rt := d.opts.Connector.Connect(job.ID)
	rt.OnTranscript(rec.Handle)
	plan := Plan{
		JobID:        job.ID,
		Room:         job.Room,
		RoomURL:      d.opts.Issuer.URL(),
		Token:        token,
		Identity:     d.opts.AgentName,
		Instructions: agent.Instructions,
		Backends:     backends,
		Tools:        agent.Tools,
	}
	if err := rt.Start(ctx, plan); err != nil {
		backends.Close()
		logger.Error("failed to start session", "error", err)
		return nil, fmt.Errorf("starting session: %w", err)
	}

	if err := rt.GenerateReply(ctx, GreetingInstructions); err != nil {
		logger.Warn("greeting failed", "error", err)
	}

	s := &Session{
		JobID:    job.ID,
		Room:     job.Room,
		Config:   cfg,
		Backends: backends,
		Tools:    agent.Tools,
		Recorder: rec,
		runtime:  rt,
	}
	d.track(s)

	logger.Info("session started",
		"synthesis", backends.Synthesis.Name(),
		"tools", agent.Tools.Names(),
		"transcripts", rec.Enabled(),
		"duration", time.Since(start),
	)
	return s, nil
}

// Session returns the running session for jobID.
func (d *Dispatcher) Session(jobID string) (*Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[jobID]
	return s, ok
}

// Active returns the number of running sessions.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// reserve claims jobID until release. A job id names the runtime's
// subjects, so it may back at most one starting or running session.
func (d *Dispatcher) reserve(jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[jobID]; ok {
		return fmt.Errorf("starting session: job %s already running", jobID)
	}
	if _, ok := d.starting[jobID]; ok {
		return fmt.Errorf("starting session: job %s already starting", jobID)
	}
	d.starting[jobID] = struct{}{}
	return nil
}

func (d *Dispatcher) release(jobID string) {
	d.mu.Lock()
	delete(d.starting, jobID)
	d.mu.Unlock()
}

func (d *Dispatcher) track(s *Session) {
	d.mu.Lock()
	d.sessions[s.JobID] = s
	d.mu.Unlock()

	go func() {
		<-s.runtime.Done()
		d.finish(s)
	}()
}

// finish drops the session. In-flight transcript posts are not awaited;
// they end on their own timeout.
func (d *Dispatcher) finish(s *Session) {
	d.mu.Lock()
	if d.sessions[s.JobID] == s {
		delete(d.sessions, s.JobID)
	}
	d.mu.Unlock()

	if err := s.Backends.Close(); err != nil {
		slog.Warn("closing synthesis backend", "job_id", s.JobID, "error", err)
	}
	slog.Info("session ended", "job_id", s.JobID, "room", s.Room)
}
