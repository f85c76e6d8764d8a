// Package nats bridges carvoice to the media worker over NATS.
//
// The media worker owns room audio. For every session the bridge asks it to
// start the agent, then serves the worker's requests (tool calls, in-process
// synthesis) and relays its events (finalized transcripts, session end)
// back to the dispatcher. The bridge also accepts room jobs on a
// request/reply subject, making it a job intake transport as well.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nadzzz/carvoice/internal/dispatch"
	"github.com/nadzzz/carvoice/internal/message"
	"github.com/nadzzz/carvoice/internal/transport"
)

// Conn is the subset of *nats.Conn used by the bridge.
type Conn interface {
	Publish(subj string, data []byte) error
	PublishMsg(m *nats.Msg) error
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

var _ Conn = (*nats.Conn)(nil)

// Defaults for Options.
const (
	DefaultSubjectPrefix = "carvoice.sessions"
	DefaultJobSubject    = "carvoice.jobs"
	DefaultStartTimeout  = 10 * time.Second
)

// Options configures the bridge.
type Options struct {
	SubjectPrefix string
	JobSubject    string
	StartTimeout  time.Duration
}

// ConnectOptions configures the NATS connection.
type ConnectOptions struct {
	Name          string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// Connect dials NATS with reconnect handling and slog-based connection
// event logging.
func Connect(url string, o ConnectOptions) (*nats.Conn, error) {
	slog.Info("connecting to nats", "url", url)

	opts := []nats.Option{
		nats.Name(o.Name),
		nats.ReconnectWait(o.ReconnectWait),
		nats.MaxReconnects(o.MaxReconnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Info("nats connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	slog.Info("connected to nats", "url", conn.ConnectedUrl())
	return conn, nil
}

// Bridge creates session runtimes and accepts jobs over NATS.
type Bridge struct {
	conn Conn
	opts Options

	mu  sync.Mutex
	sub *nats.Subscription
}

var (
	_ dispatch.Connector  = (*Bridge)(nil)
	_ transport.Transport = (*Bridge)(nil)
)

// New creates a Bridge over conn.
func New(conn Conn, opts Options) *Bridge {
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = DefaultSubjectPrefix
	}
	if opts.JobSubject == "" {
		opts.JobSubject = DefaultJobSubject
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultStartTimeout
	}
	return &Bridge{conn: conn, opts: opts}
}

// Name returns the transport identifier.
func (b *Bridge) Name() string { return "nats" }

// Connect returns the runtime for jobID.
func (b *Bridge) Connect(jobID string) dispatch.Runtime {
	return newRuntime(b.conn, SubjectsFor(b.opts.SubjectPrefix, jobID), b.opts.StartTimeout)
}

// Listen accepts jobs on the job subject until ctx is cancelled. Each job
// is answered with the session summary or an error.
func (b *Bridge) Listen(ctx context.Context, handler transport.Handler) error {
	sub, err := b.conn.Subscribe(b.opts.JobSubject, func(msg *nats.Msg) {
		go b.handleJob(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.opts.JobSubject, err)
	}
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	slog.Info("nats transport listening", "subject", b.opts.JobSubject)
	<-ctx.Done()
	slog.Info("nats transport shutting down")
	if err := b.Close(); err != nil {
		slog.Warn("draining job subscription", "error", err)
	}
	return nil
}

func (b *Bridge) handleJob(ctx context.Context, msg *nats.Msg, handler transport.Handler) {
	var req jobRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		b.respond(msg, jobReply{Error: "invalid json: " + err.Error()})
		return
	}
	if req.Room == "" {
		b.respond(msg, jobReply{Error: "room is required"})
		return
	}

	job := message.Job{
		ID:         req.ID,
		Room:       req.Room,
		Metadata:   message.MetadataFromJSON(req.Metadata),
		ReceivedAt: time.Now(),
	}
	if err := job.ValidateID(); err != nil {
		b.respond(msg, jobReply{Error: err.Error()})
		return
	}
	result, err := handler(ctx, job)
	if err != nil {
		slog.Error("dispatch failed", "room", req.Room, "error", err)
		b.respond(msg, jobReply{Error: err.Error()})
		return
	}
	b.respond(msg, jobReply{StartResult: result})
}

func (b *Bridge) respond(msg *nats.Msg, reply jobReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		slog.Error("marshalling job reply", "error", err)
		return
	}
	if err := b.conn.Publish(msg.Reply, data); err != nil {
		slog.Error("publishing job reply", "subject", msg.Reply, "error", err)
	}
}

// Close stops accepting jobs. Running sessions are unaffected.
func (b *Bridge) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Drain()
}
