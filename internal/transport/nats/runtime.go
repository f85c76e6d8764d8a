package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nadzzz/carvoice/internal/dispatch"
	"github.com/nadzzz/carvoice/internal/tools"
	"github.com/nadzzz/carvoice/internal/tts"
)

// Headers set on synthesis replies.
const (
	HeaderContentType = "Content-Type"
	HeaderSampleRate  = "Sample-Rate"
	HeaderError       = "Error"
)

const synthesizeTimeout = 30 * time.Second

var errRefused = errors.New("media worker refused the session")

// Runtime is one session running on the media worker.
type Runtime struct {
	conn         Conn
	subjects     Subjects
	startTimeout time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	handlers []dispatch.TranscriptHandler
	subs     []*nats.Subscription

	done     chan struct{}
	doneOnce sync.Once
}

var _ dispatch.Runtime = (*Runtime)(nil)

func newRuntime(conn Conn, subjects Subjects, startTimeout time.Duration) *Runtime {
	return &Runtime{
		conn:         conn,
		subjects:     subjects,
		startTimeout: startTimeout,
		logger:       slog.With("subject", subjects.Start),
		done:         make(chan struct{}),
	}
}

// Start subscribes to the session's worker-facing subjects and asks the
// media worker to join the room. Any failure tears the subscriptions down.
func (r *Runtime) Start(ctx context.Context, plan dispatch.Plan) error {
	r.logger = slog.With("job_id", plan.JobID, "room", plan.Room)

	synth, inProcess := plan.Backends.Synthesizer()
	subjects := r.subjects
	if !inProcess {
		subjects.TTS = ""
	}

	if err := r.subscribeAll(subjects, plan.Tools, synth); err != nil {
		r.unsubscribe()
		return err
	}

	req := startRequest{
		JobID:         plan.JobID,
		Room:          plan.Room,
		URL:           plan.RoomURL,
		Token:         plan.Token,
		Identity:      plan.Identity,
		Instructions:  plan.Instructions,
		Understanding: plan.Backends.Understanding.UnderstandingSpec(),
		Synthesis:     plan.Backends.Synthesis.SynthesisSpec(),
		Tools:         toolSpecs(plan.Tools, subjects),
		Subjects:      subjects,
	}
	data, err := json.Marshal(req)
	if err != nil {
		r.unsubscribe()
		return fmt.Errorf("marshalling start request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.startTimeout)
	defer cancel()

	msg, err := r.conn.RequestWithContext(ctx, subjects.Start, data)
	if err != nil {
		r.unsubscribe()
		return fmt.Errorf("requesting %s: %w", subjects.Start, err)
	}

	var reply startReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		r.unsubscribe()
		return fmt.Errorf("decoding start reply: %w", err)
	}
	if !reply.OK {
		r.unsubscribe()
		if reply.Error == "" {
			return errRefused
		}
		return fmt.Errorf("%w: %s", errRefused, reply.Error)
	}

	r.logger.Info("media worker joined room", "tools", len(req.Tools), "synthesis", req.Synthesis.Kind)
	return nil
}

func (r *Runtime) subscribeAll(subjects Subjects, set *tools.Set, synth tts.Synthesizer) error {
	if err := r.subscribe(subjects.Transcripts, r.handleTranscript); err != nil {
		return err
	}
	if err := r.subscribe(subjects.Ended, r.handleEnded); err != nil {
		return err
	}
	for _, name := range set.Names() {
		tool, _ := set.Lookup(name)
		if err := r.subscribe(subjects.Tool(name), r.toolHandler(tool)); err != nil {
			return err
		}
	}
	if subjects.TTS != "" {
		if err := r.subscribe(subjects.TTS, r.synthesisHandler(synth)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) subscribe(subject string, cb nats.MsgHandler) error {
	sub, err := r.conn.Subscribe(subject, cb)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return nil
}

func (r *Runtime) unsubscribe() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			r.logger.Debug("draining subscription", "subject", sub.Subject, "error", err)
		}
	}
}

// OnTranscript registers h for finalized utterances. Handlers run on the
// subscription's delivery goroutine in registration order.
func (r *Runtime) OnTranscript(h dispatch.TranscriptHandler) {
	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()
}

// GenerateReply publishes a reply instruction to the media worker.
func (r *Runtime) GenerateReply(_ context.Context, instructions string) error {
	data, err := json.Marshal(replyRequest{Instructions: instructions})
	if err != nil {
		return fmt.Errorf("marshalling reply request: %w", err)
	}
	if err := r.conn.Publish(r.subjects.Reply, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", r.subjects.Reply, err)
	}
	return nil
}

// Done is closed when the media worker reports the session ended.
func (r *Runtime) Done() <-chan struct{} { return r.done }

func (r *Runtime) handleTranscript(msg *nats.Msg) {
	var ev transcriptEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		r.logger.Warn("invalid transcript event", "error", err)
		return
	}

	r.mu.Lock()
	handlers := append([]dispatch.TranscriptHandler(nil), r.handlers...)
	r.mu.Unlock()

	for _, h := range handlers {
		h(ev.Speaker, ev.Text)
	}
}

func (r *Runtime) handleEnded(_ *nats.Msg) {
	r.doneOnce.Do(func() {
		r.logger.Info("media worker ended session")
		r.unsubscribe()
		close(r.done)
	})
}

// toolHandler answers tool calls. Calls are served concurrently so a slow
// search does not hold up the next request.
func (r *Runtime) toolHandler(tool tools.Tool) nats.MsgHandler {
	return func(msg *nats.Msg) {
		go func() {
			var req toolRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				r.logger.Warn("invalid tool request", "tool", tool.Name(), "error", err)
				return
			}
			text := tool.Invoke(context.Background(), req.Query)
			r.respondJSON(msg, toolResponse{Text: text})
		}()
	}
}

func (r *Runtime) synthesisHandler(synth tts.Synthesizer) nats.MsgHandler {
	return func(msg *nats.Msg) {
		go func() {
			if msg.Reply == "" {
				return
			}
			out := nats.NewMsg(msg.Reply)

			var req synthesizeRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				out.Header.Set(HeaderError, "invalid request: "+err.Error())
				r.publish(out)
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), synthesizeTimeout)
			defer cancel()

			res, err := synth.Synthesize(ctx, req.Text, tts.SynthesizeOpts{Language: req.Language})
			if err != nil {
				r.logger.Error("synthesis failed", "backend", synth.Name(), "error", err)
				out.Header.Set(HeaderError, err.Error())
				r.publish(out)
				return
			}
			out.Data = res.Audio
			out.Header.Set(HeaderContentType, res.ContentType)
			out.Header.Set(HeaderSampleRate, strconv.Itoa(res.SampleRate))
			r.publish(out)
		}()
	}
}

func (r *Runtime) respondJSON(msg *nats.Msg, v any) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("marshalling response", "error", err)
		return
	}
	if err := r.conn.Publish(msg.Reply, data); err != nil {
		r.logger.Error("publishing response", "subject", msg.Reply, "error", err)
	}
}

func (r *Runtime) publish(m *nats.Msg) {
	if err := r.conn.PublishMsg(m); err != nil {
		r.logger.Error("publishing response", "subject", m.Subject, "error", err)
	}
}

func toolSpecs(set *tools.Set, subjects Subjects) []toolSpec {
	names := set.Names()
	specs := make([]toolSpec, 0, len(names))
	for _, name := range names {
		tool, _ := set.Lookup(name)
		specs = append(specs, toolSpec{
			Name:        name,
			Description: tool.Description(),
			Subject:     subjects.Tool(name),
		})
	}
	return specs
}
