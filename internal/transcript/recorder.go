// Package transcript persists finalized conversation turns to the
// conversation store.
//
// Each turn is posted once from its own goroutine. Posts are never retried,
// never queued and never ordered relative to each other; a slow or failing
// store only produces log lines.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nadzzz/carvoice/internal/message"
)

// DefaultTimeout bounds a single turn post.
const DefaultTimeout = 5 * time.Second

// Recorder posts the turns of one session.
type Recorder struct {
	sessionID  string
	backendURL string
	timeout    time.Duration
	client     *http.Client
	logger     *slog.Logger

	wg sync.WaitGroup
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithTimeout overrides the per-post timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for posts.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Recorder) { r.client = c }
}

// WithLogger sets the logger used for post outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// New creates a Recorder for sessionID. An empty sessionID yields a
// Recorder whose handlers do nothing.
func New(backendURL, sessionID string, opts ...Option) *Recorder {
	r := &Recorder{
		sessionID:  strings.TrimSpace(sessionID),
		backendURL: strings.TrimRight(backendURL, "/"),
		timeout:    DefaultTimeout,
		client:     &http.Client{},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Enabled reports whether turns will be persisted.
func (r *Recorder) Enabled() bool { return r.sessionID != "" }

// OnUserTranscript handles a finalized user utterance.
func (r *Recorder) OnUserTranscript(text string) {
	r.record(message.SpeakerUser, text)
}

// OnAssistantTranscript handles a finalized assistant utterance.
func (r *Recorder) OnAssistantTranscript(text string) {
	r.record(message.SpeakerAssistant, text)
}

// Handle dispatches text to the handler for speaker. Unknown speakers are
// ignored.
func (r *Recorder) Handle(speaker message.Speaker, text string) {
	switch speaker {
	case message.SpeakerUser, message.SpeakerAssistant:
		r.record(speaker, text)
	default:
		r.logger.Warn("ignoring transcript with unknown speaker", "speaker", speaker)
	}
}

// Wait blocks until every post started so far has finished.
func (r *Recorder) Wait() { r.wg.Wait() }

func (r *Recorder) record(speaker message.Speaker, text string) {
	turn, ok := message.NewTurn(r.sessionID, speaker, text)
	if !ok {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.post(turn)
	}()
}

func (r *Recorder) post(turn message.Turn) {
	logger := r.logger.With("session_id", turn.SessionID, "speaker", turn.Speaker)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	status, body, err := r.send(ctx, turn)
	switch {
	case err != nil:
		logger.Error("failed to save turn", "error", err)
	case status == http.StatusCreated:
		logger.Debug("saved turn", "text_length", len(turn.Text))
	default:
		logger.Error("failed to save turn", "status", status, "body", body)
	}
}

func (r *Recorder) send(ctx context.Context, turn message.Turn) (int, string, error) {
	payload, err := json.Marshal(turn)
	if err != nil {
		return 0, "", fmt.Errorf("marshalling turn: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/sessions/%s/turns", r.backendURL, url.PathEscape(turn.SessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("posting turn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return resp.StatusCode, string(body), nil
}
