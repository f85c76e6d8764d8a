// Package cartesia implements the TTS Synthesizer using Cartesia's HTTP API.
//
// Audio is requested as raw 16-bit little-endian PCM so the media worker can
// feed it straight into the room's audio track without decoding.
package cartesia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nadzzz/carvoice/internal/tts"
)

const (
	defaultBaseURL = "https://api.cartesia.ai"
	apiVersion     = "2025-04-16"
	defaultTimeout = 30 * time.Second
)

// Synthesizer implements tts.Synthesizer against Cartesia.
type Synthesizer struct {
	apiKey  string
	model   string
	voiceID string
	baseURL string
	client  *http.Client
}

// Option customizes a Synthesizer.
type Option func(*Synthesizer)

// WithBaseURL points the synthesizer at a different API host.
func WithBaseURL(u string) Option {
	return func(s *Synthesizer) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) { s.client = c }
}

// New creates a Cartesia synthesizer for one model and voice.
func New(apiKey, model, voiceID string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cartesia api key is required")
	}
	if voiceID == "" {
		return nil, fmt.Errorf("cartesia voice id is required")
	}
	s := &Synthesizer{
		apiKey:  apiKey,
		model:   model,
		voiceID: voiceID,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Name returns the provider identifier.
func (s *Synthesizer) Name() string { return "cartesia" }

// SynthesisSpec describes the backend for the media worker.
func (s *Synthesizer) SynthesisSpec() tts.Spec {
	return tts.Spec{Kind: "cartesia", Model: s.model, Voice: s.voiceID, InProcess: true}
}

// Synthesize converts text to raw PCM using POST /tts/bytes.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	voiceID := s.voiceID
	if opts.Voice != "" {
		voiceID = opts.Voice
	}

	reqBody := ttsRequest{
		ModelID:    s.model,
		Transcript: text,
		Voice:      voiceSpec{Mode: "id", ID: voiceID},
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   tts.Encoding,
			SampleRate: tts.SampleRate,
		},
	}
	if opts.Language != "" {
		reqBody.Language = &opts.Language
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Cartesia-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("cartesia synthesize", "text_length", len(text), "model", s.model, "voice", voiceID)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("cartesia failed (status %d): %s", resp.StatusCode, errBody)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}

	return &tts.SynthesizeResult{
		Audio:       audio,
		ContentType: tts.ContentType,
		SampleRate:  tts.SampleRate,
		Channels:    1,
	}, nil
}

// Close releases idle connections.
func (s *Synthesizer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type ttsRequest struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voiceSpec    `json:"voice"`
	OutputFormat outputFormat `json:"output_format"`
	Language     *string      `json:"language,omitempty"`
}

type voiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}
