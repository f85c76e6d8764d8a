// Package elevenlabs implements the TTS Synthesizer using the ElevenLabs
// stream-input WebSocket API.
//
// One connection is opened per utterance:
//
//	-> {"text":" "}                       open the generation context
//	-> {"text":"<utterance> ","flush":true}
//	-> {"text":""}                        end of input
//	<- {"audio":"<base64 pcm>"} ...
//	<- {"isFinal":true}
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nadzzz/carvoice/internal/tts"
)

const (
	defaultWSBase  = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	outputFormat   = "pcm_24000"
	defaultTimeout = 30 * time.Second
)

// Synthesizer implements tts.Synthesizer against ElevenLabs.
type Synthesizer struct {
	apiKey  string
	model   string
	voiceID string
	wsBase  string
	dialer  *websocket.Dialer
}

// Option customizes a Synthesizer.
type Option func(*Synthesizer)

// WithWSBaseURL overrides the stream-input URL template. "{voice_id}" is
// replaced with the escaped voice id.
func WithWSBaseURL(base string) Option {
	return func(s *Synthesizer) {
		if base = strings.TrimSpace(base); base != "" {
			s.wsBase = base
		}
	}
}

// New creates an ElevenLabs synthesizer for one model and voice.
func New(apiKey, model, voiceID string, opts ...Option) (*Synthesizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return nil, fmt.Errorf("elevenlabs voice id is required")
	}
	s := &Synthesizer{
		apiKey:  apiKey,
		model:   model,
		voiceID: voiceID,
		wsBase:  defaultWSBase,
		dialer:  websocket.DefaultDialer,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Name returns the provider identifier.
func (s *Synthesizer) Name() string { return "elevenlabs" }

// SynthesisSpec describes the backend for the media worker.
func (s *Synthesizer) SynthesisSpec() tts.Spec {
	return tts.Spec{Kind: "elevenlabs", Model: s.model, Voice: s.voiceID, InProcess: true}
}

// Synthesize streams text over a fresh WebSocket and collects the PCM audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}

	voiceID := s.voiceID
	if opts.Voice != "" {
		voiceID = opts.Voice
	}

	wsURL, err := buildWSURL(s.wsBase, voiceID, s.model, opts.Language)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("xi-api-key", s.apiKey)
	conn, _, err := s.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs connect: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	for _, msg := range []inputMessage{
		{Text: " "},
		{Text: text + " ", Flush: true},
		{Text: ""},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			return nil, fmt.Errorf("elevenlabs send: %w", err)
		}
	}

	slog.Debug("elevenlabs synthesize", "text_length", len(text), "model", s.model, "voice", voiceID)

	var audio []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(audio) > 0 {
				break
			}
			return nil, fmt.Errorf("elevenlabs read: %w", err)
		}

		var msg outputMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return nil, fmt.Errorf("elevenlabs error: %s", msg.Error)
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return nil, fmt.Errorf("decoding audio: %w", err)
			}
			audio = append(audio, chunk...)
		}
		if msg.IsFinal {
			break
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return &tts.SynthesizeResult{
		Audio:       audio,
		ContentType: tts.ContentType,
		SampleRate:  tts.SampleRate,
		Channels:    1,
	}, nil
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }

type inputMessage struct {
	Text  string `json:"text"`
	Flush bool   `json:"flush,omitempty"`
}

type outputMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
}

func buildWSURL(base, voiceID, model, language string) (string, error) {
	base = strings.ReplaceAll(base, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	q := u.Query()
	if model != "" {
		q.Set("model_id", model)
	}
	q.Set("output_format", outputFormat)
	if language != "" {
		q.Set("language_code", language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
