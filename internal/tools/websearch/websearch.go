// Package websearch implements the web_search tool backed by Perplexity's
// OpenAI-compatible chat completions API.
package websearch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Sentences spoken back to the user when a search cannot run.
const (
	DisabledMessage      = "Web search is disabled for this session."
	NotConfiguredMessage = "Web search is not configured."
	DegradedMessage      = "I'm having trouble searching right now. Please try again in a moment."
)

// Name is the tool name exposed to the model.
const Name = "web_search"

const (
	DefaultBaseURL = "https://api.perplexity.ai"
	DefaultModel   = "sonar"
	DefaultTimeout = 10 * time.Second

	temperature = 0.2
	maxTokens   = 200

	systemPrompt = "You are a search assistant for a driver. Answer in one to three short " +
		"sentences that can be read aloud. No lists, links or markdown."
)

var errNoChoices = errors.New("search returned no choices")

// Options configures the search client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// HTTPClient overrides the transport used for requests.
	HTTPClient *http.Client
}

// Tool answers free-text questions with a single search request.
type Tool struct {
	enabled bool
	client  *openai.Client // nil when no API key is configured
	model   string
	timeout time.Duration
}

// New creates the web_search tool. enabled is the per-session gate; a
// missing API key leaves the tool registered but unconfigured.
func New(enabled bool, opts Options) *Tool {
	t := &Tool{
		enabled: enabled,
		model:   opts.Model,
		timeout: opts.Timeout,
	}
	if t.model == "" {
		t.model = DefaultModel
	}
	if t.timeout <= 0 {
		t.timeout = DefaultTimeout
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return t
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	client := openai.NewClient(reqOpts...)
	t.client = &client
	return t
}

// Name returns the tool name.
func (t *Tool) Name() string { return Name }

// Description is shown to the model when deciding whether to call the tool.
func (t *Tool) Description() string {
	return "Search the web for current information such as news, weather, " +
		"opening hours, traffic or sports results."
}

// Invoke runs Search.
func (t *Tool) Invoke(ctx context.Context, query string) string {
	return t.Search(ctx, query)
}

// Search performs one search and returns the answer text. Failures are
// logged and mapped to a fixed sentence; no request is retried.
func (t *Tool) Search(ctx context.Context, query string) string {
	if !t.enabled {
		return DisabledMessage
	}
	if t.client == nil {
		return NotConfiguredMessage
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	answer, err := t.complete(ctx, query)
	if err != nil {
		slog.Error("web search failed",
			"error", err,
			"query_length", len(query),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return DegradedMessage
	}

	slog.Debug("web search completed",
		"query_length", len(query),
		"answer_length", len(answer),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return answer
}

func (t *Tool) complete(ctx context.Context, query string) (string, error) {
	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(query),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
