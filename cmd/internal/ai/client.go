// Package ai talks to a Groq-compatible OpenAI-style API for the language
// services: translation, voice transcription, the medical summary, and the
// follow-up assistant. All failures here are transient-service errors by
// taxonomy; the caller decides whether to degrade or abort.
package ai

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

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
)

// Defaults matching the hosted Groq API.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	DefaultTranslateModel  = "llama-3.3-70b-versatile"
	DefaultTranscribeModel = "whisper-large-v3"
	DefaultSummaryModel    = "llama-3.3-70b-versatile"
	DefaultAssistModel     = "llama-3.3-70b-versatile"

	defaultTimeout = 30 * time.Second
)

// Config carries the upstream endpoint and model choices.
type Config struct {
	BaseURL string
	APIKey  string

	TranslateModel  string
	TranscribeModel string
	SummaryModel    string
	AssistModel     string

	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.TranslateModel == "" {
		c.TranslateModel = DefaultTranslateModel
	}
	if c.TranscribeModel == "" {
		c.TranscribeModel = DefaultTranscribeModel
	}
	if c.SummaryModel == "" {
		c.SummaryModel = DefaultSummaryModel
	}
	if c.AssistModel == "" {
		c.AssistModel = DefaultAssistModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Client is the concrete implementation of the session collaborator
// interfaces (Translator, Transcriber, Summarizer) and the follow-up
// Assistant.
type Client struct {
	log     *slog.Logger
	cfg     Config
	http    *http.Client
	metrics *Metrics
}

// Option tweaks client construction.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithMetrics attaches request counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client. The API key may be empty when pointing at a
// local compatible endpoint.
func NewClient(log *slog.Logger, cfg Config, opts ...Option) *Client {
	c := &Client{
		log: log,
		cfg: cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.cfg.Timeout}
	}
	return c
}

// chatRequest / chatResponse are the minimal chat-completions wire shapes.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// complete posts a chat completion and returns the first choice's content.
func (c *Client) complete(ctx context.Context, kind, model, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.Request(kind, "error")
		return "", chat.Opf("ai."+kind, chat.ErrService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.Request(kind, "error")
		return "", chat.Opf("ai."+kind, chat.ErrService, upstreamError(resp))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.Request(kind, "error")
		return "", chat.Opf("ai."+kind, chat.ErrService, err)
	}
	if len(out.Choices) == 0 {
		c.metrics.Request(kind, "error")
		return "", chat.Opf("ai."+kind, chat.ErrService, errNoChoices)
	}

	c.metrics.Request(kind, "ok")
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

var errNoChoices = fmt.Errorf("empty completion response")

// upstreamError summarizes a non-200 response without leaking whole bodies
// into logs.
func upstreamError(resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
}
