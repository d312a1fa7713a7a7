// Package genai provides the text-generation backends the turn controller
// sends transcripts to: Google Gemini, OpenAI, and any OpenAI-compatible
// chat-completions endpoint (Azure deployments included).
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// Compile-time interface check.
var _ domain.Generator = (*Chat)(nil)

// ── Wire types ───────────────────────────────────────────────────

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatPayload is the request body sent to the chat-completions endpoint.
type chatPayload struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	Model       string        `json:"model,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ── Client ───────────────────────────────────────────────────────

// ChatOption configures the Chat backend.
type ChatOption func(*Chat)

// WithChatModel sets the model name. Azure deployments leave it empty.
func WithChatModel(model string) ChatOption {
	return func(c *Chat) { c.model = model }
}

// WithChatTemperature overrides the sampling temperature.
func WithChatTemperature(t float64) ChatOption {
	return func(c *Chat) { c.temperature = t }
}

// WithChatMaxTokens sets the response token limit.
func WithChatMaxTokens(n int) ChatOption {
	return func(c *Chat) { c.maxTokens = n }
}

// WithChatHTTPClient swaps the HTTP client, e.g. for tests.
func WithChatHTTPClient(hc *http.Client) ChatOption {
	return func(c *Chat) { c.http = hc }
}

// Chat talks to an OpenAI-compatible chat-completions endpoint using an
// api-key header.
type Chat struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	http        *http.Client
	log         *logger.Logger
}

// NewChat creates a chat-completions backend.
//   - endpoint: full URL to the chat/completions resource
//     (e.g. "https://<resource>.openai.azure.com/openai/deployments/<dep>/chat/completions?api-version=2024-02-01")
//   - apiKey:   the subscription / API key
func NewChat(endpoint, apiKey string, log *logger.Logger, opts ...ChatOption) *Chat {
	c := &Chat{
		endpoint:    endpoint,
		apiKey:      apiKey,
		temperature: 0.7,
		topP:        0.95,
		maxTokens:   800,
		http:        &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate sends the prompt with its history and returns the trimmed reply.
func (c *Chat) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	body := chatPayload{
		Messages:    chatMessages(req),
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
		Model:       c.model,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("genai: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("genai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	c.log.Debug("chat: POST %s (%d bytes, %d messages)", c.endpoint, len(jsonData), len(body.Messages))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("genai: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("genai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("genai: API %s: %s", resp.Status, truncate(string(respBody), 300))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("genai: unmarshal response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("genai: API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("genai: no choices: %w", domain.ErrEmptyResponse)
	}

	reply := strings.TrimSpace(result.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("genai: blank reply: %w", domain.ErrEmptyResponse)
	}
	c.log.Debug("chat: reply (%d chars): %s", len(reply), truncate(reply, 120))
	return reply, nil
}

// chatMessages flattens a request into system, history, and prompt messages.
func chatMessages(req domain.GenerateRequest) []chatMessage {
	var msgs []chatMessage
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: RoleSystem, Content: req.System})
	}
	for _, ex := range req.History {
		msgs = append(msgs,
			chatMessage{Role: RoleUser, Content: ex.Prompt},
			chatMessage{Role: RoleAssistant, Content: ex.Reply},
		)
	}
	return append(msgs, chatMessage{Role: RoleUser, Content: req.Prompt})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
