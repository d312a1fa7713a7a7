package genai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = string(openai.ChatModelGPT4oMini)

// Compile-time interface check.
var _ domain.Generator = (*OpenAI)(nil)

// OpenAIOption configures the OpenAI backend.
type OpenAIOption func(*openAISettings)

type openAISettings struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithOpenAIModel overrides the model name.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *openAISettings) { s.model = model }
}

// WithOpenAIBaseURL points the client at another host. The URL must end in "/".
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(s *openAISettings) { s.baseURL = url }
}

// WithOpenAIHTTPClient swaps the HTTP client.
func WithOpenAIHTTPClient(hc *http.Client) OpenAIOption {
	return func(s *openAISettings) { s.httpClient = hc }
}

// OpenAI generates replies with the OpenAI chat-completions API.
type OpenAI struct {
	client openai.Client
	model  string
	log    *logger.Logger
}

// NewOpenAI creates an OpenAI backend. Retries are disabled: a turn makes a
// single attempt and the user asks again.
func NewOpenAI(apiKey string, log *logger.Logger, opts ...OpenAIOption) *OpenAI {
	s := openAISettings{
		model:      DefaultOpenAIModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(&s)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(s.httpClient),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}

	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		model:  s.model,
		log:    log,
	}
}

// Generate sends the prompt with its history and returns the trimmed reply.
func (o *OpenAI) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, ex := range req.History {
		msgs = append(msgs, openai.UserMessage(ex.Prompt), openai.AssistantMessage(ex.Reply))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	o.log.Debug("openai: chat.completions model=%s (%d messages)", o.model, len(msgs))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    openai.ChatModel(o.model),
	})
	if err != nil {
		return "", fmt.Errorf("genai: openai request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("genai: openai returned no choices: %w", domain.ErrEmptyResponse)
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("genai: openai returned blank text: %w", domain.ErrEmptyResponse)
	}
	o.log.Debug("openai: reply (%d chars): %s", len(reply), truncate(reply, 120))
	return reply, nil
}
