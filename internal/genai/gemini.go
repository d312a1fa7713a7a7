package genai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Compile-time interface check.
var _ domain.Generator = (*Gemini)(nil)

// GeminiOption configures the Gemini backend.
type GeminiOption func(*geminiSettings)

type geminiSettings struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithGeminiModel overrides the model name.
func WithGeminiModel(model string) GeminiOption {
	return func(s *geminiSettings) { s.model = model }
}

// WithGeminiBaseURL points the client at another host (tests, proxies).
func WithGeminiBaseURL(url string) GeminiOption {
	return func(s *geminiSettings) { s.baseURL = url }
}

// WithGeminiHTTPClient swaps the HTTP client.
func WithGeminiHTTPClient(hc *http.Client) GeminiOption {
	return func(s *geminiSettings) { s.httpClient = hc }
}

// Gemini generates replies with the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewGemini creates a Gemini backend authenticated with an API key.
func NewGemini(ctx context.Context, apiKey string, log *logger.Logger, opts ...GeminiOption) (*Gemini, error) {
	s := geminiSettings{model: DefaultGeminiModel}
	for _, o := range opts {
		o(&s)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.httpClient,
	}
	if s.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: gemini client: %w", err)
	}
	return &Gemini{client: client, model: s.model, log: log}, nil
}

// Generate sends the prompt (with history as alternating user/model turns)
// and returns the trimmed reply text.
func (g *Gemini) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)*2+1)
	for _, ex := range req.History {
		contents = append(contents,
			genai.NewContentFromText(ex.Prompt, genai.RoleUser),
			genai.NewContentFromText(ex.Reply, genai.RoleModel),
		)
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	var cfg *genai.GenerateContentConfig
	if req.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		}
	}

	g.log.Debug("gemini: generateContent model=%s (%d contents)", g.model, len(contents))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genai: gemini request: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("genai: gemini returned no candidates: %w", domain.ErrEmptyResponse)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", fmt.Errorf("genai: gemini returned blank text: %w", domain.ErrEmptyResponse)
	}
	g.log.Debug("gemini: reply (%d chars): %s", len(reply), truncate(reply, 120))
	return reply, nil
}
