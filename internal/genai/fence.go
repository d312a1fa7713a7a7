package genai

import (
	"context"
	"strings"

	"github.com/hammamikhairi/voxturn/internal/domain"
)

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence line.
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		// Remove closing fence.
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// Unfenced wraps a Generator so replies come back without code fences.
func Unfenced(g domain.Generator) domain.Generator {
	return unfenced{g}
}

type unfenced struct {
	next domain.Generator
}

func (u unfenced) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	reply, err := u.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	reply = StripCodeFence(reply)
	if reply == "" {
		return "", domain.ErrEmptyResponse
	}
	return reply, nil
}
