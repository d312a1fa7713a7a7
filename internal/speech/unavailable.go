package speech

import (
	"context"

	"github.com/hammamikhairi/voxturn/internal/domain"
)

// Compile-time interface check.
var _ domain.Synthesizer = Unavailable{}

// Unavailable is the synthesizer used when voice output is disabled or no
// audio device could be opened.
type Unavailable struct{}

func (Unavailable) Available() error { return domain.ErrCapabilityUnavailable }

func (Unavailable) Speak(context.Context, string, string, func(domain.PlaybackEvent)) error {
	return domain.ErrCapabilityUnavailable
}

func (Unavailable) Cancel()          {}
func (Unavailable) IsSpeaking() bool { return false }

func (Unavailable) Voices(context.Context) ([]domain.Voice, error) { return nil, nil }
