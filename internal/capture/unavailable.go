package capture

import (
	"context"

	"github.com/hammamikhairi/voxturn/internal/domain"
)

// Compile-time interface check.
var _ domain.Recognizer = Unavailable{}

// Unavailable is the recognizer used when voice input is disabled or the
// platform can't capture audio.
type Unavailable struct{}

func (Unavailable) Available() error { return domain.ErrCapabilityUnavailable }

func (Unavailable) Start(context.Context, domain.CaptureConfig, func(domain.CaptureEvent)) error {
	return domain.ErrCapabilityUnavailable
}

func (Unavailable) Stop() error { return domain.ErrNotListening }
