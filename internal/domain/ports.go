package domain

import "context"

// CaptureConfig is handed to a Recognizer when capture starts.
type CaptureConfig struct {
	Locale         string
	InterimResults bool
	Continuous     bool
}

// CaptureEventKind identifies a recognizer callback.
type CaptureEventKind int

const (
	CaptureResult CaptureEventKind = iota
	CaptureError
	CaptureEnd
)

// CaptureEvent is emitted by a Recognizer.
type CaptureEvent struct {
	Kind CaptureEventKind
	Text string
	Code CaptureErrorCode
}

// Recognizer captures speech and emits transcripts. Implementations can be
// a local Whisper model, a cloud streaming service, or a test fake.
type Recognizer interface {
	// Available reports ErrCapabilityUnavailable when capture can't work here.
	Available() error
	// Start begins capturing. Events for this capture are delivered via emit
	// until an End event has been emitted.
	Start(ctx context.Context, cfg CaptureConfig, emit func(CaptureEvent)) error
	// Stop ends the current capture. The recognizer still emits any final
	// result followed by End.
	Stop() error
}

// PlaybackEventKind identifies a synthesizer callback.
type PlaybackEventKind int

const (
	PlaybackStart PlaybackEventKind = iota
	PlaybackEnd
	PlaybackError
)

// PlaybackEvent is emitted by a Synthesizer for one utterance.
type PlaybackEvent struct {
	Kind PlaybackEventKind
	Code PlaybackErrorCode
}

// Synthesizer speaks text. Only one utterance plays at a time.
type Synthesizer interface {
	Available() error
	// Speak queues text for playback and returns without waiting for it.
	Speak(ctx context.Context, text, locale string, emit func(PlaybackEvent)) error
	// Cancel halts the current utterance immediately.
	Cancel()
	IsSpeaking() bool
	Voices(ctx context.Context) ([]Voice, error)
}

// GenerateRequest is one prompt plus optional conversation history.
type GenerateRequest struct {
	System  string
	History []Exchange
	Prompt  string
}

// Generator produces one reply per prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// HistoryStore keeps completed exchanges for the conversation.
type HistoryStore interface {
	Append(ctx context.Context, ex Exchange) (Exchange, error)
	Recent(ctx context.Context, n int) ([]Exchange, error)
	Clear(ctx context.Context) error
}

// EventSink receives controller updates, typically a UI.
type EventSink interface {
	TurnChanged(s Snapshot)
	ExchangeCompleted(ex Exchange)
}
