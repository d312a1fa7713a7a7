package domain

import "time"

// TurnState models one conversational turn.
type TurnState string

const (
	TurnIdle       TurnState = "idle"
	TurnListening  TurnState = "listening"
	TurnProcessing TurnState = "processing"
	TurnResult     TurnState = "result"
)

// CaptureMode selects how a capture ends.
type CaptureMode string

const (
	// ModePushToTalk records continuously until the user stops.
	ModePushToTalk CaptureMode = "push-to-talk"
	// ModeSingleShot ends after the first utterance.
	ModeSingleShot CaptureMode = "single-shot"
)

// ParseCaptureMode accepts the flag spellings of a CaptureMode.
func ParseCaptureMode(s string) (CaptureMode, bool) {
	switch s {
	case "push-to-talk", "ptt", "continuous":
		return ModePushToTalk, true
	case "single-shot", "single", "toggle":
		return ModeSingleShot, true
	}
	return "", false
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	State      TurnState `json:"state"`
	Turn       uint64    `json:"turn"`
	Transcript string    `json:"transcript"`
	Reply      string    `json:"reply"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"errorKind,omitempty"`
	Capturing  bool      `json:"capturing"`
	Speaking   bool      `json:"speaking"`
}

// Exchange is one completed prompt/reply pair.
type Exchange struct {
	ID     string    `json:"id"`
	Prompt string    `json:"prompt"`
	Reply  string    `json:"reply"`
	At     time.Time `json:"at"`
}

// Voice is a synthesis voice offered by a Synthesizer.
type Voice struct {
	Name   string `json:"name"`
	Locale string `json:"locale"`
	Gender string `json:"gender,omitempty"`
}
