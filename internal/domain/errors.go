package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrAlreadyListening      = errors.New("capture already in progress")
	ErrNotListening          = errors.New("no capture in progress")
	ErrBusy                  = errors.New("a request is already in flight")
	ErrNoReply               = errors.New("nothing to replay")
	ErrEmptyResponse         = errors.New("empty response")
	ErrStopped               = errors.New("controller stopped")
)

// ErrorKind classifies a failure surfaced to the user.
type ErrorKind string

const (
	ErrorNone                  ErrorKind = ""
	ErrorCapabilityUnavailable ErrorKind = "capability_unavailable"
	ErrorCapture               ErrorKind = "capture"
	ErrorGeneration            ErrorKind = "generation"
	ErrorPlayback              ErrorKind = "playback"
)

// CaptureErrorCode is reported by a recognizer when capture fails.
type CaptureErrorCode string

const (
	CaptureNoSpeech     CaptureErrorCode = "no-speech"
	CaptureNotAllowed   CaptureErrorCode = "not-allowed"
	CaptureAudioCapture CaptureErrorCode = "audio-capture"
	CaptureRecognizer   CaptureErrorCode = "recognizer"
	CaptureAborted      CaptureErrorCode = "aborted"
)

// PlaybackErrorCode is reported by a synthesizer when playback fails.
type PlaybackErrorCode string

const (
	PlaybackNotAllowed  PlaybackErrorCode = "not-allowed"
	PlaybackSynthesis   PlaybackErrorCode = "synthesis-failed"
	PlaybackAudioOutput PlaybackErrorCode = "audio-output"
	PlaybackInterrupted PlaybackErrorCode = "interrupted"
)
