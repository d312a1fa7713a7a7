package turn

import "github.com/hammamikhairi/voxturn/internal/domain"

// User-facing lines. Raw provider and network detail goes to the log only.

func LineNoSpeech() string {
	return "no speech detected"
}

func LineMicDenied() string {
	return "Microphone access was denied."
}

func LineMicUnavailable() string {
	return "No microphone was found."
}

func LineCaptureFailed() string {
	return "Speech recognition failed. Please try again."
}

func LineGenerationFailed() string {
	return "Failed to get a response."
}

func LinePlaybackSilent() string {
	return "Voice output failed to start. Check that sound is on."
}

func LinePlaybackDenied() string {
	return "Voice output was blocked."
}

func LinePlaybackFailed() string {
	return "Voice output failed."
}

func LineCaptureUnsupported() string {
	return "Speech recognition is not supported on this device."
}

func LineSpeechUnsupported() string {
	return "Speech output is not supported on this device."
}

// captureErrorLine maps a recognizer error code to its user-facing line.
func captureErrorLine(code domain.CaptureErrorCode) string {
	switch code {
	case domain.CaptureNoSpeech:
		return LineNoSpeech()
	case domain.CaptureNotAllowed:
		return LineMicDenied()
	case domain.CaptureAudioCapture:
		return LineMicUnavailable()
	default:
		return LineCaptureFailed()
	}
}

// playbackErrorLine maps a synthesizer error code to its user-facing line.
func playbackErrorLine(code domain.PlaybackErrorCode) string {
	switch code {
	case domain.PlaybackNotAllowed:
		return LinePlaybackDenied()
	default:
		return LinePlaybackFailed()
	}
}
