// Package capture provides audio-capture providers for the turn controller.
package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// Compile-time interface check.
var _ domain.Recognizer = (*Whisper)(nil)

// Silence tolerance, in empty chunks.
const (
	graceEmpty      = 4 // before the first speech
	postSpeechEmpty = 2 // after speech started (single-shot ends here)
)

// chunkRecorder records one chunk of at most d and returns its raw
// transcription. Closing stop ends the chunk early but keeps its audio;
// cancelling ctx discards it.
type chunkRecorder func(ctx context.Context, stop <-chan struct{}, d time.Duration) (string, error)

// WhisperOption configures the Whisper recognizer.
type WhisperOption func(*Whisper)

// WithChunkDuration sets how long each recording chunk lasts.
func WithChunkDuration(d time.Duration) WhisperOption {
	return func(w *Whisper) { w.chunk = d }
}

// WithMaxUtterance caps a single-shot capture.
func WithMaxUtterance(d time.Duration) WhisperOption {
	return func(w *Whisper) { w.maxUtterance = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) WhisperOption {
	return func(w *Whisper) { w.tempDir = dir }
}

// WithDeviceCheck adds a microphone check to Available.
func WithDeviceCheck(c interface{ Available() error }) WhisperOption {
	return func(w *Whisper) { w.device = c }
}

// Whisper captures speech with a local Whisper model through whisper-cli.
//
// Audio is recorded in fixed-length chunks. In continuous mode every
// non-empty chunk is emitted as a result until Stop. In single-shot mode
// chunks are accumulated and emitted as one result once the speaker goes
// quiet, Stop is called, or the utterance cap is reached.
type Whisper struct {
	whisperBin   string
	modelPath    string
	tempDir      string
	chunk        time.Duration
	maxUtterance time.Duration
	device       interface{ Available() error }
	log          *logger.Logger

	record   chunkRecorder
	lookPath func(string) (string, error)

	mu  sync.Mutex
	run *captureRun
}

// captureRun is one Start..End cycle.
type captureRun struct {
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
}

func (r *captureRun) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// NewWhisper creates a recognizer.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file
func NewWhisper(whisperBin, modelPath string, log *logger.Logger, opts ...WhisperOption) *Whisper {
	w := &Whisper{
		whisperBin:   whisperBin,
		modelPath:    modelPath,
		tempDir:      ".voxturn/stt",
		chunk:        2 * time.Second,
		maxUtterance: 15 * time.Second,
		log:          log,
		lookPath:     exec.LookPath,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.record = w.recordChunk
	return w
}

// Available reports whether whisper-cli, its model, and (optionally) a
// microphone are present.
func (w *Whisper) Available() error {
	if _, err := w.lookPath(w.whisperBin); err != nil {
		return fmt.Errorf("capture: whisper binary %q: %w", w.whisperBin, domain.ErrCapabilityUnavailable)
	}
	if _, err := os.Stat(w.modelPath); err != nil {
		return fmt.Errorf("capture: whisper model %q: %w", w.modelPath, domain.ErrCapabilityUnavailable)
	}
	if w.device != nil {
		if err := w.device.Available(); err != nil {
			return err
		}
	}
	return nil
}

// Start begins a capture. A capture still winding down is aborted and
// its remaining events are dropped.
func (w *Whisper) Start(ctx context.Context, cfg domain.CaptureConfig, emit func(domain.CaptureEvent)) error {
	runCtx, cancel := context.WithCancel(ctx)
	run := &captureRun{cancel: cancel, stop: make(chan struct{})}

	w.mu.Lock()
	prev := w.run
	w.run = run
	w.mu.Unlock()

	if prev != nil {
		w.log.Debug("whisper: aborting previous capture")
		prev.cancel()
	}

	// whisper-cli picks the language from the model; the locale is informational.
	w.log.Info("whisper: capture started (locale=%s, continuous=%v, chunk=%s)",
		cfg.Locale, cfg.Continuous, w.chunk)

	go w.loop(runCtx, run, cfg, emit)
	return nil
}

// Stop ends the current capture after the chunk being recorded. It never
// blocks; the final result and End are emitted from the capture goroutine.
func (w *Whisper) Stop() error {
	w.mu.Lock()
	run := w.run
	w.mu.Unlock()

	if run == nil {
		return domain.ErrNotListening
	}
	run.requestStop()
	return nil
}

func (w *Whisper) loop(ctx context.Context, run *captureRun, cfg domain.CaptureConfig, emit func(domain.CaptureEvent)) {
	defer func() {
		run.cancel()
		w.mu.Lock()
		if w.run == run {
			w.run = nil
		}
		w.mu.Unlock()
	}()

	var parts []string
	emptyRuns := 0
	heardSpeech := false
	var deadline <-chan time.Time
	if !cfg.Continuous && w.maxUtterance > 0 {
		timer := time.NewTimer(w.maxUtterance)
		defer timer.Stop()
		deadline = timer.C
	}

	finish := func() {
		if ctx.Err() != nil {
			return
		}
		if combined := strings.Join(parts, " "); combined != "" {
			emit(domain.CaptureEvent{Kind: domain.CaptureResult, Text: combined})
		}
		emit(domain.CaptureEvent{Kind: domain.CaptureEnd})
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("whisper: capture aborted")
			return
		case <-run.stop:
			w.log.Debug("whisper: capture stopped")
			finish()
			return
		case <-deadline:
			w.log.Debug("whisper: utterance cap reached")
			finish()
			return
		default:
		}

		raw, err := w.record(ctx, run.stop, w.chunk)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.log.Error("whisper: %v", err)
			emit(domain.CaptureEvent{Kind: domain.CaptureError, Code: domain.CaptureAudioCapture})
			emit(domain.CaptureEvent{Kind: domain.CaptureEnd})
			return
		}

		text := CleanTranscription(raw)
		if text == "" {
			emptyRuns++
			if cfg.Continuous {
				continue
			}
			if heardSpeech && emptyRuns >= postSpeechEmpty {
				w.log.Debug("whisper: silence after speech, ending capture")
				finish()
				return
			}
			if !heardSpeech && emptyRuns >= graceEmpty {
				w.log.Debug("whisper: no speech heard")
				emit(domain.CaptureEvent{Kind: domain.CaptureError, Code: domain.CaptureNoSpeech})
				emit(domain.CaptureEvent{Kind: domain.CaptureEnd})
				return
			}
			continue
		}

		emptyRuns = 0
		heardSpeech = true
		w.log.Debug("whisper: chunk %q", text)
		if cfg.Continuous {
			emit(domain.CaptureEvent{Kind: domain.CaptureResult, Text: text})
		} else {
			parts = append(parts, text)
		}
	}
}

// recordChunk does one recording cycle with whisper-cli.
func (w *Whisper) recordChunk(ctx context.Context, stop <-chan struct{}, d time.Duration) (string, error) {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	if err := os.MkdirAll(w.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("capture: temp dir: %w", err)
	}

	verbose := w.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		w.whisperBin,
		w.modelPath,
		w.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		return "", fmt.Errorf("capture: transcriber init: %w", err)
	}

	if err := t.Start(); err != nil {
		return "", fmt.Errorf("capture: recording start: %w", err)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stop:
	case <-ctx.Done():
		t.Stop()
		wg.Wait()
		return "", ctx.Err()
	}

	t.Stop()
	wg.Wait()
	return result, nil
}
