// voxturn is a voice question-and-answer terminal: talk (or type), get a
// generated reply, and hear it read aloud.
//
// Usage:
//
//	voxturn [--backend gemini|openai|chat] [--mode push-to-talk|single-shot] [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hammamikhairi/voxturn/internal/capture"
	"github.com/hammamikhairi/voxturn/internal/config"
	"github.com/hammamikhairi/voxturn/internal/display"
	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/genai"
	"github.com/hammamikhairi/voxturn/internal/logger"
	"github.com/hammamikhairi/voxturn/internal/speech"
	"github.com/hammamikhairi/voxturn/internal/storage"
	"github.com/hammamikhairi/voxturn/internal/turn"
)

// Audio kept in memory before the oldest entry is evicted.
const audioCacheEntries = 128

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	// Logs go to a file by default so the TUI stays clean.
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" && cfg.LogFile != "stderr" {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v (falling back to stderr)\n", err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// The whisper transcriber logs through the standard log package.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(cfg.LogLevel, logOut)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gen, err := buildGenerator(ctx, cfg, log.Named("genai"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	rec := buildRecognizer(cfg, log.Named("capture"))
	synth := buildSynthesizer(cfg, log.Named("speech"))
	history := storage.NewMemoryStore(cfg.HistoryLimit(), log.Named("history"))

	ui := display.NewUI(log.Named("display"))
	ctrl := turn.New(cfg.TurnConfig(), rec, synth, gen, log.Named("turn"),
		turn.WithHistory(history),
		turn.WithSink(ui),
	)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("turn controller: %v", err)
		}
	}()

	fmt.Println(display.RenderBanner(bannerInfo(cfg, rec, synth)...))

	// Bubble Tea owns the terminal until quit.
	if err := ui.Run(ctx, ctrl); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	cancel()
	<-loopDone
}

// openLogFile opens path for appending, creating its directory first.
func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file %s: %w", path, err)
	}
	return f, nil
}

// buildGenerator returns the configured backend with code fences stripped
// from its replies.
func buildGenerator(ctx context.Context, cfg config.Config, log *logger.Logger) (domain.Generator, error) {
	var gen domain.Generator
	switch cfg.Backend {
	case config.BackendGemini:
		var opts []genai.GeminiOption
		if cfg.Model != "" {
			opts = append(opts, genai.WithGeminiModel(cfg.Model))
		}
		g, err := genai.NewGemini(ctx, cfg.Creds.GeminiKey, log, opts...)
		if err != nil {
			return nil, err
		}
		gen = g
	case config.BackendOpenAI:
		var opts []genai.OpenAIOption
		if cfg.Model != "" {
			opts = append(opts, genai.WithOpenAIModel(cfg.Model))
		}
		gen = genai.NewOpenAI(cfg.Creds.OpenAIKey, log, opts...)
	case config.BackendChat:
		var opts []genai.ChatOption
		if cfg.Model != "" {
			opts = append(opts, genai.WithChatModel(cfg.Model))
		}
		gen = genai.NewChat(cfg.Creds.ChatEndpoint, cfg.Creds.ChatKey, log, opts...)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	log.Info("generation backend: %s", cfg.Backend)
	return genai.Unfenced(gen), nil
}

// buildRecognizer wires local Whisper capture, or a stand-in that reports
// capture as unavailable when the binary or model is missing.
func buildRecognizer(cfg config.Config, log *logger.Logger) domain.Recognizer {
	w := capture.NewWhisper(cfg.WhisperBin, cfg.WhisperModel, log,
		capture.WithChunkDuration(cfg.RecordChunk),
		capture.WithDeviceCheck(capture.NewDeviceProbe(log)),
	)
	if err := w.Available(); err != nil {
		log.Info("voice input disabled: %v", err)
		return capture.Unavailable{}
	}
	log.Info("voice input enabled (bin=%s, model=%s, chunk=%s)", cfg.WhisperBin, cfg.WhisperModel, cfg.RecordChunk)
	return w
}

// buildSynthesizer wires Azure TTS and oto playback when keys are set.
func buildSynthesizer(cfg config.Config, log *logger.Logger) domain.Synthesizer {
	if !cfg.Creds.SpeechConfigured() {
		log.Info("TTS disabled: set %s and %s env vars to enable", config.EnvAzureKey, config.EnvAzureRegion)
		return speech.Unavailable{}
	}

	player, err := speech.NewPlayer(log)
	if err != nil {
		log.Error("audio player init failed, speech disabled: %v", err)
		return speech.Unavailable{}
	}

	opts := []speech.MouthOption{
		speech.WithCache(speech.NewAudioCache(cfg.CacheDir, audioCacheEntries, log)),
		speech.WithFallbackLocales(cfg.FallbackLocales...),
	}
	if cfg.Voice != "" {
		opts = append(opts, speech.WithVoice(cfg.Voice))
	}
	client := speech.NewAzureClient(cfg.Creds.AzureKey, cfg.Creds.AzureRegion, log)
	log.Info("TTS enabled (region=%s, locale=%s)", cfg.Creds.AzureRegion, cfg.Locale)
	return speech.NewMouth(client, player, log, opts...)
}

func bannerInfo(cfg config.Config, rec domain.Recognizer, synth domain.Synthesizer) []string {
	var info []string
	if rec.Available() == nil {
		info = append(info, fmt.Sprintf("Voice input on (%s). Press ctrl+t to talk.", cfg.Mode))
	} else {
		info = append(info, "Voice input off. Type your question and press enter.")
	}
	if synth.Available() != nil {
		info = append(info, "Speech output off.")
	} else if cfg.NoSpeak {
		info = append(info, "Replies are not read aloud. Press ctrl+p to hear one.")
	}
	return append(info, "Press esc to dismiss, ctrl+c to quit.")
}
