// Package config resolves voxturn's runtime settings from command-line
// flags, the process environment and an optional .env file. Flags win over
// the environment; the environment wins over the env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
	"github.com/hammamikhairi/voxturn/internal/turn"
)

// Backend names a text-generation backend.
type Backend string

const (
	BackendGemini Backend = "gemini"
	BackendOpenAI Backend = "openai"
	BackendChat   Backend = "chat"
)

// Env var names.
const (
	EnvLogLevel = "VOXTURN_LOG_LEVEL"
	EnvLocale   = "VOXTURN_LOCALE"
	EnvMode     = "VOXTURN_MODE"
	EnvBackend  = "VOXTURN_BACKEND"
	EnvModel    = "VOXTURN_MODEL"

	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvChatEndpoint = "GPT_CHAT_ENDPOINT"
	EnvChatKey      = "GPT_CHAT_KEY"
	EnvAzureKey     = "AZURE_SPEECH_KEY"
	EnvAzureRegion  = "AZURE_SPEECH_REGION"
	EnvAzureVoice   = "AZURE_SPEECH_VOICE"
)

// ErrHelp is returned by Load when -h or --help was requested.
var ErrHelp = pflag.ErrHelp

// Credentials are read from the environment only.
type Credentials struct {
	GeminiKey    string
	OpenAIKey    string
	ChatEndpoint string
	ChatKey      string
	AzureKey     string
	AzureRegion  string
}

// SpeechConfigured reports whether Azure speech keys are present.
func (c Credentials) SpeechConfigured() bool {
	return c.AzureKey != "" && c.AzureRegion != ""
}

// Config is the resolved runtime configuration.
type Config struct {
	EnvFile  string
	LogLevel logger.Level
	LogFile  string

	Locale          string
	FallbackLocales []string
	Mode            domain.CaptureMode
	ManualSubmit    bool
	NoSpeak         bool
	SpeakGrace      time.Duration
	History         int
	System          string

	Backend Backend
	Model   string

	WhisperBin   string
	WhisperModel string
	RecordChunk  time.Duration
	CacheDir     string
	Voice        string

	Creds Credentials
}

// minHistoryKept is how many exchanges the history store holds even when
// none are sent with requests.
const minHistoryKept = 32

// HistoryLimit is the history store capacity: enough for --history, and
// never unbounded.
func (c Config) HistoryLimit() int {
	return max(c.History, minHistoryKept)
}

// TurnConfig returns the controller settings.
func (c Config) TurnConfig() turn.Config {
	return turn.Config{
		Locale:       c.Locale,
		Mode:         c.Mode,
		AutoSubmit:   !c.ManualSubmit,
		AutoSpeak:    !c.NoSpeak,
		SpeakGrace:   c.SpeakGrace,
		HistoryTurns: c.History,
		System:       c.System,
	}
}

// Load parses args (without the program name) and resolves env-backed
// values through getenv, falling back to the env file named by --env.
// A missing env file is ignored.
func Load(args []string, getenv func(string) string, usage io.Writer) (Config, error) {
	var (
		c        Config
		logLevel string
		mode     string
		backend  string
	)

	flags := pflag.NewFlagSet("voxturn", pflag.ContinueOnError)
	if usage == nil {
		usage = io.Discard
	}
	flags.SetOutput(usage)
	flags.SortFlags = false

	flags.StringVarP(&c.EnvFile, "env", "e", ".env", "env file path")
	flags.StringVarP(&logLevel, "log-level", "l", "normal", "log level: off, normal, verbose")
	flags.StringVar(&c.LogFile, "log-file", ".voxturn/voxturn.log", "file to write logs to (\"stderr\" logs to console)")

	flags.StringVar(&c.Locale, "locale", "en-US", "locale for recognition and synthesis")
	flags.StringSliceVar(&c.FallbackLocales, "fallback-locale", []string{"en-IN"}, "voice locale to try when none matches --locale (repeatable)")
	flags.StringVar(&mode, "mode", string(domain.ModePushToTalk), "capture mode: push-to-talk, single-shot")
	flags.BoolVar(&c.ManualSubmit, "manual-submit", false, "leave transcripts as a draft instead of sending them")
	flags.BoolVar(&c.NoSpeak, "no-speak", false, "do not read replies aloud automatically")
	flags.DurationVar(&c.SpeakGrace, "speak-grace", 2*time.Second, "wait this long for playback to start before showing a notice (0 disables)")
	flags.IntVar(&c.History, "history", 0, "previous exchanges sent with each request")
	flags.StringVar(&c.System, "system", "", "system instruction sent with every request")

	flags.StringVar(&backend, "backend", string(BackendGemini), "generation backend: gemini, openai, chat")
	flags.StringVar(&c.Model, "model", "", "model name (backend default when empty)")

	flags.StringVar(&c.WhisperBin, "whisper-bin", "whisper-cli", "path to the whisper-cpp CLI binary")
	flags.StringVar(&c.WhisperModel, "whisper-model", "bin/ggml-small.bin", "path to the Whisper GGML model file")
	flags.DurationVar(&c.RecordChunk, "record-chunk", 2*time.Second, "length of each recorded audio chunk")
	flags.StringVar(&c.CacheDir, "cache-dir", ".voxturn/cache", "directory for the synthesized audio cache (empty disables disk)")
	flags.StringVar(&c.Voice, "voice", "", "synthesis voice name (chosen by locale when empty)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return c, ErrHelp
		}
		return c, fmt.Errorf("config: %w", err)
	}
	if flags.NArg() > 0 {
		return c, fmt.Errorf("config: unexpected argument %q", flags.Arg(0))
	}

	fileEnv, err := godotenv.Read(c.EnvFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return c, fmt.Errorf("config: --env: %w", err)
		}
		fileEnv = nil
	}
	lookup := func(key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(fileEnv[key])
	}

	// Env values fill flags the user did not set.
	fromEnv := func(name, key string, dst *string) {
		if flags.Changed(name) {
			return
		}
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	fromEnv("log-level", EnvLogLevel, &logLevel)
	fromEnv("locale", EnvLocale, &c.Locale)
	fromEnv("mode", EnvMode, &mode)
	fromEnv("backend", EnvBackend, &backend)
	fromEnv("model", EnvModel, &c.Model)
	fromEnv("voice", EnvAzureVoice, &c.Voice)

	c.Creds = Credentials{
		GeminiKey:    lookup(EnvGeminiKey),
		OpenAIKey:    lookup(EnvOpenAIKey),
		ChatEndpoint: lookup(EnvChatEndpoint),
		ChatKey:      lookup(EnvChatKey),
		AzureKey:     lookup(EnvAzureKey),
		AzureRegion:  lookup(EnvAzureRegion),
	}

	if c.LogLevel, err = logger.ParseLevel(logLevel); err != nil {
		return c, fmt.Errorf("config: --log-level: unknown level %q", logLevel)
	}
	m, ok := domain.ParseCaptureMode(strings.ToLower(strings.TrimSpace(mode)))
	if !ok {
		return c, fmt.Errorf("config: --mode: unknown capture mode %q", mode)
	}
	c.Mode = m
	c.Backend = Backend(strings.ToLower(strings.TrimSpace(backend)))

	return c, c.validate()
}

// validate checks ranges and that the chosen backend has credentials.
func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.Locale) == "":
		return errors.New("config: --locale: must not be empty")
	case c.SpeakGrace < 0:
		return fmt.Errorf("config: --speak-grace: must not be negative, got %s", c.SpeakGrace)
	case c.History < 0:
		return fmt.Errorf("config: --history: must not be negative, got %d", c.History)
	case c.RecordChunk <= 0:
		return fmt.Errorf("config: --record-chunk: must be positive, got %s", c.RecordChunk)
	}

	switch c.Backend {
	case BackendGemini:
		if c.Creds.GeminiKey == "" {
			return fmt.Errorf("config: --backend gemini: %s is not set", EnvGeminiKey)
		}
	case BackendOpenAI:
		if c.Creds.OpenAIKey == "" {
			return fmt.Errorf("config: --backend openai: %s is not set", EnvOpenAIKey)
		}
	case BackendChat:
		if c.Creds.ChatEndpoint == "" || c.Creds.ChatKey == "" {
			return fmt.Errorf("config: --backend chat: %s and %s must be set", EnvChatEndpoint, EnvChatKey)
		}
	default:
		return fmt.Errorf("config: --backend: unknown backend %q", c.Backend)
	}
	return nil
}
