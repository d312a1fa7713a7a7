package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// noEnvFile points --env at a path that never exists in the temp dir.
func noEnvFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load([]string{"--env", noEnvFile(t)}, envMap(map[string]string{EnvGeminiKey: "g"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Backend != BackendGemini {
		t.Fatalf("expected gemini backend, got %q", c.Backend)
	}
	if c.Mode != domain.ModePushToTalk {
		t.Fatalf("expected push-to-talk, got %q", c.Mode)
	}
	if c.LogLevel != logger.LevelNormal {
		t.Fatalf("expected normal level, got %v", c.LogLevel)
	}
	if c.SpeakGrace != 2*time.Second || c.RecordChunk != 2*time.Second {
		t.Fatalf("unexpected durations: grace=%s chunk=%s", c.SpeakGrace, c.RecordChunk)
	}
	if len(c.FallbackLocales) != 1 || c.FallbackLocales[0] != "en-IN" {
		t.Fatalf("expected [en-IN] fallback, got %v", c.FallbackLocales)
	}

	tc := c.TurnConfig()
	if tc.Locale != "en-US" || !tc.AutoSubmit || !tc.AutoSpeak || tc.HistoryTurns != 0 {
		t.Fatalf("unexpected turn config: %+v", tc)
	}
}

func TestLoadFlagsOverEnv(t *testing.T) {
	env := map[string]string{
		EnvOpenAIKey: "o",
		EnvGeminiKey: "g",
		EnvBackend:   "gemini",
		EnvLocale:    "fr-FR",
		EnvMode:      "single-shot",
		EnvModel:     "from-env",
		EnvLogLevel:  "off",
	}
	c, err := Load([]string{
		"--env", noEnvFile(t),
		"--backend", "openai",
		"--locale", "de-DE",
		"--model", "gpt-x",
		"-l", "verbose",
		"--manual-submit",
		"--no-speak",
		"--history", "3",
		"--fallback-locale", "en-GB",
		"--fallback-locale", "en-AU",
	}, envMap(env), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if c.Backend != BackendOpenAI || c.Model != "gpt-x" || c.Locale != "de-DE" {
		t.Fatalf("flags did not win: %+v", c)
	}
	if c.LogLevel != logger.LevelVerbose {
		t.Fatalf("expected verbose, got %v", c.LogLevel)
	}
	// Not set on the command line, so the env value applies.
	if c.Mode != domain.ModeSingleShot {
		t.Fatalf("expected single-shot from env, got %q", c.Mode)
	}
	if strings.Join(c.FallbackLocales, ",") != "en-GB,en-AU" {
		t.Fatalf("unexpected fallbacks: %v", c.FallbackLocales)
	}

	tc := c.TurnConfig()
	if tc.AutoSubmit || tc.AutoSpeak || tc.HistoryTurns != 3 {
		t.Fatalf("unexpected turn config: %+v", tc)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voxturn.env")
	content := "GPT_CHAT_ENDPOINT=https://example.test/chat\nGPT_CHAT_KEY=file-key\nVOXTURN_BACKEND=chat\nAZURE_SPEECH_KEY=k\nAZURE_SPEECH_REGION=westeurope\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// Process env wins over the file.
	c, err := Load([]string{"-e", path}, envMap(map[string]string{EnvChatKey: "proc-key"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend != BackendChat {
		t.Fatalf("expected chat backend from file, got %q", c.Backend)
	}
	if c.Creds.ChatKey != "proc-key" {
		t.Fatalf("expected process env to win, got %q", c.Creds.ChatKey)
	}
	if c.Creds.ChatEndpoint != "https://example.test/chat" {
		t.Fatalf("unexpected endpoint %q", c.Creds.ChatEndpoint)
	}
	if !c.Creds.SpeechConfigured() {
		t.Fatal("expected speech credentials from file")
	}
}

func TestLoadErrors(t *testing.T) {
	creds := map[string]string{EnvGeminiKey: "g"}

	tests := []struct {
		name string
		args []string
		env  map[string]string
		flag string
	}{
		{"bad mode", []string{"--mode", "always"}, creds, "--mode"},
		{"bad level", []string{"--log-level", "loud"}, creds, "--log-level"},
		{"bad backend", []string{"--backend", "llama"}, creds, "--backend"},
		{"negative grace", []string{"--speak-grace", "-1s"}, creds, "--speak-grace"},
		{"negative history", []string{"--history", "-2"}, creds, "--history"},
		{"zero chunk", []string{"--record-chunk", "0s"}, creds, "--record-chunk"},
		{"empty locale", []string{"--locale", " "}, creds, "--locale"},
		{"gemini without key", nil, map[string]string{}, "--backend gemini"},
		{"openai without key", []string{"--backend", "openai"}, creds, "--backend openai"},
		{"chat without endpoint", []string{"--backend", "chat"}, map[string]string{EnvChatKey: "k"}, "--backend chat"},
		{"bad env mode", nil, map[string]string{EnvGeminiKey: "g", EnvMode: "sometimes"}, "--mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--env", noEnvFile(t)}, tt.args...)
			_, err := Load(args, envMap(tt.env), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.flag) {
				t.Fatalf("expected error to name %s, got %v", tt.flag, err)
			}
		})
	}
}

func TestLoadHelp(t *testing.T) {
	var out strings.Builder
	_, err := Load([]string{"--help"}, envMap(nil), &out)
	if !errors.Is(err, ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
	if !strings.Contains(out.String(), "--whisper-model") {
		t.Fatalf("expected usage output, got %q", out.String())
	}
}

func TestHistoryLimit(t *testing.T) {
	tests := []struct {
		history int
		want    int
	}{
		{0, minHistoryKept},
		{5, minHistoryKept},
		{100, 100},
	}
	for _, tt := range tests {
		c := Config{History: tt.history}
		if got := c.HistoryLimit(); got != tt.want {
			t.Errorf("HistoryLimit() with --history %d = %d, want %d", tt.history, got, tt.want)
		}
	}
}
