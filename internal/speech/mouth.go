package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// Compile-time interface check.
var _ domain.Synthesizer = (*Mouth)(nil)

// ttsClient turns text into WAV audio.
type ttsClient interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	Voices(ctx context.Context) ([]domain.Voice, error)
}

// audioOut plays WAV audio.
type audioOut interface {
	Play(ctx context.Context, wav []byte) error
	Stop()
}

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithChunkSize sets the approximate max character count per TTS chunk.
// Text longer than this is split at sentence boundaries and synthesized
// in parallel so playback doesn't stall between sentences.
func WithChunkSize(n int) MouthOption {
	return func(m *Mouth) {
		m.chunkSize = n
	}
}

// WithVoice pins the voice instead of choosing one per locale.
func WithVoice(voice string) MouthOption {
	return func(m *Mouth) {
		m.voice = voice
	}
}

// WithFallbackLocales sets the locales tried when no voice matches.
func WithFallbackLocales(locales ...string) MouthOption {
	return func(m *Mouth) {
		m.fallbacks = locales
	}
}

// WithCache sets the audio cache.
func WithCache(c *AudioCache) MouthOption {
	return func(m *Mouth) {
		m.cache = c
	}
}

// Mouth speaks one utterance at a time: chunk, synthesize (parallel), then
// play (sequential). Speaking again, or Cancel, cuts the current utterance
// short. Playback progress is reported through the emit callback passed
// to Speak.
type Mouth struct {
	tts       ttsClient
	player    audioOut
	log       *logger.Logger
	cache     *AudioCache
	voice     string
	fallbacks []string
	chunkSize int

	mu           sync.Mutex
	current      *utterance
	speaking     bool
	voices       []domain.Voice
	voicesLoaded bool
	byLocale     map[string]string
}

// utterance is one Speak call in flight.
type utterance struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMouth creates a synthesizer with the given TTS client and player.
func NewMouth(tts ttsClient, player audioOut, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		tts:       tts,
		player:    player,
		log:       log,
		chunkSize: 200, // roughly 2 sentences
		byLocale:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = NewAudioCache("", 64, log)
	}
	return m
}

// Available reports whether synthesis and playback are wired.
func (m *Mouth) Available() error {
	if m.tts == nil || m.player == nil {
		return fmt.Errorf("speech: no synthesizer: %w", domain.ErrCapabilityUnavailable)
	}
	return nil
}

// Speak cancels whatever is playing and starts speaking text in a voice
// matching locale. It returns once the utterance is scheduled.
func (m *Mouth) Speak(ctx context.Context, text, locale string, emit func(domain.PlaybackEvent)) error {
	text = CleanForSpeech(text)
	if text == "" {
		return errors.New("speech: nothing to say")
	}

	uctx, cancel := context.WithCancel(ctx)
	u := &utterance{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	prev := m.current
	m.current = u
	m.speaking = false
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		m.player.Stop()
	}

	m.log.Debug("mouth: speaking (locale=%s): %s", locale, truncate(text, 60))
	go m.utter(uctx, u, prev, text, locale, emit)
	return nil
}

// Cancel halts the current utterance and clears the speaking flag at once.
func (m *Mouth) Cancel() {
	m.mu.Lock()
	cur := m.current
	m.current = nil
	m.speaking = false
	m.mu.Unlock()

	if cur != nil {
		cur.cancel()
		m.player.Stop()
		m.log.Debug("mouth: cancelled")
	}
}

// IsSpeaking returns true while audio of the current utterance is playing.
func (m *Mouth) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// Voices lists the voices of the TTS service. The list is fetched once.
func (m *Mouth) Voices(ctx context.Context) ([]domain.Voice, error) {
	m.mu.Lock()
	if m.voicesLoaded {
		voices := m.voices
		m.mu.Unlock()
		return voices, nil
	}
	m.mu.Unlock()

	voices, err := m.tts.Voices(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.voices = voices
	m.voicesLoaded = true
	m.mu.Unlock()
	return voices, nil
}

// Cache returns the audio cache used by this Mouth.
func (m *Mouth) Cache() *AudioCache { return m.cache }

func (m *Mouth) utter(ctx context.Context, u, prev *utterance, text, locale string, emit func(domain.PlaybackEvent)) {
	defer close(u.done)
	defer u.cancel()
	defer m.finish(u)

	// The previous utterance releases the player first.
	if prev != nil {
		<-prev.done
	}

	voice := m.voiceFor(ctx, locale)
	slots, err := m.synthesizeAll(ctx, voice, m.splitChunks(text))
	if ctx.Err() != nil {
		emit(domain.PlaybackEvent{Kind: domain.PlaybackError, Code: domain.PlaybackInterrupted})
		return
	}
	if err != nil {
		m.log.Error("mouth: synthesis failed: %v", err)
		emit(domain.PlaybackEvent{Kind: domain.PlaybackError, Code: synthesisCode(err)})
		return
	}

	if !m.markSpeaking(u) {
		return
	}
	emit(domain.PlaybackEvent{Kind: domain.PlaybackStart})

	for i, audio := range slots {
		if audio == nil {
			m.log.Debug("mouth: skipping chunk %d (synthesis failed)", i)
			continue
		}
		if err := m.player.Play(ctx, audio); err != nil && ctx.Err() == nil {
			m.log.Error("mouth: chunk %d playback failed: %v", i, err)
			emit(domain.PlaybackEvent{Kind: domain.PlaybackError, Code: domain.PlaybackAudioOutput})
			return
		}
		if ctx.Err() != nil {
			m.log.Debug("mouth: aborting chunk playback (interrupted)")
			emit(domain.PlaybackEvent{Kind: domain.PlaybackError, Code: domain.PlaybackInterrupted})
			return
		}
	}
	emit(domain.PlaybackEvent{Kind: domain.PlaybackEnd})
}

// markSpeaking sets the speaking flag if u is still current.
func (m *Mouth) markSpeaking(u *utterance) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != u {
		return false
	}
	m.speaking = true
	return true
}

// finish clears the current utterance if it is u.
func (m *Mouth) finish(u *utterance) {
	m.mu.Lock()
	if m.current == u {
		m.current = nil
		m.speaking = false
	}
	m.mu.Unlock()
}

// synthesizeAll synthesizes chunks in parallel. Failed chunks are left nil;
// an error is returned only when every chunk failed.
func (m *Mouth) synthesizeAll(ctx context.Context, voice string, chunks []string) ([][]byte, error) {
	type result struct {
		idx   int
		audio []byte
		err   error
	}
	results := make(chan result, len(chunks))

	for i, chunk := range chunks {
		go func(idx int, text string) {
			audio, err := m.synthesizeWithCache(ctx, voice, text)
			results <- result{idx: idx, audio: audio, err: err}
		}(i, chunk)
	}

	slots := make([][]byte, len(chunks))
	var firstErr error
	ok := 0
	for range chunks {
		r := <-results
		if r.err != nil {
			m.log.Error("mouth: chunk %d synthesis failed: %v", r.idx, r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		slots[r.idx] = r.audio
		ok++
	}
	if ok == 0 {
		return nil, firstErr
	}
	return slots, nil
}

// synthesizeWithCache checks the cache first, otherwise calls the TTS
// service and stores the result.
func (m *Mouth) synthesizeWithCache(ctx context.Context, voice, text string) ([]byte, error) {
	if audio, ok := m.cache.Get(voice, text); ok {
		return audio, nil
	}
	audio, err := m.tts.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	m.cache.Put(voice, text, audio)
	return audio, nil
}

// voiceFor resolves the voice for a locale, listing voices on first use.
func (m *Mouth) voiceFor(ctx context.Context, locale string) string {
	if m.voice != "" {
		return m.voice
	}

	m.mu.Lock()
	if v, ok := m.byLocale[locale]; ok {
		m.mu.Unlock()
		return v
	}
	m.mu.Unlock()

	voice := DefaultVoice
	voices, err := m.Voices(ctx)
	if err != nil {
		m.log.Warn("mouth: listing voices failed, using %s: %v", DefaultVoice, err)
		return voice
	}
	if v, ok := PickVoice(voices, locale, m.fallbacks...); ok {
		voice = v.Name
	}

	m.mu.Lock()
	m.byLocale[locale] = voice
	m.mu.Unlock()
	m.log.Info("mouth: voice for %s is %s", locale, voice)
	return voice
}

func synthesisCode(err error) domain.PlaybackErrorCode {
	var se *StatusError
	if errors.As(err, &se) && se.Denied() {
		return domain.PlaybackNotAllowed
	}
	return domain.PlaybackSynthesis
}

// splitChunks breaks text into sentence-boundary chunks of approximately
// m.chunkSize characters. If chunkSize is 0 or the text is short, it
// returns the text as-is in a single slice.
func (m *Mouth) splitChunks(text string) []string {
	if m.chunkSize <= 0 || len(text) <= m.chunkSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	for _, s := range splitSentences(text) {
		if current.Len() > 0 && current.Len()+len(s) > m.chunkSize {
			if c := strings.TrimSpace(current.String()); c != "" {
				chunks = append(chunks, c)
			}
			current.Reset()
		}
		current.WriteString(s)
	}
	if c := strings.TrimSpace(current.String()); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// splitSentences splits text at sentence boundaries (. ! ?) keeping the
// punctuation attached to the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if isSentenceEnd(runes[i]) {
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
				current.WriteRune(runes[i])
			}
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
