// Package turn implements the voice turn controller: one conversational
// turn at a time, from microphone capture through a generation request to
// spoken playback of the reply.
//
// All state lives on a single event-loop goroutine (Run). Public methods
// and provider callbacks are queued to that goroutine, so transitions never
// race. Capture callbacks are keyed by capture id, playback callbacks by
// utterance id, and generation results by turn id; a callback whose id is
// no longer current is dropped.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// Config parameterizes the controller.
type Config struct {
	// Locale is used for both recognition and synthesis.
	Locale string
	// Mode selects push-to-talk (continuous until stopped) or single-shot.
	Mode domain.CaptureMode
	// AutoSubmit sends a finished capture straight to generation. When
	// false the transcript is left as a draft in Idle.
	AutoSubmit bool
	// AutoSpeak reads replies aloud as soon as they arrive.
	AutoSpeak bool
	// SpeakGrace is how long to wait for playback to start before
	// surfacing a notice. Zero disables the check.
	SpeakGrace time.Duration
	// HistoryTurns is how many previous exchanges go with each request.
	HistoryTurns int
	// System is an optional instruction sent with every request.
	System string
}

// DefaultConfig returns push-to-talk in en-US with auto submit and speak.
func DefaultConfig() Config {
	return Config{
		Locale:     "en-US",
		Mode:       domain.ModePushToTalk,
		AutoSubmit: true,
		AutoSpeak:  true,
		SpeakGrace: 2 * time.Second,
	}
}

// Option configures the Controller.
type Option func(*Controller)

// WithHistory stores completed exchanges and sends recent ones as context.
func WithHistory(store domain.HistoryStore) Option {
	return func(c *Controller) { c.history = store }
}

// WithSink publishes state changes and completed exchanges.
func WithSink(sink domain.EventSink) Option {
	return func(c *Controller) { c.sink = sink }
}

// Controller drives one turn at a time. Safe for concurrent callers.
type Controller struct {
	cfg     Config
	rec     domain.Recognizer
	synth   domain.Synthesizer
	gen     domain.Generator
	history domain.HistoryStore
	sink    domain.EventSink
	log     *logger.Logger

	// Work queue drained by Run.
	qmu     sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}

	// Published view for Snapshot.
	smu  sync.RWMutex
	snap domain.Snapshot

	// Owned by the loop goroutine.
	loopCtx    context.Context
	state      domain.TurnState
	turn       uint64
	transcript string
	reply      string
	errMsg     string
	errKind    domain.ErrorKind
	capture    uint64 // current capture id
	capturing  bool
	utterance  uint64 // current utterance id
	playing    bool   // an utterance is outstanding
	speaking   bool   // the synthesizer reported start
	grace      *time.Timer
	genCancel  context.CancelFunc // in-flight request
}

// New creates a controller. Call Run to start processing.
func New(cfg Config, rec domain.Recognizer, synth domain.Synthesizer, gen domain.Generator, log *logger.Logger, opts ...Option) *Controller {
	if cfg.Mode == "" {
		cfg.Mode = domain.ModePushToTalk
	}
	c := &Controller{
		cfg:   cfg,
		rec:   rec,
		synth: synth,
		gen:   gen,
		log:   log,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		state: domain.TurnIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap = c.build()
	return c
}

// Run processes commands and provider events until ctx is cancelled. On
// the way out it cancels any capture, playback and pending request. Run
// must be called once.
func (c *Controller) Run(ctx context.Context) error {
	c.loopCtx = ctx
	defer close(c.done)

	c.log.Info("turn controller started (locale=%s, mode=%s, auto_submit=%v, history=%d)",
		c.cfg.Locale, c.cfg.Mode, c.cfg.AutoSubmit, c.cfg.HistoryTurns)

	for {
		select {
		case <-ctx.Done():
			c.abortCapture()
			c.cancelPlayback()
			c.cancelGeneration()
			c.log.Info("turn controller stopped")
			return ctx.Err()
		case <-c.wake:
			c.drain()
		}
	}
}

// ── Commands ─────────────────────────────────────────────────────

// StartCapture begins a new turn by listening to the microphone. Any
// playback is cancelled first. From Processing the in-flight request is
// superseded. Fails with ErrCapabilityUnavailable when capture isn't
// possible and ErrAlreadyListening during a capture.
func (c *Controller) StartCapture(ctx context.Context) error {
	return c.do(ctx, c.startCapture)
}

// StopCapture ends a push-to-talk capture. The transcript is then
// submitted, or the turn ends with "no speech detected".
func (c *Controller) StopCapture(ctx context.Context) error {
	return c.do(ctx, c.stopCapture)
}

// SubmitTranscript starts a turn from text. Blank text ends the turn with
// "no speech detected" without a network call. Fails with ErrBusy while a
// request is in flight.
func (c *Controller) SubmitTranscript(ctx context.Context, text string) error {
	return c.do(ctx, func() error { return c.submitTranscript(text) })
}

// Speak reads text aloud, cancelling the current utterance. A capture in
// progress is abandoned and the controller returns to Idle.
func (c *Controller) Speak(ctx context.Context, text string) error {
	return c.do(ctx, func() error {
		if strings.TrimSpace(text) == "" {
			return errors.New("turn: nothing to speak")
		}
		return c.speak(text)
	})
}

// StopSpeaking halts playback and clears the speaking indicator.
func (c *Controller) StopSpeaking(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.cancelPlayback()
		return nil
	})
}

// AskAgain leaves a finished turn and returns to Idle.
func (c *Controller) AskAgain(ctx context.Context) error {
	return c.do(ctx, func() error {
		switch c.state {
		case domain.TurnListening, domain.TurnProcessing:
			return domain.ErrBusy
		}
		c.cancelPlayback()
		c.clearTurn()
		c.state = domain.TurnIdle
		return nil
	})
}

// Dismiss abandons whatever is happening: capture and playback are
// cancelled, an in-flight request is discarded, and the controller is Idle.
func (c *Controller) Dismiss(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.abortCapture()
		c.cancelPlayback()
		c.cancelGeneration()
		if c.state != domain.TurnIdle {
			c.turn++
		}
		c.clearTurn()
		c.state = domain.TurnIdle
		c.log.Debug("turn: dismissed")
		return nil
	})
}

// Replay speaks the current reply again.
func (c *Controller) Replay(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.reply == "" {
			return domain.ErrNoReply
		}
		return c.speak(c.reply)
	})
}

// ClearHistory forgets the conversation.
func (c *Controller) ClearHistory(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.history == nil {
			return nil
		}
		if err := c.history.Clear(c.loopCtx); err != nil {
			return fmt.Errorf("turn: clear history: %w", err)
		}
		c.log.Info("turn: history cleared")
		return nil
	})
}

// Snapshot returns the state as of the last completed command or event.
func (c *Controller) Snapshot() domain.Snapshot {
	c.smu.RLock()
	defer c.smu.RUnlock()
	return c.snap
}

// ── Queue ────────────────────────────────────────────────────────

// enqueue schedules fn on the loop goroutine. Never blocks, so providers
// may emit from inside Start, Stop, Speak, or Cancel.
func (c *Controller) enqueue(fn func()) {
	c.qmu.Lock()
	c.pending = append(c.pending, fn)
	c.qmu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default: // already signaled
	}
}

// drain runs queued work in order, publishing after each item.
func (c *Controller) drain() {
	for {
		c.qmu.Lock()
		if len(c.pending) == 0 {
			c.qmu.Unlock()
			return
		}
		fn := c.pending[0]
		c.pending[0] = nil
		c.pending = c.pending[1:]
		c.qmu.Unlock()

		fn()
		c.publish()
	}
}

// do runs fn on the loop goroutine and waits for its result.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	select {
	case <-c.done:
		return domain.ErrStopped
	default:
	}

	reply := make(chan error, 1)
	c.enqueue(func() {
		err := fn()
		c.publish()
		reply <- err
	})

	select {
	case err := <-reply:
		return err
	case <-c.done:
		return domain.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publish refreshes the Snapshot and notifies the sink on change.
func (c *Controller) publish() {
	snap := c.build()

	c.smu.Lock()
	changed := snap != c.snap
	c.snap = snap
	c.smu.Unlock()

	if changed && c.sink != nil {
		c.sink.TurnChanged(snap)
	}
}

func (c *Controller) build() domain.Snapshot {
	return domain.Snapshot{
		State:      c.state,
		Turn:       c.turn,
		Transcript: c.transcript,
		Reply:      c.reply,
		Error:      c.errMsg,
		ErrorKind:  c.errKind,
		Capturing:  c.capturing,
		Speaking:   c.speaking,
	}
}

// ── Capture ──────────────────────────────────────────────────────

func (c *Controller) startCapture() error {
	if c.state == domain.TurnListening {
		return domain.ErrAlreadyListening
	}
	if err := c.rec.Available(); err != nil {
		c.log.Warn("turn: capture unavailable: %v", err)
		c.setError(domain.ErrorCapabilityUnavailable, LineCaptureUnsupported())
		return fmt.Errorf("turn: start capture: %w", err)
	}

	// Keep the microphone from hearing our own voice.
	c.cancelPlayback()

	if c.state == domain.TurnProcessing {
		c.log.Info("turn: turn %d superseded by a new capture", c.turn)
	}
	c.cancelGeneration()

	c.turn++
	c.clearTurn()
	c.capture++
	id := c.capture

	cfg := domain.CaptureConfig{
		Locale:         c.cfg.Locale,
		InterimResults: false,
		Continuous:     c.cfg.Mode == domain.ModePushToTalk,
	}
	emit := func(ev domain.CaptureEvent) {
		c.enqueue(func() { c.onCapture(id, ev) })
	}

	c.state = domain.TurnListening
	c.capturing = true

	if err := c.rec.Start(c.loopCtx, cfg, emit); err != nil {
		c.log.Error("turn: capture start failed: %v", err)
		c.capture++
		c.capturing = false
		c.state = domain.TurnResult
		c.setError(domain.ErrorCapture, LineCaptureFailed())
		return fmt.Errorf("turn: start capture: %w", err)
	}

	c.log.Info("turn %d: listening (mode=%s)", c.turn, c.cfg.Mode)
	return nil
}

func (c *Controller) stopCapture() error {
	if c.state != domain.TurnListening || !c.capturing {
		return domain.ErrNotListening
	}
	if err := c.rec.Stop(); err != nil {
		// The recognizer already ended; settle the turn with what we have.
		c.log.Warn("turn: capture stop: %v", err)
		c.capture++
		c.capturing = false
		c.finishCapture()
	}
	return nil
}

// onCapture handles a recognizer event for capture id.
func (c *Controller) onCapture(id uint64, ev domain.CaptureEvent) {
	if id != c.capture || c.state != domain.TurnListening {
		c.log.Debug("turn: dropping stale capture event (capture=%d, current=%d)", id, c.capture)
		return
	}

	switch ev.Kind {
	case domain.CaptureResult:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return
		}
		c.log.Debug("turn %d: heard %q", c.turn, text)
		if c.cfg.Mode == domain.ModeSingleShot {
			c.transcript = text
			c.capture++
			c.capturing = false
			if err := c.rec.Stop(); err != nil && !errors.Is(err, domain.ErrNotListening) {
				c.log.Debug("turn: capture stop: %v", err)
			}
			c.finishCapture()
			return
		}
		if c.transcript == "" {
			c.transcript = text
		} else {
			c.transcript += " " + text
		}

	case domain.CaptureError:
		c.log.Error("turn %d: capture error: %s", c.turn, ev.Code)
		c.capture++
		c.capturing = false
		c.state = domain.TurnResult
		c.setError(domain.ErrorCapture, captureErrorLine(ev.Code))

	case domain.CaptureEnd:
		c.capture++
		c.capturing = false
		c.finishCapture()
	}
}

// finishCapture applies the end-of-capture rule to the current transcript.
func (c *Controller) finishCapture() {
	text := strings.TrimSpace(c.transcript)
	switch {
	case text == "":
		c.noSpeech()
	case c.cfg.AutoSubmit:
		c.submit(text)
	default:
		c.state = domain.TurnIdle
		c.log.Info("turn %d: draft ready (%d chars)", c.turn, len(text))
	}
}

// abortCapture stops the recognizer and ignores whatever it still emits.
func (c *Controller) abortCapture() {
	if !c.capturing {
		return
	}
	c.capture++
	c.capturing = false
	if err := c.rec.Stop(); err != nil {
		c.log.Debug("turn: capture stop: %v", err)
	}
	c.log.Debug("turn: capture aborted")
}

// ── Generation ───────────────────────────────────────────────────

func (c *Controller) submitTranscript(text string) error {
	if c.state == domain.TurnProcessing {
		return domain.ErrBusy
	}
	c.abortCapture()
	c.cancelPlayback()
	c.cancelGeneration()
	c.turn++
	c.clearTurn()
	c.submit(strings.TrimSpace(text))
	return nil
}

// submit sends text for the current turn. The request runs off the loop
// under its own context, cancelled when the turn is superseded; its result
// comes back tagged with the turn id.
func (c *Controller) submit(text string) {
	c.transcript = text
	if text == "" {
		c.noSpeech()
		return
	}

	req := domain.GenerateRequest{
		System:  c.cfg.System,
		History: c.recentHistory(),
		Prompt:  text,
	}
	turn := c.turn
	ctx, cancel := context.WithCancel(c.loopCtx)
	c.genCancel = cancel

	c.state = domain.TurnProcessing
	c.reply = ""
	c.clearError()
	c.log.Info("turn %d: submitting %q (history=%d)", turn, text, len(req.History))

	go func() {
		defer cancel()
		reply, err := c.gen.Generate(ctx, req)
		c.enqueue(func() { c.onReply(turn, text, reply, err) })
	}()
}

func (c *Controller) onReply(turn uint64, prompt, reply string, err error) {
	if turn != c.turn || c.state != domain.TurnProcessing {
		c.log.Debug("turn: discarding stale response for turn %d (current=%d)", turn, c.turn)
		return
	}
	c.genCancel = nil

	c.state = domain.TurnResult
	if err != nil {
		c.log.Error("turn %d: generation failed: %v", turn, err)
		c.setError(domain.ErrorGeneration, LineGenerationFailed())
		return
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		c.log.Error("turn %d: generation returned an empty reply", turn)
		c.setError(domain.ErrorGeneration, LineGenerationFailed())
		return
	}

	c.reply = reply
	c.log.Info("turn %d: reply (%d chars)", turn, len(reply))
	c.record(prompt, reply)

	if c.cfg.AutoSpeak {
		if err := c.speak(reply); err != nil {
			c.log.Debug("turn %d: reply not spoken: %v", turn, err)
		}
	}
}

func (c *Controller) recentHistory() []domain.Exchange {
	if c.history == nil || c.cfg.HistoryTurns <= 0 {
		return nil
	}
	recent, err := c.history.Recent(c.loopCtx, c.cfg.HistoryTurns)
	if err != nil {
		c.log.Warn("turn: loading history: %v", err)
		return nil
	}
	return recent
}

// record stores a completed exchange and tells the sink.
func (c *Controller) record(prompt, reply string) {
	ex := domain.Exchange{Prompt: prompt, Reply: reply}
	if c.history != nil {
		stored, err := c.history.Append(c.loopCtx, ex)
		if err != nil {
			c.log.Warn("turn: storing exchange: %v", err)
		} else {
			ex = stored
		}
	}
	if c.sink != nil {
		c.sink.ExchangeCompleted(ex)
	}
}

// cancelGeneration aborts the in-flight request, if any. Its result still
// arrives and is dropped by the turn check in onReply.
func (c *Controller) cancelGeneration() {
	if c.genCancel == nil {
		return
	}
	c.genCancel()
	c.genCancel = nil
	c.log.Debug("turn: request for turn %d cancelled", c.turn)
}

// ── Playback ─────────────────────────────────────────────────────

// speak starts a new utterance, arming the start grace timer.
func (c *Controller) speak(text string) error {
	if err := c.synth.Available(); err != nil {
		c.log.Warn("turn: synthesis unavailable: %v", err)
		c.setError(domain.ErrorCapabilityUnavailable, LineSpeechUnsupported())
		return fmt.Errorf("turn: speak: %w", err)
	}

	// Never speak into an open microphone.
	if c.state == domain.TurnListening {
		c.abortCapture()
		c.state = domain.TurnIdle
		c.transcript = ""
	}
	c.cancelPlayback()

	c.utterance++
	id := c.utterance
	emit := func(ev domain.PlaybackEvent) {
		c.enqueue(func() { c.onPlayback(id, ev) })
	}

	if err := c.synth.Speak(c.loopCtx, text, c.cfg.Locale, emit); err != nil {
		c.log.Error("turn: speak failed: %v", err)
		c.setError(domain.ErrorPlayback, LinePlaybackFailed())
		return fmt.Errorf("turn: speak: %w", err)
	}

	c.playing = true
	if c.cfg.SpeakGrace > 0 {
		c.grace = time.AfterFunc(c.cfg.SpeakGrace, func() {
			c.enqueue(func() { c.onGrace(id) })
		})
	}
	c.log.Debug("turn: utterance %d queued (%d chars)", id, len(text))
	return nil
}

func (c *Controller) onPlayback(id uint64, ev domain.PlaybackEvent) {
	if id != c.utterance || !c.playing {
		c.log.Debug("turn: dropping stale playback event (utterance=%d, current=%d)", id, c.utterance)
		return
	}

	switch ev.Kind {
	case domain.PlaybackStart:
		c.speaking = true
		c.stopGrace()
		// A late start makes the silence notice wrong.
		if c.errKind == domain.ErrorPlayback && c.errMsg == LinePlaybackSilent() {
			c.clearError()
		}

	case domain.PlaybackEnd:
		c.endPlayback()

	case domain.PlaybackError:
		c.endPlayback()
		if ev.Code == domain.PlaybackInterrupted {
			c.log.Debug("turn: utterance %d interrupted", id)
			return
		}
		c.log.Error("turn: playback error: %s", ev.Code)
		c.setError(domain.ErrorPlayback, playbackErrorLine(ev.Code))
	}
}

// onGrace fires when the grace period passed; no start signal means the
// platform failed silently.
func (c *Controller) onGrace(id uint64) {
	if id != c.utterance || !c.playing || c.speaking {
		return
	}
	if c.synth.IsSpeaking() {
		// The start event is still queued.
		return
	}
	c.log.Warn("turn: utterance %d did not start within %s", id, c.cfg.SpeakGrace)
	c.setError(domain.ErrorPlayback, LinePlaybackSilent())
}

// cancelPlayback halts the current utterance and ignores its remaining events.
func (c *Controller) cancelPlayback() {
	if !c.playing {
		return
	}
	c.utterance++
	c.synth.Cancel()
	c.endPlayback()
	c.log.Debug("turn: playback cancelled")
}

func (c *Controller) endPlayback() {
	c.playing = false
	c.speaking = false
	c.stopGrace()
}

func (c *Controller) stopGrace() {
	if c.grace != nil {
		c.grace.Stop()
		c.grace = nil
	}
}

// ── Helpers ──────────────────────────────────────────────────────

func (c *Controller) noSpeech() {
	c.state = domain.TurnResult
	c.setError(domain.ErrorCapture, LineNoSpeech())
	c.log.Info("turn %d: no speech detected", c.turn)
}

func (c *Controller) clearTurn() {
	c.transcript = ""
	c.reply = ""
	c.clearError()
}

func (c *Controller) setError(kind domain.ErrorKind, msg string) {
	c.errKind = kind
	c.errMsg = msg
}

func (c *Controller) clearError() {
	c.errKind = domain.ErrorNone
	c.errMsg = ""
}
