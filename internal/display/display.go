// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] type renders a status bar (turn state, speaking indicator, turn
// id) and an input prompt at the bottom of the terminal. Transcripts,
// replies and errors are printed above the rendered area so they form a
// scrollback. The UI is the controller's event sink; every controller call
// it makes runs inside a tea.Cmd, never inside Update.
package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// Compile-time interface check.
var _ domain.EventSink = (*UI)(nil)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	stateStyles = map[domain.TurnState]lipgloss.Style{
		domain.TurnIdle:       lipgloss.NewStyle().Foreground(lipgloss.Color("#a1a1aa")),
		domain.TurnListening:  lipgloss.NewStyle().Foreground(lipgloss.Color("#fca5a5")).Bold(true),
		domain.TurnProcessing: lipgloss.NewStyle().Foreground(lipgloss.Color("#fde68a")),
		domain.TurnResult:     lipgloss.NewStyle().Foreground(lipgloss.Color("#bbf7d0")),
	}

	speakingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// BannerStyle is the muted slate used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// Assistant replies.
	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	primaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	// Hints, notices, key help.
	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))
)

const promptText = "you> "

// ── Controls ─────────────────────────────────────────────────────

// Controls is the part of the turn controller the UI drives.
type Controls interface {
	StartCapture(ctx context.Context) error
	StopCapture(ctx context.Context) error
	SubmitTranscript(ctx context.Context, text string) error
	StopSpeaking(ctx context.Context) error
	AskAgain(ctx context.Context) error
	Dismiss(ctx context.Context) error
	Replay(ctx context.Context) error
	ClearHistory(ctx context.Context) error
	Snapshot() domain.Snapshot
}

// ── UI ───────────────────────────────────────────────────────────

// UI manages the terminal through Bubble Tea.
//
// Create it with [NewUI], pass it to the controller as its sink, then call
// [UI.Run] (blocking). Sink callbacks that arrive before the program is
// running are dropped; the model reads a fresh snapshot once it is ready.
type UI struct {
	program *tea.Program
	readyCh chan struct{}
	log     *logger.Logger
	done    atomic.Bool
}

// NewUI creates the display. Call Run() to start.
func NewUI(log *logger.Logger) *UI {
	return &UI{
		readyCh: make(chan struct{}),
		log:     log,
	}
}

// TurnChanged implements domain.EventSink.
func (u *UI) TurnChanged(s domain.Snapshot) { u.send(snapshotMsg(s)) }

// ExchangeCompleted implements domain.EventSink.
func (u *UI) ExchangeCompleted(ex domain.Exchange) { u.send(exchangeMsg(ex)) }

// send forwards a message to the running program. It is called on the
// controller's goroutine; Update never waits on the controller, so the
// blocking Program.Send always makes progress.
func (u *UI) send(msg tea.Msg) {
	select {
	case <-u.readyCh:
	default:
		return
	}
	if u.done.Load() {
		return
	}
	u.program.Send(msg)
}

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// Run starts the Bubble Tea event loop. Blocks until the user quits or
// ctx is cancelled. ctx is also used for every controller call.
func (u *UI) Run(ctx context.Context, ctrl Controls) error {
	ti := textinput.New()
	// Plain-text prompt: styled prompts add ANSI bytes that break the
	// textinput width math for long input.
	ti.Prompt = promptText
	ti.PromptStyle = promptStyle
	ti.TextStyle = primaryStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	ti.Placeholder = "type a question, or ctrl+t to talk"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60 // updated on first WindowSizeMsg

	m := model{
		ctx:     ctx,
		ctrl:    ctrl,
		input:   ti,
		snap:    ctrl.Snapshot(),
		readyCh: u.readyCh,
	}

	u.program = tea.NewProgram(m, tea.WithContext(ctx))
	_, err := u.program.Run()
	u.done.Store(true)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	if err != nil {
		u.log.Error("display: %v", err)
	}
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type model struct {
	ctx     context.Context
	ctrl    Controls
	input   textinput.Model
	snap    domain.Snapshot
	readyCh chan struct{}
	width   int
}

// Messages.
type (
	snapshotMsg domain.Snapshot
	exchangeMsg domain.Exchange
	// cmdErrMsg reports a rejected controller command.
	cmdErrMsg struct {
		op  string
		err error
	}
	noticeMsg string
)

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		signalReady(m.readyCh, m.ctrl),
		tea.SetWindowTitle(windowTitle(m.snap)),
	)
}

// signalReady opens the sink and re-reads the snapshot so no change
// between NewUI and the first frame is lost.
func signalReady(ch chan struct{}, ctrl Controls) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return snapshotMsg(ctrl.Snapshot())
	}
}

// call runs a controller command off the Update goroutine.
func (m model) call(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return cmdErrMsg{op: op, err: err}
		}
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > len(promptText) {
			m.input.Width = msg.Width - len(promptText)
		}
		return m, nil

	case snapshotMsg:
		prev := m.snap
		m.snap = domain.Snapshot(msg)
		var cmds []tea.Cmd
		if line := transitionLine(prev, m.snap); line != "" {
			cmds = append(cmds, tea.Println(line))
		}
		// Manual submit: a finished capture becomes an editable draft.
		if draft := draftText(prev, m.snap); draft != "" {
			m.input.SetValue(draft)
			m.input.CursorEnd()
		}
		if windowTitle(prev) != windowTitle(m.snap) {
			cmds = append(cmds, tea.SetWindowTitle(windowTitle(m.snap)))
		}
		return m, tea.Batch(cmds...)

	case exchangeMsg:
		return m, tea.Println(chatStyle.Render("  " + msg.Reply))

	case cmdErrMsg:
		if line := describeErr(msg.op, msg.err); line != "" {
			return m, tea.Println(secondaryStyle.Render("  " + line))
		}
		return m, nil

	case noticeMsg:
		return m, tea.Println(secondaryStyle.Render("  " + string(msg)))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey maps the key bindings to controller commands.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit, true

	case tea.KeyCtrlT:
		if m.snap.Capturing {
			return m.call("stop", m.ctrl.StopCapture), true
		}
		return m.call("listen", m.ctrl.StartCapture), true

	case tea.KeyEnter:
		v := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if v == "" {
			return nil, true
		}
		ctrl := m.ctrl
		return m.call("ask", func(ctx context.Context) error {
			return ctrl.SubmitTranscript(ctx, v)
		}), true

	case tea.KeyCtrlX:
		return m.call("stop speaking", m.ctrl.StopSpeaking), true

	case tea.KeyCtrlN:
		m.input.Reset()
		return m.call("ask again", m.ctrl.AskAgain), true

	case tea.KeyCtrlP:
		return m.call("replay", m.ctrl.Replay), true

	case tea.KeyCtrlL:
		ctrl := m.ctrl
		ctx := m.ctx
		return func() tea.Msg {
			if err := ctrl.ClearHistory(ctx); err != nil {
				return cmdErrMsg{op: "clear history", err: err}
			}
			return noticeMsg("conversation cleared")
		}, true

	case tea.KeyEsc:
		m.input.Reset()
		return m.call("dismiss", m.ctrl.Dismiss), true
	}
	return nil, false
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(renderBar(m.snap, m.width))
	b.WriteByte('\n')
	b.WriteString(secondaryStyle.Render(keyHelp(m.snap)))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	return b.String()
}

// ── Rendering helpers ────────────────────────────────────────────

func renderBar(s domain.Snapshot, width int) string {
	parts := []string{stateStyles[s.State].Render(stateLabel(s))}
	if s.Speaking {
		parts = append(parts, speakingStyle.Render("speaking"))
	}
	if s.Turn > 0 {
		parts = append(parts, labelStyle.Render(fmt.Sprintf("turn %d", s.Turn)))
	}
	if s.Error != "" {
		parts = append(parts, urgentOutputStyle.Render(s.Error))
	}

	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "
	if width <= 0 {
		width = 80
	}
	return barBg.Width(width).Render(content)
}

func stateLabel(s domain.Snapshot) string {
	switch s.State {
	case domain.TurnListening:
		return "● listening"
	case domain.TurnProcessing:
		return "thinking…"
	case domain.TurnResult:
		return "reply"
	default:
		return "idle"
	}
}

func keyHelp(s domain.Snapshot) string {
	talk := "ctrl+t talk"
	if s.Capturing {
		talk = "ctrl+t stop"
	}
	keys := []string{talk, "enter ask"}
	if s.Speaking {
		keys = append(keys, "ctrl+x hush")
	}
	if s.State == domain.TurnResult {
		keys = append(keys, "ctrl+n ask again", "ctrl+p replay")
	}
	keys = append(keys, "ctrl+l forget", "esc dismiss", "ctrl+c quit")
	return " " + strings.Join(keys, " · ")
}

func windowTitle(s domain.Snapshot) string {
	if s.State == domain.TurnIdle && !s.Speaking {
		return "voxturn"
	}
	if s.Speaking {
		return "voxturn · speaking"
	}
	return "voxturn · " + stateLabel(s)
}

// transitionLine returns the scrollback line for a state change, if any.
// The transcript is echoed once a request starts; errors print when they
// first appear.
func transitionLine(prev, next domain.Snapshot) string {
	switch {
	case next.Error != "" && (next.Error != prev.Error || next.Turn != prev.Turn):
		if next.ErrorKind == domain.ErrorPlayback || next.ErrorKind == domain.ErrorCapabilityUnavailable {
			return secondaryStyle.Render("  " + next.Error)
		}
		return urgentOutputStyle.Render("  " + next.Error)
	case next.State == domain.TurnProcessing && (prev.State != domain.TurnProcessing || prev.Turn != next.Turn):
		return promptStyle.Render(promptText) + primaryStyle.Render(next.Transcript)
	}
	return ""
}

// draftText returns a transcript that should be placed in the input box:
// a capture finished into Idle without being sent.
func draftText(prev, next domain.Snapshot) string {
	if next.State != domain.TurnIdle || next.Transcript == "" {
		return ""
	}
	if prev.State == domain.TurnListening || prev.Transcript != next.Transcript {
		return next.Transcript
	}
	return ""
}

// describeErr turns a rejected command into a hint. Capability failures
// already show through the snapshot.
func describeErr(op string, err error) string {
	switch {
	case err == nil,
		errors.Is(err, domain.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, domain.ErrCapabilityUnavailable):
		return ""
	case errors.Is(err, domain.ErrBusy):
		return "still working on the last question"
	case errors.Is(err, domain.ErrNoReply):
		return "nothing to replay yet"
	case errors.Is(err, domain.ErrAlreadyListening):
		return "already listening"
	case errors.Is(err, domain.ErrNotListening):
		return "not listening"
	}
	return fmt.Sprintf("%s failed: %v", op, err)
}
