package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hammamikhairi/voxturn/internal/domain"
)

type fakeControls struct {
	mu    sync.Mutex
	calls []string
	snap  domain.Snapshot
	err   error
}

func (f *fakeControls) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeControls) StartCapture(context.Context) error { return f.record("start") }
func (f *fakeControls) StopCapture(context.Context) error  { return f.record("stop") }
func (f *fakeControls) SubmitTranscript(_ context.Context, text string) error {
	return f.record("submit:" + text)
}
func (f *fakeControls) StopSpeaking(context.Context) error { return f.record("hush") }
func (f *fakeControls) AskAgain(context.Context) error     { return f.record("again") }
func (f *fakeControls) Dismiss(context.Context) error      { return f.record("dismiss") }
func (f *fakeControls) Replay(context.Context) error       { return f.record("replay") }
func (f *fakeControls) ClearHistory(context.Context) error { return f.record("clear") }
func (f *fakeControls) Snapshot() domain.Snapshot          { return f.snap }

func (f *fakeControls) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func newTestModel(f *fakeControls) model {
	return model{
		ctx:   context.Background(),
		ctrl:  f,
		input: textinput.New(),
		snap:  f.snap,
	}
}

// press sends a key through Update and runs the resulting command.
func press(t *testing.T, m model, k tea.KeyType) (model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	var msg tea.Msg
	if cmd != nil {
		msg = cmd()
	}
	return next.(model), msg
}

func TestKeyBindings(t *testing.T) {
	tests := []struct {
		name string
		snap domain.Snapshot
		key  tea.KeyType
		want string
	}{
		{"talk", domain.Snapshot{State: domain.TurnIdle}, tea.KeyCtrlT, "start"},
		{"stop talking", domain.Snapshot{State: domain.TurnListening, Capturing: true}, tea.KeyCtrlT, "stop"},
		{"hush", domain.Snapshot{Speaking: true}, tea.KeyCtrlX, "hush"},
		{"ask again", domain.Snapshot{State: domain.TurnResult}, tea.KeyCtrlN, "again"},
		{"replay", domain.Snapshot{State: domain.TurnResult}, tea.KeyCtrlP, "replay"},
		{"forget", domain.Snapshot{}, tea.KeyCtrlL, "clear"},
		{"dismiss", domain.Snapshot{State: domain.TurnProcessing}, tea.KeyEsc, "dismiss"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeControls{snap: tt.snap}
			press(t, newTestModel(f), tt.key)
			if got := f.last(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestEnterSubmitsTypedText(t *testing.T) {
	f := &fakeControls{}
	m := newTestModel(f)
	m.input.SetValue("  what time is it  ")

	m, _ = press(t, m, tea.KeyEnter)
	if got := f.last(); got != "submit:what time is it" {
		t.Fatalf("unexpected call %q", got)
	}
	if m.input.Value() != "" {
		t.Fatalf("expected input to be reset, got %q", m.input.Value())
	}

	// Blank input sends nothing.
	press(t, m, tea.KeyEnter)
	if len(f.calls) != 1 {
		t.Fatalf("expected no extra call, got %v", f.calls)
	}
}

func TestCommandErrorsBecomeMessages(t *testing.T) {
	f := &fakeControls{snap: domain.Snapshot{State: domain.TurnResult}, err: domain.ErrNoReply}
	_, msg := press(t, newTestModel(f), tea.KeyCtrlP)

	em, ok := msg.(cmdErrMsg)
	if !ok {
		t.Fatalf("expected cmdErrMsg, got %T", msg)
	}
	if !errors.Is(em.err, domain.ErrNoReply) || em.op != "replay" {
		t.Fatalf("unexpected message %+v", em)
	}
}

func TestCtrlCQuits(t *testing.T) {
	_, cmd := newTestModel(&fakeControls{}).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected QuitMsg")
	}
}

func TestDraftFillsInput(t *testing.T) {
	f := &fakeControls{snap: domain.Snapshot{State: domain.TurnListening, Capturing: true, Turn: 1}}
	m := newTestModel(f)

	next, _ := m.Update(snapshotMsg{State: domain.TurnIdle, Turn: 1, Transcript: "turn on the lights"})
	m = next.(model)
	if m.input.Value() != "turn on the lights" {
		t.Fatalf("expected draft in input, got %q", m.input.Value())
	}
	if m.snap.State != domain.TurnIdle {
		t.Fatalf("expected snapshot to be stored, got %s", m.snap.State)
	}
}

func TestDraftText(t *testing.T) {
	tests := []struct {
		name       string
		prev, next domain.Snapshot
		want       string
	}{
		{
			"capture ended into idle",
			domain.Snapshot{State: domain.TurnListening},
			domain.Snapshot{State: domain.TurnIdle, Transcript: "hi"},
			"hi",
		},
		{
			"auto submitted",
			domain.Snapshot{State: domain.TurnListening},
			domain.Snapshot{State: domain.TurnProcessing, Transcript: "hi"},
			"",
		},
		{
			"idle without transcript",
			domain.Snapshot{State: domain.TurnResult, Transcript: "old"},
			domain.Snapshot{State: domain.TurnIdle},
			"",
		},
		{
			"unchanged draft",
			domain.Snapshot{State: domain.TurnIdle, Transcript: "hi"},
			domain.Snapshot{State: domain.TurnIdle, Transcript: "hi", Speaking: true},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := draftText(tt.prev, tt.next); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTransitionLine(t *testing.T) {
	idle := domain.Snapshot{State: domain.TurnIdle, Turn: 1}
	processing := domain.Snapshot{State: domain.TurnProcessing, Turn: 2, Transcript: "hello"}
	failed := domain.Snapshot{State: domain.TurnResult, Turn: 2, Transcript: "hello",
		Error: "Failed to get a response.", ErrorKind: domain.ErrorGeneration}

	if got := transitionLine(idle, processing); !strings.Contains(got, "hello") {
		t.Fatalf("expected transcript echo, got %q", got)
	}
	if got := transitionLine(processing, processing); got != "" {
		t.Fatalf("expected no line for repeated snapshot, got %q", got)
	}
	if got := transitionLine(processing, failed); !strings.Contains(got, "Failed to get a response.") {
		t.Fatalf("expected error line, got %q", got)
	}
	if got := transitionLine(failed, failed); got != "" {
		t.Fatalf("expected error to print once, got %q", got)
	}
}

func TestDescribeErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{domain.ErrStopped, ""},
		{fmt.Errorf("turn: %w", domain.ErrCapabilityUnavailable), ""},
		{domain.ErrBusy, "still working on the last question"},
		{domain.ErrNoReply, "nothing to replay yet"},
		{domain.ErrAlreadyListening, "already listening"},
		{errors.New("boom"), "listen failed: boom"},
	}
	for _, tt := range tests {
		if got := describeErr("listen", tt.err); got != tt.want {
			t.Errorf("describeErr(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestKeyHelp(t *testing.T) {
	got := keyHelp(domain.Snapshot{State: domain.TurnResult, Speaking: true})
	for _, want := range []string{"ctrl+t talk", "ctrl+x hush", "ctrl+p replay"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
	if got := keyHelp(domain.Snapshot{State: domain.TurnListening, Capturing: true}); !strings.Contains(got, "ctrl+t stop") {
		t.Errorf("expected stop hint while capturing, got %q", got)
	}
}

func TestCentre(t *testing.T) {
	got := centre([]string{"ab", "abcd"}, 10)
	if got[0] != "   ab" || got[1] != "   abcd" {
		t.Fatalf("unexpected padding: %q", got)
	}
	narrow := centre([]string{"abcd"}, 2)
	if narrow[0] != "abcd" {
		t.Fatalf("expected no padding on narrow terminal, got %q", narrow[0])
	}
}

func TestSinkDropsBeforeReady(t *testing.T) {
	u := NewUI(nil)
	// No program yet: must not block or panic.
	u.TurnChanged(domain.Snapshot{State: domain.TurnListening})
	u.ExchangeCompleted(domain.Exchange{Reply: "hi"})
}
