package prompt

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/resolution"
)

func testConflict() filelock.ConflictDetection {
	return filelock.ConflictDetection{
		HasConflict: true,
		Path:        "src/x.go",
		Holder:      "agent-b",
		Conflicts: []filelock.FileLock{{
			Path:      "src/x.go",
			Holder:    "agent-a",
			TaskID:    "task-1",
			Operation: filelock.OpWrite,
		}},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func TestModelNavigation(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
		want resolution.Strategy
	}{
		{"enter on first", []tea.KeyMsg{{Type: tea.KeyEnter}}, resolution.Sequential},
		{"down once", []tea.KeyMsg{{Type: tea.KeyDown}, {Type: tea.KeyEnter}}, resolution.Merge},
		{"vim keys", []tea.KeyMsg{runes("j"), runes("j"), runes("k"), {Type: tea.KeyEnter}}, resolution.Merge},
		{"clamped at bottom", []tea.KeyMsg{runes("j"), runes("j"), runes("j"), runes("j"), runes("j"), {Type: tea.KeyEnter}}, resolution.Cancel},
		{"clamped at top", []tea.KeyMsg{{Type: tea.KeyUp}, {Type: tea.KeyEnter}}, resolution.Sequential},
		{"number jump", []tea.KeyMsg{runes("3"), {Type: tea.KeyEnter}}, resolution.Manual},
		{"out of range number ignored", []tea.KeyMsg{runes("9"), {Type: tea.KeyEnter}}, resolution.Sequential},
		{"space selects", []tea.KeyMsg{runes("4"), {Type: tea.KeySpace}}, resolution.Cancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, cmd := press(NewModel(testConflict()), tt.keys...)
			if got := m.Chosen(); got != tt.want {
				t.Errorf("Chosen() = %q, want %q", got, tt.want)
			}
			if cmd == nil {
				t.Error("selection should quit the program")
			}
		})
	}
}

func TestModelQuitDeclines(t *testing.T) {
	for _, key := range []tea.KeyMsg{runes("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		t.Run(key.String(), func(t *testing.T) {
			m, cmd := press(NewModel(testConflict()), runes("2"), key)
			if m.Chosen() != "" {
				t.Errorf("Chosen() = %q, want empty", m.Chosen())
			}
			if cmd == nil {
				t.Error("quit key should return tea.Quit")
			}
			if m.View() != "" {
				t.Error("View() should be empty after quitting")
			}
		})
	}
}

func TestModelIgnoresNonKeyMessages(t *testing.T) {
	m := NewModel(testConflict())
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	if cmd != nil {
		t.Error("expected no command for a window size message")
	}
	if next.(Model).cursor != 0 {
		t.Error("cursor moved on a non-key message")
	}
}

func TestModelView(t *testing.T) {
	view := NewModel(testConflict()).View()

	for _, want := range []string{"FILE CONFLICT", "agent-b", "agent-a", "src/x.go", "task-1"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
	for _, s := range resolution.Strategies() {
		if !strings.Contains(view, string(s)) {
			t.Errorf("View() missing strategy %q", s)
		}
	}
}

func TestModelViewWithoutBlocker(t *testing.T) {
	view := NewModel(filelock.ConflictDetection{Path: "a.go", Holder: "agent-b"}).View()
	if !strings.Contains(view, "agent-b cannot lock a.go") {
		t.Errorf("unexpected summary in view:\n%s", view)
	}
}

func TestChooserDeclinesWithoutTerminal(t *testing.T) {
	c := &TerminalChooser{
		In:  strings.NewReader("\r"),
		Out: &bytes.Buffer{},
	}

	got, err := c.ChooseStrategy(context.Background(), testConflict())
	if err != nil {
		t.Fatalf("ChooseStrategy() error = %v", err)
	}
	if got != "" {
		t.Errorf("ChooseStrategy() = %q, want empty when input is not a terminal", got)
	}
}

func TestChooserRunsProgram(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	c := &TerminalChooser{
		In:         strings.NewReader("j\r"),
		Out:        &out,
		IsTerminal: func() bool { return true },
	}

	got, err := c.ChooseStrategy(ctx, testConflict())
	if err != nil {
		t.Fatalf("ChooseStrategy() error = %v", err)
	}
	if got != resolution.Merge {
		t.Errorf("ChooseStrategy() = %q, want %q", got, resolution.Merge)
	}
}
