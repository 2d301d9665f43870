package prompt

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/resolution"
	"github.com/Iron-Ham/lockstep/internal/styles"
)

// Model is the bubbletea model for the strategy picker.
type Model struct {
	conflict   filelock.ConflictDetection
	strategies []resolution.Strategy
	cursor     int
	chosen     resolution.Strategy
	quitting   bool
}

// NewModel creates a picker for conflict with the cursor on the first strategy.
func NewModel(conflict filelock.ConflictDetection) Model {
	return Model{
		conflict:   conflict,
		strategies: resolution.Strategies(),
	}
}

// Chosen returns the selected strategy, or "" if the user quit without choosing.
func (m Model) Chosen() resolution.Strategy {
	return m.chosen
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.strategies)-1 {
			m.cursor++
		}

	case "enter", " ":
		m.chosen = m.strategies[m.cursor]
		m.quitting = true
		return m, tea.Quit

	default:
		// Number keys jump straight to a strategy.
		if n := keyMsg.String(); len(n) == 1 && n[0] >= '1' && int(n[0]-'1') < len(m.strategies) {
			m.cursor = int(n[0] - '1')
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(styles.ConflictBanner.Render("FILE CONFLICT"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(m.summary()))
	b.WriteString("\n\n")

	for i, s := range m.strategies {
		cursor := "  "
		name := lipgloss.NewStyle().Foreground(styles.StrategyColor(string(s))).Render(string(s))
		if i == m.cursor {
			cursor = styles.ItemSelected.Render("> ")
			name = styles.ItemSelected.Render(string(s))
		}
		fmt.Fprintf(&b, "%s%d. %s  %s\n", cursor, i+1, name, styles.Muted.Render(s.Description()))
	}

	help := styles.HelpKey.Render("↑/↓") + " navigate  " +
		styles.HelpKey.Render("enter") + " choose  " +
		styles.HelpKey.Render("q") + " skip"
	b.WriteString(styles.HelpBar.Render(help))

	return styles.PromptBox.Render(b.String())
}

func (m Model) summary() string {
	blocker, ok := m.conflict.Blocker()
	if !ok {
		return fmt.Sprintf("%s cannot lock %s", m.conflict.Holder, m.conflict.Path)
	}
	return fmt.Sprintf("%s wants %s, which %s holds for %s (task %s)",
		m.conflict.Holder, m.conflict.Path, blocker.Holder, blocker.Operation, blocker.TaskID)
}
