package prompt

import (
	"context"
	"errors"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/Iron-Ham/lockstep/internal/filelock"
	"github.com/Iron-Ham/lockstep/internal/resolution"
)

// TerminalChooser prompts on a terminal for the strategy to apply to a
// conflict. The zero value reads from stdin and draws on stderr so that a
// command's stdout stays machine readable.
type TerminalChooser struct {
	In  io.Reader
	Out io.Writer

	// IsTerminal reports whether prompting is possible. Nil checks that In is
	// a terminal file descriptor.
	IsTerminal func() bool
}

var _ resolution.Chooser = (*TerminalChooser)(nil)

// ChooseStrategy implements resolution.Chooser. It returns "" with a nil error
// when there is no terminal or the user quits without choosing.
func (c *TerminalChooser) ChooseStrategy(ctx context.Context, conflict filelock.ConflictDetection) (resolution.Strategy, error) {
	in := c.input()
	if !c.interactive(in) {
		return "", nil
	}

	p := tea.NewProgram(NewModel(conflict),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(c.output()),
	)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrInterrupted) {
			return "", nil
		}
		return "", err
	}

	m, ok := final.(Model)
	if !ok {
		return "", nil
	}
	return m.Chosen(), nil
}

func (c *TerminalChooser) input() io.Reader {
	if c.In != nil {
		return c.In
	}
	return os.Stdin
}

func (c *TerminalChooser) output() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stderr
}

func (c *TerminalChooser) interactive(in io.Reader) bool {
	if c.IsTerminal != nil {
		return c.IsTerminal()
	}
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
