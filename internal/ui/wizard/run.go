package wizard

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/team-flex-credits/internal/ui/styles"
)

// ErrCancelled is returned when the user quits the wizard.
var ErrCancelled = errors.New("cancelled by user")

// IO overrides the terminal used by Run and Confirm. Zero values use
// stdin and stdout.
type IO struct {
	In  io.Reader
	Out io.Writer
}

func (t IO) programOptions() []tea.ProgramOption {
	var opts []tea.ProgramOption
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}
	return opts
}

// Run shows the wizard and returns the confirmed selection.
func Run(opts Options, term IO) (Selection, error) {
	final, err := tea.NewProgram(New(opts), term.programOptions()...).Run()
	if err != nil {
		return Selection{}, fmt.Errorf("wizard failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok || !m.Done() {
		return Selection{}, ErrCancelled
	}
	return m.Selection(), nil
}

// ConfirmModel asks a yes/no question.
type ConfirmModel struct {
	keymap   KeyMap
	question string
	answer   bool
	done     bool
}

// NewConfirm creates a yes/no prompt with a default answer.
func NewConfirm(question string, def bool) ConfirmModel {
	return ConfirmModel{keymap: DefaultKeyMap(), question: question, answer: def}
}

// Init implements tea.Model.
func (c ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (c ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}

	switch {
	case key.Matches(keyMsg, c.keymap.Yes):
		c.answer, c.done = true, true
	case key.Matches(keyMsg, c.keymap.No):
		c.answer, c.done = false, true
	case key.Matches(keyMsg, c.keymap.Enter):
		c.done = true
	case key.Matches(keyMsg, c.keymap.Back), key.Matches(keyMsg, c.keymap.Cancel):
		c.answer, c.done = false, true
	default:
		return c, nil
	}
	return c, tea.Quit
}

// View implements tea.Model.
func (c ConfirmModel) View() string {
	if c.done {
		return ""
	}
	hint := "y/N"
	if c.answer {
		hint = "Y/n"
	}
	return styles.SubTitleStyle.Render(c.question) + " " + styles.HelpStyle.Render("("+hint+")") + "\n"
}

// Answer returns the chosen answer.
func (c ConfirmModel) Answer() bool {
	return c.answer
}

// Confirm asks a yes/no question and returns the answer.
func Confirm(question string, def bool, term IO) (bool, error) {
	final, err := tea.NewProgram(NewConfirm(question, def), term.programOptions()...).Run()
	if err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	c, ok := final.(ConfirmModel)
	if !ok {
		return false, nil
	}
	return c.Answer(), nil
}
