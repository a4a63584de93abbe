package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// GetInput prompts for one line on stderr. Secrets are masked when password is set.
func GetInput(prompt string, placeholder string, password bool) (string, error) {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 48

	if password {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}

	m, err := runInput(inputModel{textInput: ti, prompt: prompt})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(m.textInput.Value()), nil
}

// Confirm asks a y/n question. Anything but y or yes is a no.
func Confirm(prompt string) (bool, error) {
	ti := textinput.New()
	ti.Placeholder = "y/N"
	ti.Focus()
	ti.CharLimit = 3
	ti.Width = 4

	m, err := runInput(inputModel{textInput: ti, prompt: prompt, single: true})
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(m.textInput.Value())) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func runInput(m inputModel) (inputModel, error) {
	// stderr keeps stdout clean for piping
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	final, err := p.Run()
	if err != nil {
		return m, err
	}
	fm, ok := final.(inputModel)
	if !ok || !fm.complete {
		return fm, ErrCancelled
	}
	return fm, nil
}

type inputModel struct {
	textInput textinput.Model
	prompt    string
	// single submits on y or n without Enter.
	single   bool
	complete bool
	quitting bool
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.complete = true
			return m, tea.Quit
		}
		if m.single {
			switch msg.String() {
			case "y", "Y", "n", "N":
				m.textInput.SetValue(msg.String())
				m.complete = true
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.complete {
		return ""
	}
	if m.quitting {
		return quitTextStyle.Render("Cancelled.")
	}
	if m.single {
		return fmt.Sprintf("%s %s\n", titleStyle.UnsetMarginBottom().Render(m.prompt), m.textInput.View())
	}
	return fmt.Sprintf(
		"\n%s\n\n%s\n\n",
		titleStyle.Render(m.prompt),
		m.textInput.View(),
	)
}
