package ui

import (
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestConfirmModelSubmitsOnSingleKey(t *testing.T) {
	ti := textinput.New()
	ti.Focus()
	m := inputModel{textInput: ti, prompt: "stop web-1?", single: true}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	fm := next.(inputModel)
	assert.True(t, fm.complete)
	assert.Equal(t, "y", fm.textInput.Value())
	assert.NotNil(t, cmd)
}

func TestInputModelEscCancels(t *testing.T) {
	ti := textinput.New()
	ti.Focus()
	m := inputModel{textInput: ti, prompt: "API key"}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	fm := next.(inputModel)
	assert.False(t, fm.complete, "only single mode submits on y")

	next, _ = fm.Update(tea.KeyMsg{Type: tea.KeyEsc})
	fm = next.(inputModel)
	assert.True(t, fm.quitting)
	assert.Contains(t, fm.View(), "Cancelled.")
}
