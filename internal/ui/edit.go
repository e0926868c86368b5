package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/maximbilan/chatr/internal/avatar"
	"github.com/maximbilan/chatr/internal/character"
	"github.com/maximbilan/chatr/internal/navigation"
	"github.com/maximbilan/chatr/internal/validation"
)

const (
	focusName = iota
	focusSubtitle
	focusAvatar
	focusPrompt
	editFields
)

func enterEdit(m Model) (Model, tea.Cmd) {
	c, ok := m.app.Selected()
	if !ok {
		return m.back()
	}
	m.editID = c.ID
	m.nameInput.SetValue(c.Name)
	m.subtitleInput.SetValue(c.Subtitle)
	m.avatarInput.SetValue("")
	m.promptInput.SetValue(c.SystemPrompt)
	m.showDiff = false
	m.editFocus = focusName
	return m.focusEditField()
}

func (m Model) focusEditField() (Model, tea.Cmd) {
	m.nameInput.Blur()
	m.subtitleInput.Blur()
	m.avatarInput.Blur()
	m.promptInput.Blur()

	var cmd tea.Cmd
	switch m.editFocus {
	case focusName:
		cmd = m.nameInput.Focus()
	case focusSubtitle:
		cmd = m.subtitleInput.Focus()
	case focusAvatar:
		cmd = m.avatarInput.Focus()
	case focusPrompt:
		focus := m.promptInput.Focus()
		cmd = tea.Batch(focus, textarea.Blink)
	}
	return m, cmd
}

func editKey(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.back()
	case "tab":
		m.editFocus = (m.editFocus + 1) % editFields
		return m.focusEditField()
	case "shift+tab":
		m.editFocus = (m.editFocus + editFields - 1) % editFields
		return m.focusEditField()
	case "ctrl+d":
		m.showDiff = !m.showDiff
		return m, nil
	case "ctrl+s":
		return m.saveCharacter()
	}

	var cmd tea.Cmd
	switch m.editFocus {
	case focusName:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case focusSubtitle:
		m.subtitleInput, cmd = m.subtitleInput.Update(msg)
	case focusAvatar:
		m.avatarInput, cmd = m.avatarInput.Update(msg)
	case focusPrompt:
		m.promptInput, cmd = m.promptInput.Update(msg)
	}
	return m, cmd
}

func (m Model) saveCharacter() (Model, tea.Cmd) {
	name := strings.TrimSpace(m.nameInput.Value())
	subtitle := strings.TrimSpace(m.subtitleInput.Value())
	prompt := strings.TrimSpace(m.promptInput.Value())
	if err := validation.ValidateName(name); err != nil {
		m.error = err.Error()
		return m, nil
	}

	patch := character.Patch{Name: &name, Subtitle: &subtitle, SystemPrompt: &prompt}
	if path := strings.TrimSpace(m.avatarInput.Value()); path != "" {
		encoded, err := avatar.Encode(path)
		if err != nil {
			m.error = err.Error()
			return m, nil
		}
		patch.Avatar = &encoded
	}

	if _, err := m.app.Characters.Update(context.Background(), m.editID, patch); err != nil {
		m.error = err.Error()
		return m, nil
	}
	m.status = "✓ Character saved"
	return m.navigate(navigation.CharacterDetail)
}

func editView(m Model) string {
	var s strings.Builder
	field := func(label string, focused bool, view string) {
		l := labelStyle.Render(label)
		if focused {
			l = cursorStyle.Render("▸ " + label)
		}
		s.WriteString(l + "\n" + view + "\n\n")
	}

	field("Name", m.editFocus == focusName, m.nameInput.View())
	field("Subtitle", m.editFocus == focusSubtitle, m.subtitleInput.View())
	field("Avatar", m.editFocus == focusAvatar, m.avatarInput.View())

	saved := ""
	if c, ok := m.app.Characters.Get(m.editID); ok {
		saved = c.SystemPrompt
	}
	edited := strings.TrimSpace(m.promptInput.Value())
	label := "Setting  " + subtleStyle.Render(diffSummary(saved, edited))
	if m.showDiff {
		field(label, m.editFocus == focusPrompt, boxStyle.Width(max(20, m.width-4)).Render(renderPromptDiff(saved, edited)))
	} else {
		field(label, m.editFocus == focusPrompt, m.promptInput.View())
	}

	s.WriteString(footerStyle.Render("Tab: Next field  Ctrl+S: Save  Ctrl+D: Toggle diff  Esc: Cancel"))
	return s.String()
}
