package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/maximbilan/chatr/internal/navigation"
)

func enterDetail(m Model) (Model, tea.Cmd) {
	if _, ok := m.app.Selected(); !ok {
		return m.back()
	}
	return m, nil
}

func detailKey(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "c", "C", "enter":
		return m.navigate(navigation.Chat)
	case "e", "E":
		return m.navigate(navigation.CharacterEdit)
	case "esc", "backspace", "q":
		return m.back()
	}
	return m, nil
}

func detailView(m Model) string {
	c, ok := m.app.Selected()
	if !ok {
		return subtleStyle.Render("No character selected.")
	}

	var s strings.Builder
	avatar := "○"
	if c.Avatar != "" {
		avatar = "◉"
	}
	s.WriteString(avatar + " " + titleStyle.Render(c.Name) + "\n")
	if c.Subtitle != "" {
		s.WriteString(subtleStyle.Render(c.Subtitle) + "\n")
	}
	s.WriteString("\n")
	s.WriteString(labelStyle.Render("Setting") + "\n")
	setting := c.SystemPrompt
	if setting == "" {
		setting = subtleStyle.Render("(none)")
	}
	s.WriteString(boxStyle.Width(max(20, m.width-4)).Render(setting))
	s.WriteString("\n\n")
	s.WriteString(subtleStyle.Render(plural(len(c.History), "message")))
	s.WriteString("\n\n")
	s.WriteString(footerStyle.Render("c/Enter: Chat  e: Edit  Esc: Back"))
	return s.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
