package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/maximbilan/chatr/internal/character"
	"github.com/maximbilan/chatr/internal/navigation"
)

func enterHome(m Model) (Model, tea.Cmd) {
	all := m.app.Characters.All()
	if m.cursor >= len(all) {
		m.cursor = max(0, len(all)-1)
	}
	return m, nil
}

func homeKey(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	all := m.app.Characters.All()
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(all)-1 {
			m.cursor++
		}
	case "enter":
		if len(all) == 0 {
			return m, nil
		}
		if err := m.app.Select(all[m.cursor].ID); err != nil {
			m.error = err.Error()
			return m, nil
		}
		return m.navigate(navigation.CharacterDetail)
	case "n", "N":
		c, err := m.app.Characters.Create(context.Background(), character.Draft{})
		if err != nil {
			m.error = err.Error()
			return m, nil
		}
		m.app.Select(c.ID)
		m.cursor = len(all)
		return m.navigate(navigation.CharacterEdit)
	case "s", "S":
		return m.navigate(navigation.APISettings)
	case "m", "M":
		return m.navigate(navigation.Dashboard)
	case "q", "Q":
		return m, tea.Quit
	}
	return m, nil
}

func homeView(m Model) string {
	all := m.app.Characters.All()
	var s strings.Builder
	if len(all) == 0 {
		s.WriteString(subtleStyle.Render("No characters yet. Press n to add one."))
		s.WriteString("\n")
	}
	for i, c := range all {
		marker := "  "
		name := c.Name
		if i == m.cursor {
			marker = cursorStyle.Render("▸ ")
			name = cursorStyle.Render(name)
		}
		s.WriteString(fmt.Sprintf("%s%s  %s  %s\n",
			marker, name,
			subtleStyle.Render(c.Subtitle),
			subtleStyle.Render(fmt.Sprintf("💬 %d", len(c.History)))))
	}
	s.WriteString("\n")
	s.WriteString(footerStyle.Render("↑/↓: Move  Enter: Open  n: New  m: Dashboard  s: API Settings  q: Quit"))
	return s.String()
}
