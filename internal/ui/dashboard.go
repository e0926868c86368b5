package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/navigation"
)

func enterDashboard(m Model) (Model, tea.Cmd) {
	clear(m.marked)
	m.confirmDelete = false
	if n := len(m.app.Characters.All()); m.dashCursor >= n {
		m.dashCursor = max(0, n-1)
	}
	return m, nil
}

func dashboardKey(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	all := m.app.Characters.All()

	if m.confirmDelete {
		m.confirmDelete = false
		if msg.String() != "y" && msg.String() != "Y" {
			m.status = "Delete cancelled"
			return m, nil
		}
		ids := make([]string, 0, len(m.marked))
		for id := range m.marked {
			m.app.Session.Cancel(id)
			ids = append(ids, id)
		}
		n, err := m.app.Characters.Delete(context.Background(), ids...)
		if err != nil {
			m.error = err.Error()
			return m, nil
		}
		clear(m.marked)
		m.status = fmt.Sprintf("✓ Deleted %s", plural(n, "character"))
		return enterDashboard(m)
	}

	switch msg.String() {
	case "up", "k":
		if m.dashCursor > 0 {
			m.dashCursor--
		}
	case "down", "j":
		if m.dashCursor < len(all)-1 {
			m.dashCursor++
		}
	case " ", "space", "x":
		if len(all) > 0 {
			id := all[m.dashCursor].ID
			if m.marked[id] {
				delete(m.marked, id)
			} else {
				m.marked[id] = true
			}
		}
	case "D":
		if len(m.marked) == 0 {
			m.status = "Mark characters with Space first"
			return m, nil
		}
		m.confirmDelete = true
		m.status = fmt.Sprintf("Delete %s and their histories? (y/n)", plural(len(m.marked), "character"))
	case "s", "S":
		return m.navigate(navigation.APISettings)
	case "esc", "backspace", "q":
		return m.back()
	}
	return m, nil
}

func dashboardView(m Model) string {
	all := m.app.Characters.All()
	var messages int
	for _, c := range all {
		messages += len(c.History)
	}

	cfg, err := m.app.APIConfig.Load(context.Background())
	apiLine := "not configured"
	if err == nil && cfg.Model != "" {
		apiLine = fmt.Sprintf("%s · %s", cfg.ActiveProvider(), cfg.Model)
	}
	if err == nil && !apiconfig.IsComplete(cfg) {
		apiLine += subtleStyle.Render("  (incomplete)")
	}

	var s strings.Builder
	s.WriteString(labelStyle.Render("Overview") + "\n")
	s.WriteString(fmt.Sprintf("Characters: %d\nMessages:   %d\nAPI:        %s\n\n", len(all), messages, apiLine))

	s.WriteString(labelStyle.Render("Manage characters") + "\n")
	for i, c := range all {
		box := "[ ]"
		if m.marked[c.ID] {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s  %s", box, c.Name, subtleStyle.Render(plural(len(c.History), "message")))
		if i == m.dashCursor {
			line = cursorStyle.Render("▸ ") + line
		} else {
			line = "  " + line
		}
		s.WriteString(line + "\n")
	}
	s.WriteString("\n")
	s.WriteString(footerStyle.Render("Space: Mark  D: Delete marked  s: API Settings  Esc: Back"))
	return s.String()
}
