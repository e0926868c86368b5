package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/character"
	"github.com/maximbilan/chatr/internal/clipboard"
	"github.com/maximbilan/chatr/internal/navigation"
	"github.com/maximbilan/chatr/internal/render"
	"github.com/maximbilan/chatr/internal/session"
)

func enterChat(m Model) (Model, tea.Cmd) {
	if _, ok := m.app.Selected(); !ok {
		return m.back()
	}
	m.confirmClear = false
	m.codeBlock = 0
	m = m.refreshChat()
	focus := m.chatInput.Focus()
	return m, tea.Batch(focus, textarea.Blink)
}

func chatKey(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	c, ok := m.app.Selected()
	if !ok {
		return m.back()
	}

	if m.confirmClear {
		m.confirmClear = false
		if msg.String() == "y" || msg.String() == "Y" {
			m.status = "Clearing history..."
			return m, clearHistory(m.app.Session, c.ID)
		}
		m.status = "Clear cancelled"
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.chatInput.Blur()
		m.app.Session.Cancel(c.ID)
		return m.back()
	case "enter":
		return m.submitChat(c)
	case "ctrl+l":
		m.confirmClear = true
		m.status = "Clear all messages with " + c.Name + "? (y/n)"
		return m, nil
	case "ctrl+y":
		reply := lastReply(c)
		if reply == "" {
			m.status = "Nothing to copy"
			return m, nil
		}
		if err := clipboard.Copy(reply); err != nil {
			m.error = fmt.Sprintf("Failed to copy: %v", err)
			return m, nil
		}
		m.status = "✓ Reply copied to clipboard"
		return m, nil
	case "ctrl+b":
		n, err := clipboard.CopyCodeBlock(lastReply(c), m.codeBlock)
		if err != nil {
			m.error = err.Error()
			m.codeBlock = 0
			return m, nil
		}
		m.status = fmt.Sprintf("✓ Code block %d/%d copied", m.codeBlock+1, n)
		m.codeBlock = (m.codeBlock + 1) % n
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m Model) submitChat(c character.Character) (Model, tea.Cmd) {
	text := strings.TrimSpace(m.chatInput.Value())
	if text == "" {
		return m, nil
	}
	if st := m.app.Session.State(c.ID); st != session.Idle {
		m.status = "Wait for the current reply to finish"
		return m, nil
	}

	cfg, err := m.app.APIConfig.Load(context.Background())
	if err != nil {
		m.error = err.Error()
		return m, nil
	}
	if !apiconfig.IsComplete(cfg) {
		m.status = "Complete the API settings before chatting"
		return m.navigate(navigation.APISettings)
	}

	m.chatInput.Reset()
	m.codeBlock = 0
	delete(m.turnErrors, c.ID)
	m.streaming[c.ID] = ""
	m.status = "[●] Waiting for reply..."
	return m.refreshChat(), m.sendTurn(c.ID, text)
}

func lastReply(c character.Character) string {
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Role == character.RoleAssistant {
			return c.History[i].Content
		}
	}
	return ""
}

func (m Model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	return m.renderer.Markdown(text)
}

// refreshChat rebuilds the transcript of the selected character.
func (m Model) refreshChat() Model {
	c, ok := m.app.Selected()
	if !ok {
		return m
	}

	var s strings.Builder
	if len(c.History) == 0 {
		s.WriteString(subtleStyle.Render("Say hello to " + c.Name + "."))
		s.WriteString("\n")
	}
	for _, msg := range c.History {
		switch msg.Role {
		case character.RoleUser:
			s.WriteString(userStyle.Render("You") + "\n")
			s.WriteString(msg.Content + "\n\n")
		case character.RoleAssistant:
			s.WriteString(assistantStyle.Render(c.Name) + "\n")
			s.WriteString(m.markdown(msg.Content) + "\n\n")
		}
	}

	if partial, streaming := m.streaming[c.ID]; streaming {
		s.WriteString(assistantStyle.Render(c.Name) + "\n")
		if partial == "" {
			s.WriteString(thinkingStyle.Render("Thinking..."))
		} else {
			s.WriteString(m.markdown(partial) + thinkingStyle.Render(" ▍"))
		}
		s.WriteString("\n")
	} else if failure, failed := m.turnErrors[c.ID]; failed {
		s.WriteString(assistantStyle.Render(c.Name) + "\n")
		s.WriteString(errorStyle.Render("Sorry, something went wrong: " + failure))
		s.WriteString("\n")
	}

	m.viewport.SetContent(s.String())
	m.viewport.GotoBottom()
	return m
}

func chatView(m Model) string {
	c, ok := m.app.Selected()
	if !ok {
		return subtleStyle.Render("No character selected.")
	}

	var s strings.Builder
	title := titleStyle.Render(c.Name)
	if st := m.app.Session.State(c.ID); st != session.Idle {
		title += " " + thinkingStyle.Render("["+st.String()+"]")
	}
	s.WriteString(title + "\n")
	s.WriteString(m.viewport.View())
	s.WriteString("\n")
	s.WriteString(m.chatInput.View())
	s.WriteString("\n")

	help := "Enter: Send  Ctrl+Y: Copy reply  Ctrl+L: Clear  Esc: Back"
	if blocks := render.CodeBlocks(lastReply(c)); len(blocks) > 0 {
		help = fmt.Sprintf("Enter: Send  Ctrl+Y: Copy reply  Ctrl+B: Copy code (%d)  Ctrl+L: Clear  Esc: Back", len(blocks))
	}
	s.WriteString(footerStyle.Render(help))
	return s.String()
}

// clearHistory runs off the update loop: it waits for an in-flight turn to
// end, and that turn still delivers its events through the program.
func clearHistory(s *session.Controller, characterID string) tea.Cmd {
	return func() tea.Msg {
		return historyClearedMsg{
			characterID: characterID,
			err:         s.ClearHistory(context.Background(), characterID),
		}
	}
}

func (m Model) handleHistoryCleared(msg historyClearedMsg) Model {
	if msg.err != nil {
		m.error = msg.err.Error()
		return m
	}
	delete(m.turnErrors, msg.characterID)
	delete(m.streaming, msg.characterID)
	m.status = "✓ History cleared"
	if m.isCurrentChat(msg.characterID) {
		return m.refreshChat()
	}
	return m
}
