package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/validation"
)

const (
	fieldModel = iota
	fieldBaseURL
	fieldAPIKey
)

func enterSettings(m Model) (Model, tea.Cmd) {
	cfg, err := m.app.APIConfig.Load(context.Background())
	if err != nil {
		m.error = err.Error()
	}
	m.draft = cfg
	m.draft.Provider = cfg.ActiveProvider()
	m.models = nil
	m.modelCursor = 0
	m.modelsLoading = false
	m.settingsFocus = fieldModel
	m = m.loadDraftInputs()
	return m.focusSettingsField()
}

// loadDraftInputs fills the inputs from the draft for its provider.
func (m Model) loadDraftInputs() Model {
	model := m.draft.Model
	if model == "" {
		for id := range apiconfig.DefaultModels[m.draft.Provider] {
			model = id
		}
	}
	m.modelInput.SetValue(model)
	if m.draft.Provider == apiconfig.Gemini {
		m.baseURLInput.SetValue(apiconfig.GeminiBaseURL)
		m.keyInput.SetValue(m.draft.GeminiAPIKey)
	} else {
		m.baseURLInput.SetValue(m.draft.OpenAIBaseURL)
		m.keyInput.SetValue(m.draft.OpenAIAPIKey)
	}
	return m
}

// storeDraftInputs copies the inputs back into the draft. Only the active
// provider's fields are touched.
func (m Model) storeDraftInputs() Model {
	m.draft.Model = strings.TrimSpace(m.modelInput.Value())
	if m.draft.Provider == apiconfig.Gemini {
		m.draft.GeminiAPIKey = strings.TrimSpace(m.keyInput.Value())
	} else {
		m.draft.OpenAIBaseURL = strings.TrimSpace(m.baseURLInput.Value())
		m.draft.OpenAIAPIKey = strings.TrimSpace(m.keyInput.Value())
	}
	return m
}

func (m Model) settingsFields() []int {
	if m.draft.Provider == apiconfig.Gemini {
		return []int{fieldModel, fieldAPIKey}
	}
	return []int{fieldModel, fieldBaseURL, fieldAPIKey}
}

func (m Model) focusSettingsField() (Model, tea.Cmd) {
	m.modelInput.Blur()
	m.baseURLInput.Blur()
	m.keyInput.Blur()
	var cmd tea.Cmd
	switch m.settingsFocus {
	case fieldModel:
		cmd = m.modelInput.Focus()
	case fieldBaseURL:
		cmd = m.baseURLInput.Focus()
	case fieldAPIKey:
		cmd = m.keyInput.Focus()
	}
	return m, cmd
}

func (m Model) cycleSettingsFocus(step int) (Model, tea.Cmd) {
	fields := m.settingsFields()
	pos := 0
	for i, f := range fields {
		if f == m.settingsFocus {
			pos = i
		}
	}
	pos = (pos + step + len(fields)) % len(fields)
	m.settingsFocus = fields[pos]
	return m.focusSettingsField()
}

func settingsKey(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.back()
	case "tab":
		return m.cycleSettingsFocus(1)
	case "shift+tab":
		return m.cycleSettingsFocus(-1)
	case "ctrl+t":
		m = m.storeDraftInputs()
		if m.draft.Provider == apiconfig.Gemini {
			m.draft.Provider = apiconfig.OpenAI
		} else {
			m.draft.Provider = apiconfig.Gemini
		}
		m.draft.Model = ""
		m.models = nil
		m = m.loadDraftInputs()
		m.settingsFocus = fieldModel
		return m.focusSettingsField()
	case "ctrl+f":
		m = m.storeDraftInputs()
		m.modelsLoading = true
		m.error = ""
		m.status = "[●] Fetching models..."
		return m, m.fetchModels(m.draft)
	case "ctrl+n", "ctrl+p":
		if len(m.models) == 0 {
			return m, nil
		}
		if msg.String() == "ctrl+n" {
			m.modelCursor = (m.modelCursor + 1) % len(m.models)
		} else {
			m.modelCursor = (m.modelCursor - 1 + len(m.models)) % len(m.models)
		}
		m.modelInput.SetValue(m.models[m.modelCursor])
		return m, nil
	case "ctrl+s", "enter":
		return m.saveSettings()
	}

	var cmd tea.Cmd
	switch m.settingsFocus {
	case fieldModel:
		m.modelInput, cmd = m.modelInput.Update(msg)
	case fieldBaseURL:
		m.baseURLInput, cmd = m.baseURLInput.Update(msg)
	case fieldAPIKey:
		m.keyInput, cmd = m.keyInput.Update(msg)
	}
	return m, cmd
}

func (m Model) fetchModels(cfg apiconfig.Config) tea.Cmd {
	lister := m.app.Models
	return func() tea.Msg {
		models, err := lister.List(context.Background(), cfg, true)
		return modelsLoadedMsg{provider: cfg.ActiveProvider(), models: models, err: err}
	}
}

func (m Model) saveSettings() (Model, tea.Cmd) {
	m = m.storeDraftInputs()
	if m.draft.Provider == apiconfig.OpenAI && m.draft.OpenAIBaseURL != "" {
		if err := validation.ValidateBaseURL(m.draft.OpenAIBaseURL); err != nil {
			m.error = err.Error()
			return m, nil
		}
	}
	if m.draft.Model != "" {
		if err := validation.ValidateModelID(m.draft.Model, m.draft.Provider == apiconfig.Gemini); err != nil {
			m.error = err.Error()
			return m, nil
		}
	}

	if err := m.app.APIConfig.Save(context.Background(), m.draft); err != nil {
		m.error = err.Error()
		return m, nil
	}
	m.status = "✓ API settings saved"
	return m.back()
}

func settingsView(m Model) string {
	var s strings.Builder

	openai, gemini := "  OpenAI  ", "  Gemini  "
	if m.draft.Provider == apiconfig.Gemini {
		gemini = cursorStyle.Render("[ Gemini ]")
	} else {
		openai = cursorStyle.Render("[ OpenAI ]")
	}
	s.WriteString(labelStyle.Render("Provider") + "  " + openai + " " + gemini + "\n\n")

	field := func(label string, id int, view string) {
		l := labelStyle.Render(label)
		if m.settingsFocus == id {
			l = cursorStyle.Render("▸ " + label)
		}
		s.WriteString(l + "\n" + view + "\n\n")
	}
	field("Model", fieldModel, m.modelInput.View())
	if m.draft.Provider == apiconfig.Gemini {
		s.WriteString(labelStyle.Render("Endpoint") + "\n" + subtleStyle.Render(apiconfig.GeminiBaseURL) + "\n\n")
	} else {
		field("Base URL", fieldBaseURL, m.baseURLInput.View())
	}
	field("API Key", fieldAPIKey, m.keyInput.View())

	if m.modelsLoading {
		s.WriteString(thinkingStyle.Render("Fetching models...") + "\n\n")
	} else if len(m.models) > 0 {
		s.WriteString(labelStyle.Render("Available models") + "\n")
		start := max(0, m.modelCursor-3)
		end := min(len(m.models), start+7)
		for i := start; i < end; i++ {
			if i == m.modelCursor {
				s.WriteString(cursorStyle.Render("▸ "+m.models[i]) + "\n")
			} else {
				s.WriteString("  " + subtleStyle.Render(m.models[i]) + "\n")
			}
		}
		s.WriteString("\n")
	}

	s.WriteString(footerStyle.Render("Tab: Next field  Ctrl+T: Switch provider  Ctrl+F: Fetch models  Ctrl+S: Save  Esc: Back"))
	return s.String()
}
