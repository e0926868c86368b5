package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/app"
	"github.com/maximbilan/chatr/internal/character"
	"github.com/maximbilan/chatr/internal/config"
	"github.com/maximbilan/chatr/internal/kv"
	"github.com/maximbilan/chatr/internal/navigation"
	"github.com/maximbilan/chatr/internal/provider"
	"github.com/maximbilan/chatr/internal/session"
)

func newTestModel(t *testing.T) (Model, *app.Context, *provider.Mock) {
	t.Helper()
	mock := provider.NewMock()
	cfg := &config.Config{DataDir: t.TempDir(), StoreBackend: kv.BackendFile}
	a, err := app.New(context.Background(), cfg, nil, app.WithStreamer(mock))
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return NewModel(a, nil), a, mock
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+t":
		return tea.KeyMsg{Type: tea.KeyCtrlT}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	tm, cmd := m.Update(msg)
	return tm.(Model), cmd
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		m, _ = update(m, keyMsg(k))
	}
	return m
}

func saveCompleteConfig(t *testing.T, a *app.Context) {
	t.Helper()
	err := a.APIConfig.Save(context.Background(), apiconfig.Config{
		Provider:      apiconfig.OpenAI,
		Model:         "gpt-3.5-turbo",
		OpenAIBaseURL: "https://api.example.com",
		OpenAIAPIKey:  "sk-test",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestScreenTableCoversEveryScreen(t *testing.T) {
	for _, s := range navigation.Screens() {
		h, ok := screens[s]
		if !ok {
			t.Errorf("no handler for %v", s)
			continue
		}
		if h.enter == nil || h.key == nil || h.view == nil || h.title == "" {
			t.Errorf("handler for %v is incomplete", s)
		}
	}
}

func TestNavigationFlow(t *testing.T) {
	m, a, _ := newTestModel(t)

	if !strings.Contains(m.View(), "助手小C") {
		t.Errorf("home view does not list the default character:\n%s", m.View())
	}

	m = press(m, "enter")
	if got := a.Nav.Current(); got != navigation.CharacterDetail {
		t.Fatalf("after enter: %v, want characterDetail", got)
	}
	if !strings.Contains(m.View(), "乐于助人的AI伙伴") {
		t.Errorf("detail view does not show the subtitle:\n%s", m.View())
	}

	m = press(m, "c")
	if got := a.Nav.Current(); got != navigation.Chat {
		t.Fatalf("after c: %v, want chat", got)
	}

	m = press(m, "esc")
	if got := a.Nav.Current(); got != navigation.CharacterDetail {
		t.Fatalf("after esc: %v, want characterDetail", got)
	}
	m = press(m, "esc")
	if got := a.Nav.Current(); got != navigation.Home {
		t.Fatalf("after second esc: %v, want home", got)
	}

	press(m, "m")
	if got := a.Nav.Current(); got != navigation.Dashboard {
		t.Fatalf("after m: %v, want myDashboard", got)
	}
}

func TestChatRequiresAPISettings(t *testing.T) {
	m, a, mock := newTestModel(t)

	m = press(m, "enter", "c", "H", "i", "enter")
	if got := a.Nav.Current(); got != navigation.APISettings {
		t.Errorf("screen = %v, want apiSettings", got)
	}
	if len(mock.Requests()) != 0 {
		t.Error("provider was called")
	}
	if !strings.Contains(m.status, "API settings") {
		t.Errorf("status = %q", m.status)
	}
}

func TestChatSendTurn(t *testing.T) {
	m, a, mock := newTestModel(t)
	saveCompleteConfig(t, a)
	mock.SetResponse("Hello", "Hi", " there")

	m = press(m, "enter", "c", "H", "e", "l", "l", "o")
	m, cmd := update(m, keyMsg("enter"))
	if cmd == nil {
		t.Fatal("enter did not start a turn")
	}
	if !strings.Contains(m.View(), "Thinking...") {
		t.Errorf("view does not show the pending reply:\n%s", m.View())
	}

	done, ok := cmd().(turnDoneMsg)
	if !ok {
		t.Fatalf("command returned %T, want turnDoneMsg", cmd())
	}
	if done.err != nil {
		t.Fatalf("turn error = %v", done.err)
	}
	m, _ = update(m, done)

	c, _ := a.Selected()
	want := []character.Message{
		{Role: character.RoleUser, Content: "Hello"},
		{Role: character.RoleAssistant, Content: "Hi there"},
	}
	if diff := cmp.Diff(want, c.History); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(m.View(), "Hi there") {
		t.Errorf("view does not show the reply:\n%s", m.View())
	}
	if m.chatInput.Value() != "" {
		t.Errorf("input not cleared: %q", m.chatInput.Value())
	}
}

func TestChatStreamsObserverEvents(t *testing.T) {
	m, a, _ := newTestModel(t)
	m = press(m, "enter", "c")
	c, _ := a.Selected()

	m, _ = update(m, turnEventMsg{Kind: session.EventStarted, CharacterID: c.ID})
	m, _ = update(m, turnEventMsg{Kind: session.EventDelta, CharacterID: c.ID, Text: "Partial answ"})
	if !strings.Contains(m.View(), "Partial answ") {
		t.Errorf("view does not show streamed text:\n%s", m.View())
	}

	m, _ = update(m, turnEventMsg{Kind: session.EventFailed, CharacterID: c.ID, Err: errors.New("HTTP Error: 401 Unauthorized")})
	view := m.View()
	if !strings.Contains(view, "something went wrong") || !strings.Contains(view, "401 Unauthorized") {
		t.Errorf("view does not show the failure:\n%s", view)
	}
	if strings.Contains(view, "Partial answ") {
		t.Errorf("failed partial reply still shown:\n%s", view)
	}
}

func TestChatClearHistory(t *testing.T) {
	m, a, _ := newTestModel(t)
	c, _ := a.Selected()
	a.Characters.AppendMessage(c.ID, character.Message{Role: character.RoleUser, Content: "old"})

	m = press(m, "enter", "c", "ctrl+l", "n")
	if got, _ := a.Characters.Get(c.ID); len(got.History) != 1 {
		t.Fatalf("history cleared without confirmation")
	}
	m = press(m, "ctrl+l")
	m, cmd := update(m, keyMsg("y"))
	if cmd == nil {
		t.Fatal("confirming did not start clearing")
	}
	cleared, ok := cmd().(historyClearedMsg)
	if !ok {
		t.Fatalf("command returned %T, want historyClearedMsg", cmd())
	}
	m, _ = update(m, cleared)

	if got, _ := a.Characters.Get(c.ID); len(got.History) != 0 {
		t.Errorf("history = %v, want empty", got.History)
	}
	if m.status != "✓ History cleared" {
		t.Errorf("status = %q", m.status)
	}
}

func TestChatCancelledTurnShowsNoFailure(t *testing.T) {
	m, a, _ := newTestModel(t)
	m = press(m, "enter", "c")
	c, _ := a.Selected()

	m, _ = update(m, turnEventMsg{Kind: session.EventStarted, CharacterID: c.ID})
	m, _ = update(m, turnEventMsg{Kind: session.EventFailed, CharacterID: c.ID, Err: &provider.TransportError{Err: context.Canceled}})
	m, _ = update(m, turnDoneMsg{characterID: c.ID, err: &provider.TransportError{Err: context.Canceled}})

	if strings.Contains(m.View(), "something went wrong") {
		t.Errorf("cancelled turn shown as a failure:\n%s", m.View())
	}
	if m.status != "Reply cancelled" {
		t.Errorf("status = %q", m.status)
	}
}

func TestEditCharacter(t *testing.T) {
	m, a, _ := newTestModel(t)

	m = press(m, "enter", "e")
	if got := a.Nav.Current(); got != navigation.CharacterEdit {
		t.Fatalf("screen = %v, want characterEdit", got)
	}
	m = press(m, "ctrl+u", "P", "i", "r", "a", "t", "e", "ctrl+s")

	if got := a.Nav.Current(); got != navigation.CharacterDetail {
		t.Errorf("after save: %v, want characterDetail", got)
	}
	c, _ := a.Selected()
	if c.Name != "Pirate" {
		t.Errorf("Name = %q, want Pirate", c.Name)
	}
	if c.Subtitle != "乐于助人的AI伙伴" {
		t.Errorf("Subtitle changed to %q", c.Subtitle)
	}
	if m.error != "" {
		t.Errorf("error = %q", m.error)
	}
}

func TestNewCharacterOpensEditor(t *testing.T) {
	m, a, _ := newTestModel(t)
	press(m, "n")

	if got := a.Nav.Current(); got != navigation.CharacterEdit {
		t.Fatalf("screen = %v, want characterEdit", got)
	}
	if got := len(a.Characters.All()); got != 2 {
		t.Errorf("characters = %d, want 2", got)
	}
	c, _ := a.Selected()
	if c.Name != character.NewCharacterName {
		t.Errorf("selected = %q, want the new character", c.Name)
	}
}

func TestSettingsSaveOpenAI(t *testing.T) {
	m, a, _ := newTestModel(t)

	m = press(m, "s")
	if got := a.Nav.Current(); got != navigation.APISettings {
		t.Fatalf("screen = %v, want apiSettings", got)
	}
	m = press(m, "tab")
	for _, r := range "https://api.example.com" {
		m = press(m, string(r))
	}
	m = press(m, "tab", "s", "k", "-", "x", "ctrl+s")

	if m.error != "" {
		t.Fatalf("error = %q", m.error)
	}
	if got := a.Nav.Current(); got != navigation.Home {
		t.Errorf("after save: %v, want home", got)
	}
	cfg, err := a.APIConfig.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := apiconfig.Config{
		Provider:      apiconfig.OpenAI,
		Model:         "gpt-3.5-turbo",
		OpenAIBaseURL: "https://api.example.com",
		OpenAIAPIKey:  "sk-x",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsSwitchToGemini(t *testing.T) {
	m, a, _ := newTestModel(t)
	saveCompleteConfig(t, a)

	m = press(m, "s", "ctrl+t")
	if m.modelInput.Value() != "gemini-pro" {
		t.Errorf("model = %q, want gemini-pro", m.modelInput.Value())
	}
	// Gemini has no base URL field; tab goes straight to the key.
	press(m, "tab", "g", "k", "ctrl+s")

	cfg, _ := a.APIConfig.Load(context.Background())
	want := apiconfig.Config{
		Provider:      apiconfig.Gemini,
		Model:         "gemini-pro",
		OpenAIBaseURL: "https://api.example.com",
		OpenAIAPIKey:  "sk-test",
		GeminiAPIKey:  "gk",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsRejectsBadBaseURL(t *testing.T) {
	m, a, _ := newTestModel(t)
	m = press(m, "s", "tab", "f", "t", "p", ":", "/", "/", "x", "tab", "k", "ctrl+s")
	if m.error == "" {
		t.Error("invalid base URL was accepted")
	}
	if got := a.Nav.Current(); got != navigation.APISettings {
		t.Errorf("screen = %v, want apiSettings", got)
	}
}

func TestModelsLoaded(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = press(m, "s")
	m, _ = update(m, modelsLoadedMsg{provider: apiconfig.OpenAI, models: []string{"gpt-4o", "gpt-4o-mini"}})
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyCtrlN})
	if m.modelInput.Value() != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", m.modelInput.Value())
	}

	m, _ = update(m, modelsLoadedMsg{provider: apiconfig.OpenAI, err: errors.New("HTTP Error: 401 Unauthorized")})
	if !strings.Contains(m.error, "401") {
		t.Errorf("error = %q", m.error)
	}
}

func TestDashboardBatchDelete(t *testing.T) {
	m, a, _ := newTestModel(t)
	if _, err := a.Characters.Create(context.Background(), character.Draft{Name: "Extra"}); err != nil {
		t.Fatal(err)
	}

	m = press(m, "m", "D")
	if len(a.Characters.All()) != 2 {
		t.Fatal("deleted without marks")
	}
	m = press(m, "j", "space", "D", "y")

	all := a.Characters.All()
	if len(all) != 1 || all[0].Name != "助手小C" {
		t.Errorf("characters = %v", all)
	}
	if !strings.Contains(m.status, "Deleted 1 character") {
		t.Errorf("status = %q", m.status)
	}
}
