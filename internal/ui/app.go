package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/app"
	"github.com/maximbilan/chatr/internal/navigation"
	"github.com/maximbilan/chatr/internal/render"
	"github.com/maximbilan/chatr/internal/session"
)

const version = "chatr v1.0.0"

// screenHandler is the behavior of one screen. enter runs whenever the
// screen becomes visible, including after a back-navigation.
type screenHandler struct {
	title string
	enter func(Model) (Model, tea.Cmd)
	key   func(Model, tea.KeyMsg) (Model, tea.Cmd)
	view  func(Model) string
}

var screens map[navigation.Screen]screenHandler

func init() {
	screens = map[navigation.Screen]screenHandler{
		navigation.Home:            {title: "Characters", enter: enterHome, key: homeKey, view: homeView},
		navigation.CharacterDetail: {title: "Character", enter: enterDetail, key: detailKey, view: detailView},
		navigation.CharacterEdit:   {title: "Edit Character", enter: enterEdit, key: editKey, view: editView},
		navigation.Chat:            {title: "Chat", enter: enterChat, key: chatKey, view: chatView},
		navigation.Dashboard:       {title: "My Dashboard", enter: enterDashboard, key: dashboardKey, view: dashboardView},
		navigation.APISettings:     {title: "API Settings", enter: enterSettings, key: settingsKey, view: settingsView},
	}
}

// Messages
type turnEventMsg session.Event

type turnDoneMsg struct {
	characterID string
	err         error
}

type historyClearedMsg struct {
	characterID string
	err         error
}

type modelsLoadedMsg struct {
	provider apiconfig.Provider
	models   []string
	err      error
}

type errMsg struct {
	err error
}

func (e errMsg) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return "unknown error"
}

type statusMsg string

type Model struct {
	app      *app.Context
	renderer *render.Renderer

	status string
	error  string

	// Home
	cursor int

	// Edit
	editID        string
	nameInput     textinput.Model
	subtitleInput textinput.Model
	avatarInput   textinput.Model
	promptInput   textarea.Model
	editFocus     int
	showDiff      bool

	// Chat
	chatInput    textarea.Model
	viewport     viewport.Model
	streaming    map[string]string
	turnErrors   map[string]string
	codeBlock    int
	confirmClear bool

	// Dashboard
	dashCursor    int
	marked        map[string]bool
	confirmDelete bool

	// API settings
	draft         apiconfig.Config
	modelInput    textinput.Model
	baseURLInput  textinput.Model
	keyInput      textinput.Model
	settingsFocus int
	models        []string
	modelCursor   int
	modelsLoading bool

	// Dimensions
	width  int
	height int
}

func NewModel(a *app.Context, r *render.Renderer) Model {
	nameInput := textinput.New()
	nameInput.Placeholder = "Name"
	nameInput.CharLimit = 64

	subtitleInput := textinput.New()
	subtitleInput.Placeholder = "Subtitle"
	subtitleInput.CharLimit = 64

	avatarInput := textinput.New()
	avatarInput.Placeholder = "Path to an image file (leave empty to keep)"

	promptInput := textarea.New()
	promptInput.Placeholder = "Describe who this character is..."
	promptInput.CharLimit = 0
	promptInput.ShowLineNumbers = false
	promptInput.SetWidth(80)
	promptInput.SetHeight(8)

	chatInput := textarea.New()
	chatInput.Placeholder = "Type a message..."
	chatInput.CharLimit = 0
	chatInput.ShowLineNumbers = false
	chatInput.SetWidth(80)
	chatInput.SetHeight(3)

	modelInput := textinput.New()
	modelInput.Placeholder = "Model id"

	baseURLInput := textinput.New()
	baseURLInput.Placeholder = "https://api.openai.com"

	keyInput := textinput.New()
	keyInput.Placeholder = "API key"
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.EchoCharacter = '•'

	return Model{
		app:           a,
		renderer:      r,
		nameInput:     nameInput,
		subtitleInput: subtitleInput,
		avatarInput:   avatarInput,
		promptInput:   promptInput,
		chatInput:     chatInput,
		viewport:      viewport.New(80, 20),
		streaming:     make(map[string]string),
		turnErrors:    make(map[string]string),
		marked:        make(map[string]bool),
		modelInput:    modelInput,
		baseURLInput:  baseURLInput,
		keyInput:      keyInput,
		status:        "Ready. Enter to open, n for new, ? in footer for keys",
		width:         80,
		height:        24,
	}
}

// Run starts the TUI and routes turn progress into it until it exits.
func Run(a *app.Context, r *render.Renderer) error {
	p := tea.NewProgram(NewModel(a, r), tea.WithAltScreen())
	a.SetObserver(session.ObserverFunc(func(e session.Event) {
		p.Send(turnEventMsg(e))
	}))
	defer a.SetObserver(nil)

	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) handler() screenHandler {
	return screens[m.app.Nav.Current()]
}

// navigate shows s and runs its enter hook.
func (m Model) navigate(s navigation.Screen) (Model, tea.Cmd) {
	m.app.Nav.Navigate(s)
	m.error = ""
	return m.handler().enter(m)
}

// back returns to the previous screen.
func (m Model) back() (Model, tea.Cmd) {
	m.app.Nav.Back()
	m.error = ""
	return m.handler().enter(m)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m.resize(), nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handler().key(m, msg)

	case turnEventMsg:
		return m.handleTurnEvent(session.Event(msg)), nil

	case turnDoneMsg:
		return m.handleTurnDone(msg)

	case historyClearedMsg:
		return m.handleHistoryCleared(msg), nil

	case modelsLoadedMsg:
		m.modelsLoading = false
		if msg.err != nil {
			m.error = msg.err.Error()
			return m, nil
		}
		if msg.provider != m.draft.ActiveProvider() {
			return m, nil
		}
		m.models = msg.models
		m.modelCursor = 0
		m.status = fmt.Sprintf("✓ %d models available (ctrl+n/ctrl+p to pick)", len(msg.models))
		return m, nil

	case errMsg:
		m.error = msg.Error()
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}

	return m, nil
}

func (m Model) resize() Model {
	inner := m.width - 4
	if inner < 20 {
		inner = 20
	}
	m.promptInput.SetWidth(inner)
	m.chatInput.SetWidth(inner)
	m.nameInput.Width = inner
	m.subtitleInput.Width = inner
	m.avatarInput.Width = inner
	m.modelInput.Width = inner
	m.baseURLInput.Width = inner
	m.keyInput.Width = inner

	m.viewport.Width = inner
	m.viewport.Height = max(5, m.height-12)
	if m.renderer != nil {
		if err := m.renderer.SetWidth(inner - 4); err != nil {
			m.app.Logger.Warn("failed to resize markdown renderer", zap.Error(err))
		}
	}
	if m.app.Nav.Current() == navigation.Chat {
		m = m.refreshChat()
	}
	return m
}

// sendTurn runs one turn in the background.
func (m Model) sendTurn(characterID, text string) tea.Cmd {
	ctrl := m.app.Session
	return func() tea.Msg {
		_, _, err := ctrl.SendTurn(context.Background(), characterID, text)
		return turnDoneMsg{characterID: characterID, err: err}
	}
}

func (m Model) handleTurnEvent(e session.Event) Model {
	switch e.Kind {
	case session.EventStarted:
		delete(m.turnErrors, e.CharacterID)
		m.streaming[e.CharacterID] = ""
	case session.EventDelta:
		m.streaming[e.CharacterID] = e.Text
	case session.EventCommitted:
		delete(m.streaming, e.CharacterID)
	case session.EventFailed:
		delete(m.streaming, e.CharacterID)
		if !errors.Is(e.Err, context.Canceled) {
			m.turnErrors[e.CharacterID] = e.Err.Error()
		}
	}
	if m.isCurrentChat(e.CharacterID) {
		m = m.refreshChat()
	}
	return m
}

func (m Model) handleTurnDone(msg turnDoneMsg) (Model, tea.Cmd) {
	if errors.Is(msg.err, session.ErrTurnInFlight) {
		m.status = "A reply is still streaming for this character"
		return m, nil
	}

	delete(m.streaming, msg.characterID)
	if msg.err == nil {
		m.status = "✓ Reply received"
		if m.isCurrentChat(msg.characterID) {
			m = m.refreshChat()
		}
		return m, nil
	}

	if errors.Is(msg.err, apiconfig.ErrIncomplete) {
		m.status = "Complete the API settings before chatting"
		return m.navigate(navigation.APISettings)
	}
	if errors.Is(msg.err, context.Canceled) {
		m.status = "Reply cancelled"
		if m.isCurrentChat(msg.characterID) {
			m = m.refreshChat()
		}
		return m, nil
	}
	m.turnErrors[msg.characterID] = msg.err.Error()
	m.status = "✗ " + msg.err.Error()
	if m.isCurrentChat(msg.characterID) {
		m = m.refreshChat()
	}
	return m, nil
}

func (m Model) isCurrentChat(characterID string) bool {
	if m.app.Nav.Current() != navigation.Chat {
		return false
	}
	c, ok := m.app.Selected()
	return ok && c.ID == characterID
}

func (m Model) View() string {
	h := m.handler()

	var s strings.Builder
	headerLeft := headerStyle.Render(version) + " " + titleStyle.Render(h.title)
	status := statusStyle.Render(m.status)
	if m.error != "" {
		status = errorStyle.Render("✗ " + m.error)
	}
	if lipgloss.Width(headerLeft)+lipgloss.Width(status)+2 <= m.width {
		s.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, headerLeft, status))
	} else {
		s.WriteString(headerLeft)
		s.WriteString("\n")
		s.WriteString(status)
	}
	s.WriteString("\n")
	s.WriteString(strings.Repeat("─", max(m.width, 20)))
	s.WriteString("\n\n")
	s.WriteString(h.view(m))
	return s.String()
}
