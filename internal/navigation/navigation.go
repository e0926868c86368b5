// Package navigation tracks which screen is visible and supports
// back-navigation.
package navigation

import (
	"fmt"
	"sync"
)

// Screen identifies one of the application's screens.
type Screen int

const (
	Home Screen = iota
	CharacterDetail
	CharacterEdit
	Chat
	Dashboard
	APISettings
)

var screenNames = [...]string{
	Home:            "home",
	CharacterDetail: "characterDetail",
	CharacterEdit:   "characterEdit",
	Chat:            "chat",
	Dashboard:       "myDashboard",
	APISettings:     "apiSettings",
}

// Screens lists every screen in declaration order.
func Screens() []Screen {
	return []Screen{Home, CharacterDetail, CharacterEdit, Chat, Dashboard, APISettings}
}

func (s Screen) String() string {
	if s < 0 || int(s) >= len(screenNames) {
		return fmt.Sprintf("Screen(%d)", int(s))
	}
	return screenNames[s]
}

// Valid reports whether s is one of the declared screens.
func (s Screen) Valid() bool {
	return s >= 0 && int(s) < len(screenNames)
}

// ParseScreen maps a screen name back to its Screen.
func ParseScreen(name string) (Screen, error) {
	for i, n := range screenNames {
		if n == name {
			return Screen(i), nil
		}
	}
	return 0, fmt.Errorf("unknown screen %q", name)
}

// Stack is the navigation history. The zero value is not usable; call New.
// The stack always holds at least the root screen and its top is the
// visible screen.
type Stack struct {
	mu      sync.RWMutex
	screens []Screen
}

// New returns a stack whose only entry is root.
func New(root Screen) *Stack {
	return &Stack{screens: []Screen{root}}
}

// Navigate makes screen visible. Navigating to the current screen is a no-op.
func (s *Stack) Navigate(screen Screen) Screen {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.screens[len(s.screens)-1] != screen {
		s.screens = append(s.screens, screen)
	}
	return screen
}

// Back pops the visible screen and returns the new top. The root is never
// popped.
func (s *Stack) Back() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.screens) > 1 {
		s.screens = s.screens[:len(s.screens)-1]
	}
	return s.screens[len(s.screens)-1]
}

// Reset drops everything above the root.
func (s *Stack) Reset() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.screens = s.screens[:1]
	return s.screens[0]
}

// Current returns the visible screen.
func (s *Stack) Current() Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screens[len(s.screens)-1]
}

// Depth returns the number of entries on the stack.
func (s *Stack) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.screens)
}

// History returns a copy of the stack, root first.
func (s *Stack) History() []Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Screen, len(s.screens))
	copy(out, s.screens)
	return out
}
