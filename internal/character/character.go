// Package character holds the persona records and their conversation
// histories, and persists the whole collection as one document.
package character

import (
	"fmt"
	"slices"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one entry in a character's history. Messages are never edited
// after they are appended.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Character is a persona with its own conversation history.
type Character struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Subtitle     string    `json:"subtitle" yaml:"subtitle"`
	SystemPrompt string    `json:"setting" yaml:"setting"`
	Avatar       string    `json:"avatar" yaml:"avatar,omitempty"`
	History      []Message `json:"history" yaml:"history"`
}

// Clone returns a copy that shares no slices with c.
func (c Character) Clone() Character {
	c.History = slices.Clone(c.History)
	if c.History == nil {
		c.History = []Message{}
	}
	return c
}

// Draft carries the fields a user fills in when adding a character.
type Draft struct {
	Name         string
	Subtitle     string
	SystemPrompt string
	Avatar       string
}

// Patch updates the non-nil fields of a character.
type Patch struct {
	Name         *string
	Subtitle     *string
	SystemPrompt *string
	Avatar       *string
}

func (p Patch) apply(c *Character) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Subtitle != nil {
		c.Subtitle = *p.Subtitle
	}
	if p.SystemPrompt != nil {
		c.SystemPrompt = *p.SystemPrompt
	}
	if p.Avatar != nil {
		c.Avatar = *p.Avatar
	}
}

// NotFoundError is returned when no character has the requested id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("character %q not found", e.ID)
}

const (
	defaultName     = "助手小C"
	defaultSubtitle = "乐于助人的AI伙伴"
	defaultSetting  = "你是一位乐于助人、知识渊博的AI助手，名叫小C。"

	// NewCharacterName is used when a character is added without a name.
	NewCharacterName = "新角色"
)

func seedCharacter(id string) Character {
	return Character{
		ID:           id,
		Name:         defaultName,
		Subtitle:     defaultSubtitle,
		SystemPrompt: defaultSetting,
		History:      []Message{},
	}
}
