package session

import "github.com/maximbilan/chatr/internal/character"

// State is the phase of a character's current turn.
type State int

const (
	Idle State = iota
	Sending
	Streaming
	Committed
	Failed
)

var stateNames = map[State]string{
	Idle:      "idle",
	Sending:   "sending",
	Streaming: "streaming",
	Committed: "committed",
	Failed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Observer receives turn progress. Calls for one character arrive in order
// from the goroutine running SendTurn; implementations must not block.
type Observer interface {
	TurnStarted(characterID string)
	// TurnDelta carries the whole reply received so far.
	TurnDelta(characterID, accumulated string)
	// TurnCommitted reports the end of a successful turn. committed is false
	// when the reply was empty and nothing was appended.
	TurnCommitted(characterID string, msg character.Message, committed bool)
	TurnFailed(characterID string, err error)
	StateChanged(characterID string, state State)
}

// EventKind tells which Observer method an Event stands for.
type EventKind int

const (
	EventStarted EventKind = iota
	EventDelta
	EventCommitted
	EventFailed
	EventState
)

// Event flattens one Observer call.
type Event struct {
	Kind        EventKind
	CharacterID string
	State       State
	Text        string
	Message     character.Message
	Committed   bool
	Err         error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) TurnStarted(id string) {
	f(Event{Kind: EventStarted, CharacterID: id})
}

func (f ObserverFunc) TurnDelta(id, accumulated string) {
	f(Event{Kind: EventDelta, CharacterID: id, Text: accumulated})
}

func (f ObserverFunc) TurnCommitted(id string, msg character.Message, committed bool) {
	f(Event{Kind: EventCommitted, CharacterID: id, Message: msg, Committed: committed})
}

func (f ObserverFunc) TurnFailed(id string, err error) {
	f(Event{Kind: EventFailed, CharacterID: id, Err: err})
}

func (f ObserverFunc) StateChanged(id string, state State) {
	f(Event{Kind: EventState, CharacterID: id, State: state})
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) TurnStarted(string)                            {}
func (NopObserver) TurnDelta(string, string)                      {}
func (NopObserver) TurnCommitted(string, character.Message, bool) {}
func (NopObserver) TurnFailed(string, error)                      {}
func (NopObserver) StateChanged(string, State)                    {}
