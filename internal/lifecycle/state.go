package lifecycle

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is the position of a proposal in its lifecycle.
type State string

const (
	StateNone         State = ""
	StateCreated      State = "created"
	StateConfigured   State = "configured"
	StatePendingStart State = "pending_start"
	StateOpen         State = "open"
	StatePendingEnd   State = "pending_end"
	StateClosed       State = "closed"
)

var allStates = []State{
	StateCreated,
	StateConfigured,
	StatePendingStart,
	StateOpen,
	StatePendingEnd,
	StateClosed,
}

// AllStates lists the lifecycle states in order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// Label renders the state for people, e.g. "Pending Start".
func (s State) Label() string {
	if s == StateNone {
		return "Not Proposed"
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(string(s), "_", " "))
}

// Choice is the vote cast by the wallet while a proposal is open.
type Choice string

const (
	ChoiceNone    Choice = "none"
	ChoiceFor     Choice = "for"
	ChoiceAgainst Choice = "against"
	ChoiceAbstain Choice = "abstain"
)

// ParseChoice accepts none, for, against and abstain. Empty means none.
func ParseChoice(value string) (Choice, bool) {
	switch Choice(strings.ToLower(strings.TrimSpace(value))) {
	case "", ChoiceNone:
		return ChoiceNone, true
	case ChoiceFor:
		return ChoiceFor, true
	case ChoiceAgainst:
		return ChoiceAgainst, true
	case ChoiceAbstain:
		return ChoiceAbstain, true
	default:
		return "", false
	}
}
