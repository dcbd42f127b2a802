package tui

import "github.com/Veraticus/katalog/internal/model"

// Action is a review decision.
type Action int

const (
	ActionNone Action = iota
	ActionAccept
	ActionReject
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accepted"
	case ActionReject:
		return "rejected"
	case ActionSkip:
		return "skipped"
	default:
		return "pending"
	}
}

// Decision records what the user did with one result.
type Decision struct {
	Code   string
	Action Action
}

// decisionMsg reports a finished reviewer call.
type decisionMsg struct {
	err       error
	candidate model.MatchCandidate
	index     int
	action    Action
}
