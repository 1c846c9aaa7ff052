package agent

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimedOut is returned when the agent outlived its timeout and was killed
var ErrTimedOut = errors.New("agent timed out")

// State is where an agent run is in its lifecycle
type State int

const (
	NotStarted State = iota
	Running
	Succeeded
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == TimedOut
}

// Result describes a finished run
type Result struct {
	State State
	// ExitCode is set for Failed runs that exited on their own; -1 otherwise
	ExitCode int
	Duration time.Duration
	// FinalText is the agent's closing message when stream-json output was requested
	FinalText string
	Err       error
}

// tracker enforces NotStarted -> Running -> terminal. Once terminal the
// state never changes again.
type tracker struct {
	state State
}

func (t *tracker) to(next State) bool {
	switch {
	case t.state.Terminal():
		return false
	case next == Running && t.state != NotStarted:
		return false
	case next.Terminal() && t.state != Running && next != Failed:
		return false
	}
	t.state = next
	return true
}
