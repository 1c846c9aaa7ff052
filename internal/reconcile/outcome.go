package reconcile

import (
	"fmt"
	"net/http"

	"github.com/reviewpilot/reviewpilot/internal/devops"
)

// Kind tells how a mutation ended
type Kind int

const (
	// Applied means the remote service accepted the change.
	Applied Kind = iota
	// Skipped means nothing was sent, e.g. a no-issues marker or an empty update.
	Skipped
	// NonFatal means the remote service rejected the change. Callers log it and continue.
	NonFatal
)

func (k Kind) String() string {
	switch k {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case NonFatal:
		return "non-fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one reconciliation call. Remote rejections are
// carried here rather than returned as errors.
type Outcome struct {
	Kind     Kind
	ThreadID int
	// Reason explains a Skipped outcome
	Reason string
	// Err and StatusCode describe a NonFatal outcome
	Err        error
	StatusCode int
	Body       string
}

// OK reports whether the call did not fail
func (o Outcome) OK() bool { return o.Kind != NonFatal }

func (o Outcome) String() string {
	switch o.Kind {
	case Skipped:
		return fmt.Sprintf("skipped: %s", o.Reason)
	case NonFatal:
		if o.StatusCode != 0 {
			return fmt.Sprintf("rejected (%d %s): %v", o.StatusCode, http.StatusText(o.StatusCode), o.Err)
		}
		return fmt.Sprintf("failed: %v", o.Err)
	default:
		if o.ThreadID != 0 {
			return fmt.Sprintf("applied to thread %d", o.ThreadID)
		}
		return "applied"
	}
}

func nonFatal(threadID int, err error) Outcome {
	out := Outcome{Kind: NonFatal, ThreadID: threadID, Err: err}
	if apiErr, ok := devops.AsAPIError(err); ok {
		out.StatusCode = apiErr.StatusCode
		out.Body = apiErr.Body
	}
	return out
}
