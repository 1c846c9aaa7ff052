// Package verdict turns the agent's free-form markdown into a decision on
// whether a review thread can be closed.
//
// Two shapes are recognised, in order: a "Status: <label>" line and a
// status table with File Name, Status and Comments columns. Anything else
// keeps the thread open.
package verdict

import (
	"strings"

	"github.com/reviewpilot/reviewpilot/pkg/models"
)

// Verdict is the derived decision for one review unit
type Verdict int

const (
	// KeepOpen leaves the thread active. It is the default for unrecognised text.
	KeepOpen Verdict = iota
	// Resolve closes the thread.
	Resolve
)

func (v Verdict) String() string {
	if v == Resolve {
		return "resolve"
	}
	return "keep-open"
}

// ThreadStatus maps the verdict onto the status a thread is created or updated with
func (v Verdict) ThreadStatus() models.ThreadStatus {
	if v == Resolve {
		return models.ThreadStatusClosed
	}
	return models.ThreadStatusActive
}

// Label is one of the three status words the agent is asked to use
type Label string

const (
	LabelPassed    Label = "Passed"
	LabelQuestions Label = "Questions"
	LabelNotPassed Label = "Not Passed"
)

// Shape tells which part of the text produced the verdict
type Shape int

const (
	ShapeNone Shape = iota
	ShapeStatusLine
	ShapeStatusTable
)

func (s Shape) String() string {
	switch s {
	case ShapeStatusLine:
		return "status-line"
	case ShapeStatusTable:
		return "status-table"
	default:
		return "none"
	}
}

// Result is the outcome of Classify
type Result struct {
	Verdict Verdict
	Shape   Shape
	// Label is set for the status-line shape
	Label Label
	// Rows is the number of data rows read for the status-table shape
	Rows int
}

// Classify tries the status-line shape, then the status-table shape.
// When neither is present the verdict is KeepOpen.
func Classify(text string) Result {
	if label, ok := StatusLine(text); ok {
		v := KeepOpen
		if label == LabelPassed {
			v = Resolve
		}
		return Result{Verdict: v, Shape: ShapeStatusLine, Label: label}
	}
	if v, rows, ok := StatusTable(text); ok {
		return Result{Verdict: v, Shape: ShapeStatusTable, Rows: rows}
	}
	return Result{Verdict: KeepOpen, Shape: ShapeNone}
}

// NoIssuesMarker is what the agent writes instead of a comment when a file
// needs no feedback in per-file mode.
const NoIssuesMarker = "NO_ISSUES_FOUND"

// IsNoIssues reports whether the first non-blank line of text is the
// no-issues marker, ignoring bold markers, backticks and case.
func IsNoIssues(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "*`_ ")
		if line == "" {
			continue
		}
		return strings.EqualFold(line, NoIssuesMarker)
	}
	return false
}
