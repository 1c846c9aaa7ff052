package prompts

import (
	"strings"

	"github.com/reviewpilot/reviewpilot/pkg/models"
)

// Policy selects what the reviewer focuses on and how it reports
type Policy struct {
	Bugs          bool
	Performance   bool
	BestPractices bool
	WholeDiff     bool
	// Directives are free-text focus lines appended after the built-in ones, in order.
	Directives []string
}

// Mode returns the reporting mode the policy selects
func (p Policy) Mode() models.ReviewMode {
	if p.WholeDiff {
		return models.ReviewModeWholeDiff
	}
	return models.ReviewModePerFile
}

// FocusDirectives lists the focus lines in fixed order: bugs, performance,
// best practices, then the free-text directives. It never returns an empty
// list; with nothing selected it returns the catch-all directive.
func (p Policy) FocusDirectives() []string {
	var out []string
	if p.Bugs {
		out = append(out, DirectiveBugs)
	}
	if p.Performance {
		out = append(out, DirectivePerformance)
	}
	if p.BestPractices {
		out = append(out, DirectiveBestPractices)
	}
	for _, d := range p.Directives {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, DirectiveDefault)
	}
	return out
}

// SplitDirectives splits a newline or comma delimited list, dropping blanks
func SplitDirectives(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
