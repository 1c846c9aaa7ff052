// Package redact strips credentials from agent-written comments before
// they are posted, using the gitleaks rule set.
package redact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
	"github.com/zricethezav/gitleaks/v8/report"
)

// Placeholder replaces every detected secret
const Placeholder = "[REDACTED]"

// Finding is one secret removed from the text
type Finding struct {
	RuleID string
	Line   int
}

// Detector finds secrets in text
type Detector interface {
	DetectString(content string) []report.Finding
}

// Redactor replaces detected secrets with Placeholder
type Redactor struct {
	detector Detector
}

// New loads the default gitleaks rules
func New() (*Redactor, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("load secret rules: %w", err)
	}
	return &Redactor{detector: d}, nil
}

// NewWithDetector wraps an existing detector
func NewWithDetector(d Detector) *Redactor {
	return &Redactor{detector: d}
}

// Redact returns text with every secret replaced, and what was replaced
func (r *Redactor) Redact(text string) (string, []Finding) {
	if r == nil || r.detector == nil || text == "" {
		return text, nil
	}
	found := r.detector.DetectString(text)
	if len(found) == 0 {
		return text, nil
	}

	// longest first so a secret containing another is replaced whole
	sort.SliceStable(found, func(i, j int) bool { return len(found[i].Secret) > len(found[j].Secret) })

	out := make([]Finding, 0, len(found))
	for _, f := range found {
		if f.Secret == "" || !strings.Contains(text, f.Secret) {
			continue
		}
		text = strings.ReplaceAll(text, f.Secret, Placeholder)
		out = append(out, Finding{RuleID: f.RuleID, Line: f.StartLine})
	}
	return text, out
}

// Scrub satisfies the reconciler's scrubber hook
func (r *Redactor) Scrub(text string) (string, int) {
	cleaned, found := r.Redact(text)
	return cleaned, len(found)
}
