package prompts

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/pkg/models"
)

func focusLines(doc string) []string {
	var out []string
	in := false
	for _, line := range strings.Split(doc, "\n") {
		switch {
		case line == FocusHeader:
			in = true
		case in && strings.HasPrefix(line, "## "):
			return out
		case in && strings.HasPrefix(line, "- "):
			out = append(out, strings.TrimPrefix(line, "- "))
		}
	}
	return out
}

func TestCompile_IsDeterministic(t *testing.T) {
	in := Input{
		Policy:       Policy{Bugs: true, BestPractices: true, Directives: []string{"Check SQL", "Mind logging"}},
		CustomPrompt: "Focus on the payment module.",
		Vars:         map[string]string{VarTitle: "Add payments", VarPullRequestID: "7", VarWorkItems: "12\n13"},
	}
	first := Compile(in)
	second := Compile(in)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("compiling twice differed (-first +second):\n%s", diff)
	}
}

func TestCompile_DirectiveOrder(t *testing.T) {
	doc := Compile(Input{Policy: Policy{
		Bugs:          true,
		Performance:   true,
		BestPractices: true,
		Directives:    []string{"Check SQL injection", "  ", "Verify error wrapping"},
	}})

	want := []string{DirectiveBugs, DirectivePerformance, DirectiveBestPractices, "Check SQL injection", "Verify error wrapping"}
	assert.Equal(t, want, focusLines(doc.Text))
}

func TestCompile_DefaultDirectiveWhenNothingSelected(t *testing.T) {
	doc := Compile(Input{Policy: Policy{}})
	assert.Equal(t, []string{DirectiveDefault}, focusLines(doc.Text))
}

func TestCompile_ModesAreExclusive(t *testing.T) {
	perFile := Compile(Input{Policy: Policy{Bugs: true}})
	assert.Equal(t, models.ReviewModePerFile, perFile.Mode)
	assert.Contains(t, perFile.Text, "NO_ISSUES_FOUND")
	assert.Contains(t, perFile.Text, "**Status:** ❌ Not Passed")
	assert.NotContains(t, perFile.Text, "| File Name | Status | Comments |")

	wholeDiff := Compile(Input{Policy: Policy{Bugs: true, WholeDiff: true}})
	assert.Equal(t, models.ReviewModeWholeDiff, wholeDiff.Mode)
	assert.Contains(t, wholeDiff.Text, "| File Name | Status | Comments |")
	assert.Contains(t, wholeDiff.Text, "exactly one consolidated review")
	assert.NotContains(t, wholeDiff.Text, "NO_ISSUES_FOUND")
}

func TestCompile_CustomPromptOnlyAtPlaceholder(t *testing.T) {
	withSlot := Compile(Input{
		Template:     "Base instructions.\n\n{{VAR:custom_prompt}}",
		CustomPrompt: "Be strict about naming.",
	})
	assert.True(t, strings.HasPrefix(withSlot.Text, "Base instructions.\n\nBe strict about naming."))

	withoutSlot := Compile(Input{
		Template:     "Base instructions only.",
		CustomPrompt: "Be strict about naming.",
	})
	assert.NotContains(t, withoutSlot.Text, "Be strict about naming.")

	empty := Compile(Input{Template: "Before {{VAR:custom_prompt}}After"})
	assert.True(t, strings.HasPrefix(empty.Text, "Before After"))
	assert.NotContains(t, empty.Text, "{{VAR:")
}

func TestCompile_DefaultTemplateRendersContext(t *testing.T) {
	doc := Compile(Input{
		Vars: map[string]string{
			VarPullRequestID: "42",
			VarTitle:         "Add cache",
			VarSourceBranch:  "refs/heads/cache",
			VarTargetBranch:  "refs/heads/main",
			VarIterationID:   "3",
			VarWorkItems:     "100\n101",
		},
		ToolCommand: "/opt/bin/reviewpilot",
	})

	assert.Contains(t, doc.Text, `pull request #42 "Add cache"`)
	assert.Contains(t, doc.Text, "change iteration 3")
	assert.Contains(t, doc.Text, "Linked work items: 100, 101")
	assert.Contains(t, doc.Text, "(none)")
	assert.Contains(t, doc.Text, "/opt/bin/reviewpilot thread create")
	assert.NotContains(t, doc.Text, ToolPlaceholder)
	assert.NotContains(t, doc.Text, "{{VAR:")
	assert.True(t, strings.HasSuffix(doc.Text, Guardrails+"\n"))
}

func TestRaw_KeepsTextVerbatim(t *testing.T) {
	doc := Raw("Review this however you like.", Policy{WholeDiff: true})
	assert.Equal(t, "Review this however you like.", doc.Text)
	assert.Equal(t, models.ReviewModeWholeDiff, doc.Mode)
}

func TestSplitDirectives(t *testing.T) {
	got := SplitDirectives("Check SQL,\n  Verify logs  \r\n,,Avoid globals")
	require.Equal(t, []string{"Check SQL", "Verify logs", "Avoid globals"}, got)
	assert.Empty(t, SplitDirectives(" \n , "))
}
