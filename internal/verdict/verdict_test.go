package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/pkg/models"
)

func TestStatusLine_NotPassedIsNeverPassed(t *testing.T) {
	res := Classify("**Status:** ❌ Not Passed\nFix null check")
	assert.Equal(t, KeepOpen, res.Verdict)
	assert.Equal(t, ShapeStatusLine, res.Shape)
	assert.Equal(t, LabelNotPassed, res.Label)

	res = Classify("**Status:** ✅ Passed")
	assert.Equal(t, Resolve, res.Verdict)
	assert.Equal(t, LabelPassed, res.Label)
}

func TestStatusLine_Variants(t *testing.T) {
	cases := []struct {
		in   string
		want Label
	}{
		{"Status: Passed", LabelPassed},
		{"status: passed", LabelPassed},
		{"STATUS: NOT PASSED", LabelNotPassed},
		{"**Status**: Questions", LabelQuestions},
		{"## **Status:** ⚠️ Questions", LabelQuestions},
		{"- Status: not   passed", LabelNotPassed},
		{"Summary\n\n**Status: Passed**\n", LabelPassed},
		{"Status:✅Passed", LabelPassed},
		{"✅ **Status:** Passed", LabelPassed},
		{"**Overall Status:** ✅ Passed", LabelPassed},
		{"File a.go - Status: Passed", LabelPassed},
		{"❌ **Overall Status:** Not Passed", LabelNotPassed},
	}
	for _, tc := range cases {
		got, ok := StatusLine(tc.in)
		require.True(t, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestClassify_LeadingEmojiStatusLineResolves(t *testing.T) {
	res := Classify("✅ **Status:** Passed\nNothing to add.")
	assert.Equal(t, Resolve, res.Verdict)
	assert.Equal(t, ShapeStatusLine, res.Shape)
	assert.Equal(t, models.ThreadStatusClosed, res.Verdict.ThreadStatus())
}

func TestStatusLine_Absent(t *testing.T) {
	for _, in := range []string{
		"",
		"Everything passed, nice work",
		"The status of this PR: unclear",
		"Status: Pending",
		"Substatus: passed",
	} {
		_, ok := StatusLine(in)
		assert.False(t, ok, in)
	}
}

func TestStatusTable_Aggregation(t *testing.T) {
	table := func(statuses ...string) string {
		s := "## Summary\nAll good.\n\n| File Name | Status | Comments |\n|---|:---:|---|\n"
		for _, st := range statuses {
			s += "| a.go | " + st + " | - |\n"
		}
		return s + "\n### Details\nStatus column notes\n"
	}

	v, rows, ok := StatusTable(table("Passed", "Passed", "Passed"))
	require.True(t, ok)
	assert.Equal(t, Resolve, v)
	assert.Equal(t, 3, rows)

	v, _, _ = StatusTable(table("Passed", "Questions", "Passed"))
	assert.Equal(t, KeepOpen, v)

	v, _, _ = StatusTable(table("**Passed**", "**Not Passed**"))
	assert.Equal(t, KeepOpen, v)

	v, rows, ok = StatusTable(table())
	require.True(t, ok)
	assert.Equal(t, KeepOpen, v)
	assert.Zero(t, rows)

	v, _, _ = StatusTable(table("Passed", "Maybe"))
	assert.Equal(t, KeepOpen, v, "unknown labels fail safe")

	v, _, _ = StatusTable(table("✅ **Passed**", "✅ passed"))
	assert.Equal(t, Resolve, v)
}

func TestStatusTable_ColumnOrderAndCase(t *testing.T) {
	text := "| STATUS | comments | **File Name** |\n| --- | --- | --- |\n| passed | ok | x.go |\n| Passed | ok | y.go |"
	v, rows, ok := StatusTable(text)
	require.True(t, ok)
	assert.Equal(t, Resolve, v)
	assert.Equal(t, 2, rows)
}

func TestStatusTable_OnlyFirstTableCounts(t *testing.T) {
	text := "| File Name | Status | Comments |\n|---|---|---|\n| a.go | Passed | |\n\n" +
		"| File Name | Status | Comments |\n|---|---|---|\n| b.go | Not Passed | |\n"
	v, rows, ok := StatusTable(text)
	require.True(t, ok)
	assert.Equal(t, Resolve, v)
	assert.Equal(t, 1, rows)
}

func TestStatusTable_IgnoresUnrelatedTables(t *testing.T) {
	_, _, ok := StatusTable("| Name | Value |\n|---|---|\n| a | b |")
	assert.False(t, ok)
}

func TestClassify_DefaultsToKeepOpen(t *testing.T) {
	res := Classify("I looked at the code and it seems fine.")
	assert.Equal(t, KeepOpen, res.Verdict)
	assert.Equal(t, ShapeNone, res.Shape)
	assert.Equal(t, models.ThreadStatusActive, res.Verdict.ThreadStatus())
}

func TestClassify_StatusLineWinsOverTable(t *testing.T) {
	text := "Status: Questions\n\n| File Name | Status | Comments |\n|---|---|---|\n| a.go | Passed | |\n"
	res := Classify(text)
	assert.Equal(t, ShapeStatusLine, res.Shape)
	assert.Equal(t, KeepOpen, res.Verdict)
}

func TestClassify_WholeDiffReview(t *testing.T) {
	text := `## Review Summary
Small refactor of the cache layer.

| File Name | Status | Comments |
|-----------|--------|----------|
| cache.go  | **Passed** | Clean |
| cache_test.go | Passed | |

### Detailed Comments
None.`
	res := Classify(text)
	assert.Equal(t, ShapeStatusTable, res.Shape)
	assert.Equal(t, Resolve, res.Verdict)
	assert.Equal(t, models.ThreadStatusClosed, res.Verdict.ThreadStatus())
}

func TestIsNoIssues(t *testing.T) {
	assert.True(t, IsNoIssues("NO_ISSUES_FOUND"))
	assert.True(t, IsNoIssues("\n  **no_issues_found**  \n"))
	assert.True(t, IsNoIssues("`NO_ISSUES_FOUND`"))
	assert.False(t, IsNoIssues("**Status:** ✅ Passed\nNO_ISSUES_FOUND"))
	assert.False(t, IsNoIssues(""))
}
