package prompts

import "github.com/reviewpilot/reviewpilot/internal/verdict"

// Template variable names understood by the compiler
const (
	VarCustomPrompt  = "custom_prompt"
	VarTitle         = "pr_title"
	VarDescription   = "pr_description"
	VarSourceBranch  = "source_branch"
	VarTargetBranch  = "target_branch"
	VarPullRequestID = "pr_id"
	VarIterationID   = "iteration_id"
	VarWorkItems     = "work_items"
)

// DefaultTemplate is the base instruction text used when no template file is configured
const DefaultTemplate = `You are an expert code reviewer reviewing pull request #{{VAR:pr_id}} "{{VAR:pr_title}}".

The pull request merges {{VAR:source_branch}} into {{VAR:target_branch}} and you are reviewing change iteration {{VAR:iteration_id}}.
The repository is checked out in the current working directory. Use git to inspect the changes between the target branch and HEAD.

Pull request description:
{{VAR:pr_description|default="(none)"}}

Linked work items: {{VAR:work_items|join=", "|default="none"}}

{{VAR:custom_prompt}}`

// Review focus directives, emitted in this order
const (
	FocusHeader = "## Review focus"

	DirectiveBugs          = "Look for bugs, logic errors and unhandled edge cases that would make the code behave incorrectly."
	DirectivePerformance   = "Point out performance problems such as needless allocations, repeated work or inefficient queries."
	DirectiveBestPractices = "Flag departures from the language's idioms and established best practices that hurt readability or maintainability."
	DirectiveDefault       = "Review the changes for any problem worth raising with the author."
)

// ToolPlaceholder is replaced with the command the agent uses to post comments
const ToolPlaceholder = "{{TOOL}}"

// PerFileInstructions asks for one verdict per changed file
const PerFileInstructions = `## How to report

Review each changed file on its own.

- If a file has nothing worth commenting on, write the line ` + "`" + verdict.NoIssuesMarker + "`" + ` for it and post nothing.
- Otherwise post one inline comment for the file. The first line of the comment must be its status line, one of:
  - ` + "`**Status:** ✅ Passed`" + `
  - ` + "`**Status:** ❓ Questions`" + `
  - ` + "`**Status:** ❌ Not Passed`" + `
  followed by your findings for that file.

Post a comment by writing it to a file and running:

    {{TOOL}} thread create --file <path> --start-line <line> [--end-line <line>] --content-file <comment.md>

The thread is closed when the status is Passed and stays active otherwise.

Before posting, run ` + "`{{TOOL}} thread list --mine`" + ` to see threads from earlier runs on this pull request.
Update an earlier thread instead of opening a duplicate:

    {{TOOL}} thread update --thread-id <id> [--status active|closed] [--comment-id <id> --content-file <comment.md>]

Remove replies that no longer apply with ` + "`{{TOOL}} comment delete --thread-id <id> --comment-id <id>`" + `.
Never delete the first comment of a thread.`

// WholeDiffInstructions asks for a single consolidated review
const WholeDiffInstructions = `## How to report

Review the whole diff at once and post exactly one consolidated review comment on the pull request. It must contain:

1. A short summary of the changes.
2. A status table with exactly these columns:

| File Name | Status | Comments |
|-----------|--------|----------|
| path/to/file | Passed, Questions or Not Passed | short note |

3. Optionally, a "Detailed Comments" section with specifics per file.

Post the review by writing it to a file and running:

    {{TOOL}} thread create --content-file <review.md>

The thread is closed when every row of the table is Passed and stays active otherwise.

Before posting, run ` + "`{{TOOL}} thread list --mine`" + ` to see reviews from earlier runs. If one exists, update it instead of posting a new one:

    {{TOOL}} thread update --thread-id <id> --comment-id <id> --content-file <review.md>`

// Guardrails is appended to every compiled document
const Guardrails = `## Rules

- Do not modify, commit or push any source changes. Your only output is review comments.
- Post comments only through the command shown above.`
