// Package prompts compiles the instruction document handed to the review agent.
package prompts

import (
	"strings"

	"github.com/reviewpilot/reviewpilot/pkg/models"
)

// DefaultToolCommand is the command the agent is told to run when none is given
const DefaultToolCommand = "reviewpilot"

// Input is everything the compiler reads. Identical inputs always
// produce an identical document.
type Input struct {
	// Template is the base instruction text; empty selects DefaultTemplate.
	Template string
	Policy   Policy
	// CustomPrompt is substituted at the custom_prompt placeholder when the template has one.
	CustomPrompt string
	// Vars fills the remaining {{VAR:name}} placeholders.
	Vars map[string]string
	// ToolCommand is how the agent invokes the comment commands; empty selects DefaultToolCommand.
	ToolCommand string
}

// Compile renders the template, then appends the focus directives, the
// reporting block for the policy's mode and the guardrails.
func Compile(in Input) models.PromptDocument {
	tpl := in.Template
	if tpl == "" {
		tpl = DefaultTemplate
	}

	vars := make(map[string]string, len(in.Vars)+1)
	for k, v := range in.Vars {
		vars[k] = v
	}
	// the custom prompt only lands where the template asks for it
	vars[VarCustomPrompt] = ""
	if HasPlaceholder(tpl, VarCustomPrompt) {
		vars[VarCustomPrompt] = in.CustomPrompt
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(RenderVars(tpl, vars)))
	b.WriteString("\n\n")

	b.WriteString(FocusHeader)
	b.WriteString("\n\n")
	for _, d := range in.Policy.FocusDirectives() {
		b.WriteString("- ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	mode := in.Policy.Mode()
	b.WriteString(behaviorBlock(mode, in.ToolCommand))
	b.WriteString("\n\n")
	b.WriteString(Guardrails)
	b.WriteString("\n")

	return models.PromptDocument{Text: b.String(), Mode: mode}
}

// Raw wraps caller-supplied text as a document without compiling it
func Raw(text string, policy Policy) models.PromptDocument {
	return models.PromptDocument{Text: text, Mode: policy.Mode()}
}

func behaviorBlock(mode models.ReviewMode, tool string) string {
	if tool == "" {
		tool = DefaultToolCommand
	}
	block := PerFileInstructions
	if mode == models.ReviewModeWholeDiff {
		block = WholeDiffInstructions
	}
	return strings.ReplaceAll(block, ToolPlaceholder, tool)
}
