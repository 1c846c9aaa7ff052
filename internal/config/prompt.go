package config

import (
	"fmt"
	"os"
	"strings"
)

// PromptSource is the resolved prompt configuration
type PromptSource struct {
	// Raw text is handed to the agent as is, skipping the compiler
	Raw bool
	// Text is the raw prompt or the custom text for the template placeholder
	Text string
	// Template is the base template body; empty means the built-in one
	Template string
}

// ResolvePrompt reads whichever prompt files are configured
func (p PromptConfig) ResolvePrompt() (PromptSource, error) {
	if err := p.Validate(); err != nil {
		return PromptSource{}, err
	}

	var src PromptSource
	if p.TemplateFile != "" {
		body, err := readPromptFile(p.TemplateFile)
		if err != nil {
			return PromptSource{}, err
		}
		src.Template = body
	}

	switch {
	case strings.TrimSpace(p.Raw) != "":
		src.Raw, src.Text = true, p.Raw
	case p.RawFile != "":
		body, err := readPromptFile(p.RawFile)
		if err != nil {
			return PromptSource{}, err
		}
		src.Raw, src.Text = true, body
	case strings.TrimSpace(p.Custom) != "":
		src.Text = p.Custom
	case p.CustomFile != "":
		body, err := readPromptFile(p.CustomFile)
		if err != nil {
			return PromptSource{}, err
		}
		src.Text = body
	}
	return src, nil
}

func readPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	return string(data), nil
}
