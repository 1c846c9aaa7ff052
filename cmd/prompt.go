package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/reviewpilot/reviewpilot/internal/prompts"
)

// PromptCommand renders the prompt offline, without contacting the review service
func PromptCommand() *cli.Command {
	return &cli.Command{
		Name:  "prompt",
		Usage: "Inspect the prompt sent to the agent",
		Subcommands: []*cli.Command{
			{
				Name:  "render",
				Usage: "Print the compiled prompt for the current configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "bugs"},
					&cli.BoolFlag{Name: "performance"},
					&cli.BoolFlag{Name: "best-practices"},
					&cli.BoolFlag{Name: "whole-diff"},
					&cli.StringFlag{Name: "additional-prompts"},
					&cli.StringFlag{Name: "template-file"},
					&cli.StringFlag{Name: "custom-prompt"},
					&cli.StringFlag{Name: "custom-prompt-file"},
					&cli.StringFlag{Name: "raw-prompt"},
					&cli.StringFlag{Name: "raw-prompt-file"},
					&cli.StringSliceFlag{Name: "var", Usage: "Template variable as `NAME=VALUE` (repeatable)"},
					&cli.StringFlag{Name: "tool", Usage: "Command shown to the agent for posting comments", Value: prompts.DefaultToolCommand},
				},
				Action: runPromptRender,
			},
		},
	}
}

func runPromptRender(c *cli.Context) error {
	cfg, err := loadConfig(c, reviewFlagKeys...)
	if err != nil {
		return err
	}
	src, err := cfg.Prompt.ResolvePrompt()
	if err != nil {
		return err
	}
	policy := cfg.ReviewPolicy()
	if src.Raw {
		fmt.Fprint(c.App.Writer, prompts.Raw(src.Text, policy).Text)
		return nil
	}

	vars := map[string]string{}
	for _, kv := range c.StringSlice("var") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --var %q, expected NAME=VALUE", kv)
		}
		vars[strings.TrimSpace(name)] = value
	}

	doc := prompts.Compile(prompts.Input{
		Template:     src.Template,
		Policy:       policy,
		CustomPrompt: src.Text,
		Vars:         vars,
		ToolCommand:  c.String("tool"),
	})
	fmt.Fprint(c.App.Writer, doc.Text)
	return nil
}
