package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/reviewpilot/reviewpilot/internal/agent"
	"github.com/reviewpilot/reviewpilot/internal/logging"
	"github.com/reviewpilot/reviewpilot/internal/session"
)

var reviewFlagKeys = []flagKey{
	{"collection-uri", "devops.collection_uri"},
	{"organization", "devops.organization"},
	{"project", "devops.project"},
	{"repository", "devops.repository"},
	{"pr", "devops.pull_request_id"},
	{"source-branch", "devops.source_branch"},
	{"agent", "agent.command"},
	{"model", "agent.model"},
	{"timeout", "agent.timeout_minutes"},
	{"working-dir", "agent.working_dir"},
	{"output-format", "agent.output_format"},
	{"bugs", "review.bugs"},
	{"performance", "review.performance"},
	{"best-practices", "review.best_practices"},
	{"whole-diff", "review.whole_diff"},
	{"additional-prompts", "review.additional_prompts"},
	{"template-file", "prompt.template_file"},
	{"custom-prompt", "prompt.custom"},
	{"custom-prompt-file", "prompt.custom_file"},
	{"raw-prompt", "prompt.raw"},
	{"raw-prompt-file", "prompt.raw_file"},
}

// ReviewCommand returns the review command
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Review a pull request with the configured agent",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "collection-uri", Usage: "Collection endpoint, e.g. https://dev.azure.com/org"},
			&cli.StringFlag{Name: "organization", Aliases: []string{"org"}, Usage: "Organization used to derive the collection endpoint"},
			&cli.StringFlag{Name: "project", Usage: "Project name"},
			&cli.StringFlag{Name: "repository", Aliases: []string{"repo"}, Usage: "Repository name"},
			&cli.IntFlag{Name: "pr", Usage: "Pull request id"},
			&cli.StringFlag{Name: "source-branch", Usage: "Find the active pull request from this branch when no id is given"},
			&cli.StringFlag{Name: "agent", Usage: "Agent command"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model passed to the agent"},
			&cli.IntFlag{Name: "timeout", Usage: "Agent timeout in minutes"},
			&cli.StringFlag{Name: "working-dir", Usage: "Directory the agent runs in"},
			&cli.StringFlag{Name: "output-format", Usage: "Agent output format (stream-json renders progress)"},
			&cli.BoolFlag{Name: "bugs", Usage: "Focus on bugs"},
			&cli.BoolFlag{Name: "performance", Usage: "Focus on performance"},
			&cli.BoolFlag{Name: "best-practices", Usage: "Focus on best practices"},
			&cli.BoolFlag{Name: "whole-diff", Usage: "Post one consolidated review instead of per-file comments"},
			&cli.StringFlag{Name: "additional-prompts", Usage: "Extra focus directives, comma or newline separated"},
			&cli.StringFlag{Name: "template-file", Usage: "Base prompt template `FILE`"},
			&cli.StringFlag{Name: "custom-prompt", Usage: "Text inserted at the template's custom prompt placeholder"},
			&cli.StringFlag{Name: "custom-prompt-file", Usage: "Read the custom prompt text from `FILE`"},
			&cli.StringFlag{Name: "raw-prompt", Usage: "Send this text to the agent as is"},
			&cli.StringFlag{Name: "raw-prompt-file", Usage: "Send the contents of `FILE` to the agent as is"},
		},
		Action: runReview,
	}
}

func runReview(c *cli.Context) error {
	cfg, err := loadConfig(c, reviewFlagKeys...)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log.Info().EmbedObject(cfg).Msg("Starting review")

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	opts, err := session.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.ToolCommand = selfCommand()
	opts.Stdout = c.App.Writer
	opts.Stderr = c.App.ErrWriter

	tr, err := logging.StartTranscript(cfg.Log.Dir)
	if err != nil {
		log.Warn().Err(err).Msg("Session transcript disabled")
	} else {
		defer tr.Close()
		opts.Transcript = tr
		log.Info().Str("session", tr.SessionID()).Str("path", tr.Path()).Msg("Writing session transcript")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := session.New(client, agent.NewRunner(cfg.Agent.Command)).Run(ctx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, out.Message)
	return nil
}

// selfCommand is how the agent calls back into this binary
func selfCommand() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return "reviewpilot"
}
