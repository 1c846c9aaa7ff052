// Package session runs one review of one pull request: it resolves the
// pull request, compiles the prompt and supervises the agent.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/reviewpilot/reviewpilot/internal/agent"
	"github.com/reviewpilot/reviewpilot/internal/auth"
	"github.com/reviewpilot/reviewpilot/internal/config"
	"github.com/reviewpilot/reviewpilot/internal/devops"
	"github.com/reviewpilot/reviewpilot/internal/logging"
	"github.com/reviewpilot/reviewpilot/internal/prompts"
	"github.com/reviewpilot/reviewpilot/internal/verdict"
	"github.com/reviewpilot/reviewpilot/pkg/models"
)

// ErrAgentNotFound is returned when the agent binary is not on PATH
var ErrAgentNotFound = errors.New("agent executable not found")

// Remote is the read side of the review service used by a session
type Remote interface {
	GetPullRequest(ctx context.Context, ref models.PullRequestRef) (*models.PullRequest, error)
	FindPullRequestBySourceBranch(ctx context.Context, ref models.PullRequestRef, branch string) (*models.PullRequest, error)
	LatestIteration(ctx context.Context, ref models.PullRequestRef) (*models.Iteration, error)
	ListWorkItems(ctx context.Context, ref models.PullRequestRef) ([]models.WorkItemRef, error)
}

// AgentRunner runs the agent process
type AgentRunner interface {
	Run(ctx context.Context, inv agent.Invocation) (agent.Result, error)
}

// Options is everything one session needs
type Options struct {
	// Ref.ID may be zero when SourceBranch is set
	Ref          models.PullRequestRef
	SourceBranch string
	Credential   auth.Credential

	Policy prompts.Policy
	Prompt config.PromptSource

	AgentCommand string
	Model        string
	Timeout      time.Duration
	WorkDir      string
	DeniedTool   string
	OutputFormat string
	// ToolCommand is how the agent calls this program back
	ToolCommand string
	// StageDir holds the prompt file while the agent runs; empty uses the temp dir
	StageDir string

	Stdout     io.Writer
	Stderr     io.Writer
	Transcript *logging.Transcript
}

// OptionsFromConfig maps a validated config onto session options
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	cred, err := cfg.Credential()
	if err != nil {
		return Options{}, err
	}
	src, err := cfg.Prompt.ResolvePrompt()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Ref:          cfg.PullRequestRef(),
		SourceBranch: cfg.DevOps.SourceBranch,
		Credential:   cred,
		Policy:       cfg.ReviewPolicy(),
		Prompt:       src,
		AgentCommand: cfg.Agent.Command,
		Model:        cfg.Agent.Model,
		Timeout:      cfg.Timeout(),
		WorkDir:      cfg.Agent.WorkingDir,
		DeniedTool:   cfg.Agent.DeniedTool,
		OutputFormat: cfg.Agent.OutputFormat,
	}, nil
}

// Outcome is the single terminal result of a session
type Outcome struct {
	Succeeded   bool
	Message     string
	PullRequest *models.PullRequest
	Iteration   *models.Iteration
	Agent       agent.Result
	// Verdict classifies the agent's final message when one was captured
	Verdict *verdict.Result
}

// Orchestrator sequences the steps of a session. Each step runs once;
// the first failure ends the session.
type Orchestrator struct {
	remote   Remote
	runner   AgentRunner
	lookPath func(string) (string, error)
}

// New creates an orchestrator
func New(remote Remote, runner AgentRunner) *Orchestrator {
	return &Orchestrator{remote: remote, runner: runner, lookPath: exec.LookPath}
}

// Run executes the session. The error is nil exactly when the outcome succeeded.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Outcome, error) {
	out, err := o.run(ctx, opts)
	if err != nil {
		out.Succeeded = false
		out.Message = err.Error()
		opts.Transcript.Log("Session failed: %v", err)
		log.Error().Err(err).Msg("Review session failed")
		return out, err
	}
	out.Succeeded = true
	out.Message = fmt.Sprintf("review of pull request %d completed", out.PullRequest.ID)
	opts.Transcript.Log("Session succeeded")
	log.Info().Int("pr", out.PullRequest.ID).Dur("agent_duration", out.Agent.Duration).Msg("Review session completed")
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, opts Options) (Outcome, error) {
	var out Outcome
	if err := o.preconditions(opts); err != nil {
		return out, err
	}

	ref, err := o.resolve(ctx, opts)
	if err != nil {
		return out, err
	}

	pr, err := o.remote.GetPullRequest(ctx, ref)
	if err != nil {
		return out, fmt.Errorf("fetch pull request: %w", err)
	}
	out.PullRequest = pr
	opts.Transcript.Log("Pull request %d: %s", pr.ID, pr.Title)

	iteration, err := o.remote.LatestIteration(ctx, ref)
	if err != nil {
		return out, fmt.Errorf("fetch iteration: %w", err)
	}
	out.Iteration = iteration
	opts.Transcript.Log("Latest iteration: %d", iteration.ID)

	workItems, err := o.remote.ListWorkItems(ctx, ref)
	if err != nil {
		return out, fmt.Errorf("fetch work items: %w", err)
	}

	doc := buildDocument(opts, pr, iteration, workItems)
	opts.Transcript.Block("PROMPT ("+string(doc.Mode)+")", doc.Text)

	promptPath, cleanup, err := stagePrompt(opts.StageDir, doc)
	if err != nil {
		return out, err
	}
	defer cleanup()

	env := AgentEnv{
		Credential:    opts.Credential,
		CollectionURI: ref.CollectionURI,
		Project:       ref.Project,
		Repository:    ref.Repository,
		PullRequestID: ref.ID,
		IterationID:   iteration.ID,
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	opts.Transcript.Section("AGENT OUTPUT")

	log.Info().Str("pr", ref.String()).Int("iteration", iteration.ID).Str("mode", string(doc.Mode)).Msg("Starting review agent")
	res, err := o.runner.Run(ctx, agent.Invocation{
		PromptPath:   promptPath,
		Model:        opts.Model,
		WorkDir:      opts.WorkDir,
		Timeout:      opts.Timeout,
		Env:          env.Environ(),
		DeniedTool:   opts.DeniedTool,
		OutputFormat: opts.OutputFormat,
		Stdout:       io.MultiWriter(stdout, opts.Transcript.Writer()),
		Stderr:       io.MultiWriter(stderr, opts.Transcript.Writer()),
	})
	out.Agent = res
	if err != nil {
		if errors.Is(err, agent.ErrTimedOut) {
			return out, fmt.Errorf("review agent timed out after %s and was terminated", opts.Timeout)
		}
		return out, fmt.Errorf("review agent failed: %w", err)
	}

	if strings.TrimSpace(res.FinalText) != "" {
		v := verdict.Classify(res.FinalText)
		out.Verdict = &v
		log.Info().Str("verdict", v.Verdict.String()).Str("shape", v.Shape.String()).Msg("Classified agent summary")
	}
	return out, nil
}

func (o *Orchestrator) preconditions(opts Options) error {
	if opts.Credential.IsZero() {
		return config.ErrMissingCredential
	}
	if opts.Ref.ID <= 0 && opts.SourceBranch == "" {
		return config.ErrMissingPullRequest
	}
	if opts.Ref.CollectionURI == "" || opts.Ref.Project == "" || opts.Ref.Repository == "" {
		return errors.New("collection endpoint, project and repository are required")
	}
	if opts.Prompt.Raw && strings.TrimSpace(opts.Prompt.Text) == "" {
		return errors.New("raw prompt is empty")
	}
	command := opts.AgentCommand
	if command == "" {
		command = agent.DefaultCommand
	}
	if _, err := o.lookPath(command); err != nil {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, command)
	}
	return nil
}

// resolve fills in the pull request id, searching by source branch when needed
func (o *Orchestrator) resolve(ctx context.Context, opts Options) (models.PullRequestRef, error) {
	ref := opts.Ref
	if ref.ID > 0 {
		return ref, nil
	}
	pr, err := o.remote.FindPullRequestBySourceBranch(ctx, ref, opts.SourceBranch)
	if err != nil {
		return ref, fmt.Errorf("find pull request for branch %s: %w", opts.SourceBranch, err)
	}
	if pr == nil {
		return ref, fmt.Errorf("%w: no active pull request from branch %s", config.ErrMissingPullRequest, devops.NormalizeBranchRef(opts.SourceBranch))
	}
	ref.ID = pr.ID
	log.Info().Int("pr", pr.ID).Str("branch", opts.SourceBranch).Msg("Resolved pull request from source branch")
	return ref, nil
}

func buildDocument(opts Options, pr *models.PullRequest, iteration *models.Iteration, workItems []models.WorkItemRef) models.PromptDocument {
	if opts.Prompt.Raw {
		return prompts.Raw(opts.Prompt.Text, opts.Policy)
	}
	ids := make([]string, 0, len(workItems))
	for _, wi := range workItems {
		ids = append(ids, wi.ID)
	}
	return prompts.Compile(prompts.Input{
		Template:     opts.Prompt.Template,
		Policy:       opts.Policy,
		CustomPrompt: opts.Prompt.Text,
		ToolCommand:  opts.ToolCommand,
		Vars: map[string]string{
			prompts.VarTitle:         pr.Title,
			prompts.VarDescription:   pr.Description,
			prompts.VarSourceBranch:  pr.SourceRefName,
			prompts.VarTargetBranch:  pr.TargetRefName,
			prompts.VarPullRequestID: strconv.Itoa(pr.ID),
			prompts.VarIterationID:   strconv.Itoa(iteration.ID),
			prompts.VarWorkItems:     strings.Join(ids, "\n"),
		},
	})
}

// stagePrompt writes the document to a private file removed by cleanup
func stagePrompt(dir string, doc models.PromptDocument) (string, func(), error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "reviewpilot_prompt_"+uuid.NewString()+".md")
	if err := os.WriteFile(path, []byte(doc.Text), 0o600); err != nil {
		return "", func() {}, fmt.Errorf("stage prompt: %w", err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}
