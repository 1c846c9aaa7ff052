// Package agent supervises the external review agent process.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultCommand is the agent binary looked up on PATH
	DefaultCommand = "claude"
	// DefaultDeniedTool keeps the agent from pushing source changes upstream
	DefaultDeniedTool = "Bash(git push:*)"
	// OutputStreamJSON asks the agent for one JSON event per line
	OutputStreamJSON = "stream-json"

	dangerousFlag = "--dangerously-skip-permissions"
	waitDelay     = 5 * time.Second
)

// Runner starts one agent process per Run call
type Runner struct {
	Command string
}

// NewRunner returns a runner for command, defaulting to DefaultCommand
func NewRunner(command string) *Runner {
	if command == "" {
		command = DefaultCommand
	}
	return &Runner{Command: command}
}

// Invocation is a single agent run
type Invocation struct {
	// PromptPath is piped to the agent's stdin
	PromptPath string
	Model      string
	WorkDir    string
	// Timeout of zero means no limit beyond ctx
	Timeout time.Duration
	// Env is appended to the current environment
	Env        []string
	DeniedTool string
	// OutputFormat is passed through; stream-json output is rendered before reaching Stdout
	OutputFormat string
	Stdout       io.Writer
	Stderr       io.Writer
}

// Args builds the command line for inv
func (r *Runner) Args(inv Invocation) []string {
	denied := inv.DeniedTool
	if denied == "" {
		denied = DefaultDeniedTool
	}
	args := []string{"-p", dangerousFlag, "--disallowedTools", denied}
	if inv.Model != "" {
		args = append(args, "--model", inv.Model)
	}
	if inv.OutputFormat != "" {
		args = append(args, "--output-format", inv.OutputFormat)
		if inv.OutputFormat == OutputStreamJSON {
			args = append(args, "--verbose")
		}
	}
	return args
}

// Run starts the agent and waits for it to exit or time out. A timeout
// wins over any exit status the killed process reports. The returned
// error is nil only for a Succeeded result.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Result, error) {
	var st tracker
	res := Result{ExitCode: -1}

	prompt, err := os.Open(inv.PromptPath)
	if err != nil {
		st.to(Failed)
		res.State, res.Err = st.state, fmt.Errorf("open prompt file: %w", err)
		return res, res.Err
	}
	defer prompt.Close()

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	stdout := inv.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := inv.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	var renderer *StreamRenderer
	if inv.OutputFormat == OutputStreamJSON {
		renderer = NewStreamRenderer(stdout)
		stdout = renderer
	}

	cmd := exec.CommandContext(runCtx, r.Command, r.Args(inv)...)
	cmd.Dir = inv.WorkDir
	cmd.Env = append(os.Environ(), inv.Env...)
	cmd.Stdin = prompt
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		st.to(Failed)
		res.State, res.Err = st.state, fmt.Errorf("start %s: %w", r.Command, err)
		return res, res.Err
	}
	st.to(Running)
	log.Info().Str("command", r.Command).Int("pid", cmd.Process.Pid).Dur("timeout", inv.Timeout).Msg("Agent started")

	waitErr := cmd.Wait()
	res.Duration = time.Since(start)
	if renderer != nil {
		renderer.Flush()
		res.FinalText = renderer.Result()
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		st.to(TimedOut)
		res.Err = fmt.Errorf("%w after %s", ErrTimedOut, inv.Timeout)
	case waitErr == nil:
		st.to(Succeeded)
		res.ExitCode = 0
	case ctx.Err() != nil:
		st.to(Failed)
		res.Err = fmt.Errorf("agent cancelled: %w", ctx.Err())
	default:
		st.to(Failed)
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Err = fmt.Errorf("agent exited with code %d", res.ExitCode)
		} else {
			res.Err = fmt.Errorf("agent failed: %w", waitErr)
		}
	}
	res.State = st.state

	ev := log.Info()
	if res.Err != nil {
		ev = log.Error().Err(res.Err)
	}
	ev.Str("state", res.State.String()).Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Msg("Agent finished")
	return res, res.Err
}
