package agent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test that requires Unix shell scripts")
	}
}

func writeTempCommand(t *testing.T, script string) string {
	t.Helper()
	skipIfWindows(t)
	path := filepath.Join(t.TempDir(), "agent")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writePrompt(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestArgs(t *testing.T) {
	r := NewRunner("")
	assert.Equal(t, DefaultCommand, r.Command)

	assert.Equal(t,
		[]string{"-p", "--dangerously-skip-permissions", "--disallowedTools", "Bash(git push:*)"},
		r.Args(Invocation{}))

	assert.Equal(t,
		[]string{"-p", "--dangerously-skip-permissions", "--disallowedTools", "Bash(git commit:*)", "--model", "opus", "--output-format", "stream-json", "--verbose"},
		r.Args(Invocation{Model: "opus", DeniedTool: "Bash(git commit:*)", OutputFormat: OutputStreamJSON}))
}

func TestRun_SucceedsAndStreamsOutput(t *testing.T) {
	cmd := writeTempCommand(t, "#!/bin/sh\necho \"args: $@\"\necho \"prompt: $(cat)\"\necho \"pr: $REVIEWPILOT_PR_ID\"\necho oops >&2\n")
	var stdout, stderr bytes.Buffer

	res, err := NewRunner(cmd).Run(context.Background(), Invocation{
		PromptPath: writePrompt(t, "review this"),
		Model:      "sonnet",
		WorkDir:    t.TempDir(),
		Env:        []string{"REVIEWPILOT_PR_ID=42"},
		Stdout:     &stdout,
		Stderr:     &stderr,
	})

	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, stdout.String(), "--model sonnet")
	assert.Contains(t, stdout.String(), "--disallowedTools Bash(git push:*)")
	assert.Contains(t, stdout.String(), "prompt: review this")
	assert.Contains(t, stdout.String(), "pr: 42")
	assert.Equal(t, "oops\n", stderr.String())
}

func TestRun_NonZeroExit(t *testing.T) {
	cmd := writeTempCommand(t, "#!/bin/sh\ncat >/dev/null\nexit 3\n")

	res, err := NewRunner(cmd).Run(context.Background(), Invocation{PromptPath: writePrompt(t, "x")})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRun_TimeoutWinsOverLaterSuccess(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "finished")
	cmd := writeTempCommand(t, "#!/bin/sh\nsleep 10\ntouch "+marker+"\nexit 0\n")

	start := time.Now()
	res, err := NewRunner(cmd).Run(context.Background(), Invocation{
		PromptPath: writePrompt(t, "x"),
		Timeout:    300 * time.Millisecond,
	})

	require.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, TimedOut, res.State)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 8*time.Second)
	assert.NoFileExists(t, marker)
}

func TestRun_MissingPromptFile(t *testing.T) {
	res, err := NewRunner("true").Run(context.Background(), Invocation{PromptPath: filepath.Join(t.TempDir(), "missing.md")})
	require.Error(t, err)
	assert.Equal(t, Failed, res.State)
}

func TestRun_StreamJSONCapturesResult(t *testing.T) {
	script := "#!/bin/sh\ncat >/dev/null\n" +
		"echo '{\"type\":\"system\",\"subtype\":\"init\",\"model\":\"sonnet\"}'\n" +
		"echo '{\"type\":\"assistant\",\"message\":{\"content\":[{\"type\":\"tool_use\",\"name\":\"Bash\",\"input\":{\"command\":\"git diff main\"}}]}}'\n" +
		"echo '{\"type\":\"result\",\"subtype\":\"success\",\"result\":\"**Status:** ✅ Passed\",\"num_turns\":4}'\n"
	cmd := writeTempCommand(t, script)
	var stdout bytes.Buffer

	res, err := NewRunner(cmd).Run(context.Background(), Invocation{
		PromptPath:   writePrompt(t, "x"),
		OutputFormat: OutputStreamJSON,
		Stdout:       &stdout,
	})

	require.NoError(t, err)
	assert.Equal(t, "**Status:** ✅ Passed", res.FinalText)
	assert.Contains(t, stdout.String(), "[agent] session started (model sonnet)")
	assert.Contains(t, stdout.String(), "[tool] Bash: git diff main")
	assert.Contains(t, stdout.String(), "finished after 4 turns")
}

func TestStreamRenderer(t *testing.T) {
	var out bytes.Buffer
	s := NewStreamRenderer(&out)

	// split across writes
	_, _ = s.Write([]byte(`{"type":"assistant","message":{"content":"first `))
	_, _ = s.Write([]byte("half\"}}\nplain text line\n"))
	// trailing comma repaired
	_, _ = s.Write([]byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"second"},]}}` + "\n"))
	_, _ = s.Write([]byte(`{"type":"assistant","message":{"content":"no newline"}}`))
	s.Flush()

	assert.Equal(t, "first half\nsecond\nno newline", s.Result())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{"first half", "plain text line", "second", "no newline"}, lines)
}

func TestTrackerTerminalStatesAreFinal(t *testing.T) {
	var st tracker
	assert.False(t, st.to(Succeeded))
	assert.True(t, st.to(Running))
	assert.True(t, st.to(TimedOut))
	assert.False(t, st.to(Succeeded))
	assert.False(t, st.to(Failed))
	assert.Equal(t, TimedOut, st.state)
}
