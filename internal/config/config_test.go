package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/auth"
	"github.com/reviewpilot/reviewpilot/internal/prompts"
	"github.com/reviewpilot/reviewpilot/pkg/models"
)

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range pipelineVars {
		t.Setenv(name, "")
	}
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, EnvPrefix) {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "empty.toml", "")

	cfg, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.Agent.Command)
	assert.Equal(t, 30*time.Minute, cfg.Timeout())
	assert.Equal(t, "7.1", cfg.DevOps.APIVersion)
	assert.Equal(t, "basic", cfg.DevOps.AuthScheme)
	assert.Equal(t, "Bash(git push:*)", cfg.Agent.DeniedTool)
	assert.Equal(t, "review_logs", cfg.Log.Dir)
	assert.True(t, cfg.Review.RedactSecrets)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "reviewpilot.toml", `
[devops]
organization = "contoso"
project = "from-file"
repository = "web"

[agent]
timeout_minutes = 10
model = "sonnet"

[review]
bugs = true
additional_prompts = "Check SQL, Verify logging"
`)
	t.Setenv("SYSTEM_TEAMPROJECT", "from-pipeline")
	t.Setenv("SYSTEM_PULLREQUEST_PULLREQUESTID", "17")
	t.Setenv("SYSTEM_ACCESSTOKEN", "pipeline-token")
	t.Setenv("REVIEWPILOT_DEVOPS_PROJECT", "from-env")
	t.Setenv("REVIEWPILOT_AGENT_TIMEOUT_MINUTES", "15")

	cfg, err := Load(LoadOptions{Path: path, Overrides: map[string]interface{}{"agent.model": "opus"}})
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.DevOps.Project)
	assert.Equal(t, 17, cfg.DevOps.PullRequestID)
	assert.Equal(t, "pipeline-token", cfg.DevOps.Token)
	assert.Equal(t, 15, cfg.Agent.TimeoutMinutes)
	assert.Equal(t, "opus", cfg.Agent.Model)
	assert.Equal(t, "https://dev.azure.com/contoso", cfg.CollectionURI())
	assert.Equal(t, models.PullRequestRef{
		CollectionURI: "https://dev.azure.com/contoso",
		Project:       "from-env",
		Repository:    "web",
		ID:            17,
	}, cfg.PullRequestRef())
	assert.Equal(t, prompts.Policy{Bugs: true, Directives: []string{"Check SQL", "Verify logging"}}, cfg.ReviewPolicy())
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.toml")})
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "devops.pull_request_id", envKey("REVIEWPILOT_DEVOPS_PULL_REQUEST_ID"))
	assert.Equal(t, "log.level", envKey("REVIEWPILOT_LOG_LEVEL"))
	assert.Equal(t, "", envKey("REVIEWPILOT_DEBUG"))
}

func TestCollectionURIPrefersExplicit(t *testing.T) {
	cfg := Config{DevOps: DevOpsConfig{CollectionURI: "https://tfs.local/DefaultCollection/", Organization: "ignored"}}
	assert.Equal(t, "https://tfs.local/DefaultCollection", cfg.CollectionURI())
}

func validConfig() *Config {
	return &Config{
		DevOps: DevOpsConfig{
			Organization:  "contoso",
			Project:       "proj",
			Repository:    "repo",
			PullRequestID: 5,
			Token:         "secret-token",
			AuthScheme:    "bearer",
		},
		Agent: AgentConfig{Command: "claude", TimeoutMinutes: 5},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing token", func(c *Config) { c.DevOps.Token = " " }, ErrMissingCredential},
		{"missing pull request", func(c *Config) { c.DevOps.PullRequestID = 0 }, ErrMissingPullRequest},
		{"source branch instead of id", func(c *Config) {
			c.DevOps.PullRequestID = 0
			c.DevOps.SourceBranch = "feature/x"
		}, nil},
		{"two prompt sources", func(c *Config) {
			c.Prompt.Custom = "be brief"
			c.Prompt.RawFile = "prompt.md"
		}, ErrMultiplePromptSources},
		{"quote in custom prompt", func(c *Config) { c.Prompt.Custom = `say "hi"` }, ErrQuoteInPrompt},
		{"quote in raw prompt", func(c *Config) { c.Prompt.Raw = `say "hi"` }, ErrQuoteInPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	cfg := validConfig()
	cfg.Agent.TimeoutMinutes = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.DevOps.AuthScheme = "kerberos"
	assert.Error(t, cfg.Validate())
}

func TestCredential(t *testing.T) {
	cred, err := validConfig().Credential()
	require.NoError(t, err)
	assert.Equal(t, auth.SchemeBearer, cred.Scheme())
	assert.Equal(t, "secret-token", cred.Secret())
}

func TestResolvePrompt(t *testing.T) {
	tpl := writeFile(t, "tpl.md", "Base {{VAR:custom_prompt}}")
	custom := writeFile(t, "custom.md", `Quotes "are" fine in files`)
	raw := writeFile(t, "raw.md", "Raw body")

	src, err := PromptConfig{TemplateFile: tpl, CustomFile: custom}.ResolvePrompt()
	require.NoError(t, err)
	assert.Equal(t, PromptSource{Template: "Base {{VAR:custom_prompt}}", Text: `Quotes "are" fine in files`}, src)

	src, err = PromptConfig{RawFile: raw}.ResolvePrompt()
	require.NoError(t, err)
	assert.Equal(t, PromptSource{Raw: true, Text: "Raw body"}, src)

	src, err = PromptConfig{Raw: "inline raw"}.ResolvePrompt()
	require.NoError(t, err)
	assert.True(t, src.Raw)

	_, err = PromptConfig{CustomFile: filepath.Join(t.TempDir(), "missing.md")}.ResolvePrompt()
	assert.Error(t, err)
}

func TestInitConfigAndLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "reviewpilot.toml")

	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path))

	cfg, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "your-org", cfg.DevOps.Organization)
	assert.True(t, cfg.Review.Bugs)

	dotenv := writeFile(t, ".env", "REVIEWPILOT_DEVOPS_TOKEN=from-dotenv\n")
	t.Setenv("REVIEWPILOT_DEVOPS_TOKEN", "")
	require.NoError(t, os.Unsetenv("REVIEWPILOT_DEVOPS_TOKEN"))
	require.NoError(t, LoadDotEnv(dotenv, filepath.Join(dir, "missing.env")))

	cfg, err = Load(LoadOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.DevOps.Token)
}

func TestConfigLogMasksToken(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().EmbedObject(validConfig()).Msg("config")

	assert.NotContains(t, buf.String(), "secret-token")
	assert.Contains(t, buf.String(), `"token":"se****en"`)
	assert.Contains(t, buf.String(), `"collection_uri":"https://dev.azure.com/contoso"`)
}
