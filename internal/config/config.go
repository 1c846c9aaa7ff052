package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/reviewpilot/reviewpilot/internal/auth"
	"github.com/reviewpilot/reviewpilot/internal/logging"
	"github.com/reviewpilot/reviewpilot/internal/prompts"
	"github.com/reviewpilot/reviewpilot/pkg/models"
)

// EnvPrefix is the prefix of every environment variable read into the config
const EnvPrefix = "REVIEWPILOT_"

var (
	ErrMissingCredential     = errors.New("missing access token")
	ErrMissingPullRequest    = errors.New("missing pull request id")
	ErrMultiplePromptSources = errors.New("only one of prompt.custom, prompt.custom_file, prompt.raw and prompt.raw_file may be set")
	ErrQuoteInPrompt         = errors.New("inline prompt text must not contain a double quote")
)

// Config represents the application configuration
type Config struct {
	DevOps DevOpsConfig `koanf:"devops"`
	Agent  AgentConfig  `koanf:"agent"`
	Review ReviewConfig `koanf:"review"`
	Prompt PromptConfig `koanf:"prompt"`
	Log    LogConfig    `koanf:"log"`
}

// DevOpsConfig locates the pull request and holds the credential
type DevOpsConfig struct {
	CollectionURI string `koanf:"collection_uri"`
	Organization  string `koanf:"organization"`
	Project       string `koanf:"project"`
	Repository    string `koanf:"repository"`
	PullRequestID int    `koanf:"pull_request_id"`
	SourceBranch  string `koanf:"source_branch"`
	IterationID   int    `koanf:"iteration_id"`
	Token         string `koanf:"token"`
	AuthScheme    string `koanf:"auth_scheme"`
	APIVersion    string `koanf:"api_version"`
}

type AgentConfig struct {
	Command        string `koanf:"command"`
	Model          string `koanf:"model"`
	TimeoutMinutes int    `koanf:"timeout_minutes"`
	WorkingDir     string `koanf:"working_dir"`
	OutputFormat   string `koanf:"output_format"`
	DeniedTool     string `koanf:"denied_tool"`
}

type ReviewConfig struct {
	Bugs              bool   `koanf:"bugs"`
	Performance       bool   `koanf:"performance"`
	BestPractices     bool   `koanf:"best_practices"`
	WholeDiff         bool   `koanf:"whole_diff"`
	AdditionalPrompts string `koanf:"additional_prompts"`
	// RedactSecrets scrubs credentials from comments before they are posted
	RedactSecrets bool `koanf:"redact_secrets"`
}

// PromptConfig holds the base template and the four prompt sources, of
// which at most one may be set.
type PromptConfig struct {
	TemplateFile string `koanf:"template_file"`
	Custom       string `koanf:"custom"`
	CustomFile   string `koanf:"custom_file"`
	Raw          string `koanf:"raw"`
	RawFile      string `koanf:"raw_file"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
	Dir    string `koanf:"dir"`
}

// pipelineVars maps the hosted pipeline's predefined variables onto config keys
var pipelineVars = map[string]string{
	"SYSTEM_COLLECTIONURI":             "devops.collection_uri",
	"SYSTEM_TEAMPROJECT":               "devops.project",
	"BUILD_REPOSITORY_NAME":            "devops.repository",
	"SYSTEM_PULLREQUEST_PULLREQUESTID": "devops.pull_request_id",
	"SYSTEM_PULLREQUEST_SOURCEBRANCH":  "devops.source_branch",
	"SYSTEM_ACCESSTOKEN":               "devops.token",
}

// DefaultPaths are tried in order when no config file is given
var DefaultPaths = []string{"./reviewpilot.toml", "$HOME/.reviewpilot.toml"}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"devops.auth_scheme":    "basic",
		"devops.api_version":    "7.1",
		"agent.command":         "claude",
		"agent.timeout_minutes": 30,
		"agent.working_dir":     ".",
		"agent.denied_tool":     "Bash(git push:*)",
		"review.redact_secrets": true,
		"log.level":             "info",
		"log.pretty":            true,
		"log.dir":               "review_logs",
	}
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// Path is an explicit TOML file; empty tries DefaultPaths
	Path string
	// Overrides are applied last, typically from command line flags
	Overrides map[string]interface{}
}

// Load layers defaults, the TOML file, pipeline variables, REVIEWPILOT_*
// variables and overrides, later sources winning.
func Load(opts LoadOptions) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range DefaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return pipelineVars[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading pipeline variables: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("error applying overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// envKey turns REVIEWPILOT_DEVOPS_PULL_REQUEST_ID into devops.pull_request_id.
// Only the first underscore after the prefix separates section and key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok || key == "" {
		return ""
	}
	return section + "." + key
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("error loading %s: %w", p, err)
		}
	}
	return nil
}

// CollectionURI returns the explicit collection endpoint or the one
// derived from the organization name.
func (c *Config) CollectionURI() string {
	if uri := strings.TrimRight(c.DevOps.CollectionURI, "/"); uri != "" {
		return uri
	}
	if c.DevOps.Organization != "" {
		return "https://dev.azure.com/" + c.DevOps.Organization
	}
	return ""
}

// PullRequestRef identifies the configured pull request. ID may be zero
// when only a source branch is configured.
func (c *Config) PullRequestRef() models.PullRequestRef {
	return models.PullRequestRef{
		CollectionURI: c.CollectionURI(),
		Project:       c.DevOps.Project,
		Repository:    c.DevOps.Repository,
		ID:            c.DevOps.PullRequestID,
	}
}

// Credential builds the credential from the token and scheme
func (c *Config) Credential() (auth.Credential, error) {
	if strings.TrimSpace(c.DevOps.Token) == "" {
		return auth.Credential{}, ErrMissingCredential
	}
	scheme, err := auth.ParseScheme(c.DevOps.AuthScheme)
	if err != nil {
		return auth.Credential{}, err
	}
	return auth.NewCredential(c.DevOps.Token, scheme)
}

// Timeout returns the agent timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Agent.TimeoutMinutes) * time.Minute
}

// ReviewPolicy builds the prompt policy from the review section
func (c *Config) ReviewPolicy() prompts.Policy {
	return prompts.Policy{
		Bugs:          c.Review.Bugs,
		Performance:   c.Review.Performance,
		BestPractices: c.Review.BestPractices,
		WholeDiff:     c.Review.WholeDiff,
		Directives:    prompts.SplitDirectives(c.Review.AdditionalPrompts),
	}
}

// ValidateRemote checks what every command talking to the review service needs
func (c *Config) ValidateRemote() error {
	if _, err := c.Credential(); err != nil {
		return err
	}
	switch {
	case c.CollectionURI() == "":
		return fmt.Errorf("devops.collection_uri or devops.organization is required")
	case c.DevOps.Project == "":
		return fmt.Errorf("devops.project is required")
	case c.DevOps.Repository == "":
		return fmt.Errorf("devops.repository is required")
	}
	return nil
}

// ValidatePullRequest requires an explicit pull request id
func (c *Config) ValidatePullRequest() error {
	if err := c.ValidateRemote(); err != nil {
		return err
	}
	if c.DevOps.PullRequestID <= 0 {
		return ErrMissingPullRequest
	}
	return nil
}

// Validate runs every precondition of a review session
func (c *Config) Validate() error {
	if err := c.ValidateRemote(); err != nil {
		return err
	}
	if c.DevOps.PullRequestID <= 0 && c.DevOps.SourceBranch == "" {
		return fmt.Errorf("%w (set devops.pull_request_id or devops.source_branch)", ErrMissingPullRequest)
	}
	if c.Agent.TimeoutMinutes <= 0 {
		return fmt.Errorf("agent.timeout_minutes must be positive, got %d", c.Agent.TimeoutMinutes)
	}
	if c.Agent.Command == "" {
		return fmt.Errorf("agent.command is required")
	}
	return c.Prompt.Validate()
}

// Validate enforces a single prompt source and the quote rule for inline text
func (p PromptConfig) Validate() error {
	set := 0
	for _, v := range []string{p.Custom, p.CustomFile, p.Raw, p.RawFile} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set > 1 {
		return ErrMultiplePromptSources
	}
	if strings.Contains(p.Custom, `"`) || strings.Contains(p.Raw, `"`) {
		return ErrQuoteInPrompt
	}
	return nil
}

// MarshalZerologObject logs the config with the token masked
func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("collection_uri", c.CollectionURI()).
		Str("project", c.DevOps.Project).
		Str("repository", c.DevOps.Repository).
		Int("pull_request_id", c.DevOps.PullRequestID).
		Str("source_branch", c.DevOps.SourceBranch).
		Str("token", logging.MaskSecret(c.DevOps.Token)).
		Str("auth_scheme", c.DevOps.AuthScheme).
		Str("agent", c.Agent.Command).
		Str("model", c.Agent.Model).
		Int("timeout_minutes", c.Agent.TimeoutMinutes).
		Bool("whole_diff", c.Review.WholeDiff)
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# ReviewPilot Configuration

[devops]
# collection_uri = "https://dev.azure.com/your-org"
organization = "your-org"
project = "your-project"
repository = "your-repo"
# pull_request_id = 42
# token is usually supplied through REVIEWPILOT_DEVOPS_TOKEN or SYSTEM_ACCESSTOKEN
auth_scheme = "basic"

[agent]
command = "claude"
# model = "sonnet"
timeout_minutes = 30
working_dir = "."

[review]
bugs = true
performance = false
best_practices = false
whole_diff = false
additional_prompts = ""
redact_secrets = true

[prompt]
# template_file = "review-template.md"
# custom = "Pay extra attention to error handling."

[log]
level = "info"
pretty = true
dir = "review_logs"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}
