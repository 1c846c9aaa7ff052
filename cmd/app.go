package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/reviewpilot/reviewpilot/internal/config"
	"github.com/reviewpilot/reviewpilot/internal/devops"
	"github.com/reviewpilot/reviewpilot/internal/logging"
)

// NewApp builds the command line application
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "reviewpilot",
		Usage:   "Run an AI agent review on an Azure DevOps pull request",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from `FILE` before reading configuration",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			return config.LoadDotEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			ReviewCommand(),
			ThreadCommand(),
			CommentCommand(),
			ClassifyCommand(),
			PromptCommand(),
			ConfigCommand(),
		},
	}
}

type flagKey struct {
	flag string
	key  string
}

// loadConfig reads the configuration, applies the flags that were set
// and configures logging from the result.
func loadConfig(c *cli.Context, pairs ...flagKey) (*config.Config, error) {
	overrides := map[string]interface{}{}
	for _, p := range append(pairs, flagKey{"log-level", "log.level"}) {
		if c.IsSet(p.flag) {
			overrides[p.key] = c.Value(p.flag)
		}
	}

	cfg, err := config.Load(config.LoadOptions{Path: c.String("config"), Overrides: overrides})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)
	return cfg, nil
}

func newClient(cfg *config.Config) (*devops.Client, error) {
	cred, err := cfg.Credential()
	if err != nil {
		return nil, err
	}
	return devops.NewClient(devops.Config{Credential: cred, APIVersion: cfg.DevOps.APIVersion})
}
