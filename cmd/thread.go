package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/reviewpilot/reviewpilot/internal/config"
	"github.com/reviewpilot/reviewpilot/internal/reconcile"
	"github.com/reviewpilot/reviewpilot/internal/redact"
	"github.com/reviewpilot/reviewpilot/pkg/models"
)

var remoteFlagKeys = []flagKey{
	{"collection-uri", "devops.collection_uri"},
	{"organization", "devops.organization"},
	{"project", "devops.project"},
	{"repository", "devops.repository"},
	{"pr", "devops.pull_request_id"},
}

func remoteFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{Name: "collection-uri", Usage: "Collection endpoint"},
		&cli.StringFlag{Name: "organization", Aliases: []string{"org"}, Usage: "Organization"},
		&cli.StringFlag{Name: "project", Usage: "Project name"},
		&cli.StringFlag{Name: "repository", Aliases: []string{"repo"}, Usage: "Repository name"},
		&cli.IntFlag{Name: "pr", Usage: "Pull request id"},
	}, extra...)
}

func contentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "content", Usage: "Comment text"},
		&cli.StringFlag{Name: "content-file", Usage: "Read the comment text from `FILE` (- for stdin)"},
	}
}

// ThreadCommand groups the thread subcommands the agent uses to report
func ThreadCommand() *cli.Command {
	return &cli.Command{
		Name:  "thread",
		Usage: "Create, update and inspect pull request threads",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Open a thread, inline when --file is given",
				Flags: remoteFlags(append(contentFlags(),
					&cli.StringFlag{Name: "file", Usage: "Path of the file to comment on"},
					&cli.IntFlag{Name: "start-line", Usage: "First line of the commented range"},
					&cli.IntFlag{Name: "end-line", Usage: "Last line of the range (defaults to --start-line)"},
					&cli.StringFlag{Name: "status", Usage: "Thread status; derived from the content when omitted"},
					&cli.IntFlag{Name: "iteration-id", Usage: "Iteration to anchor to (defaults to the session's)"},
				)...),
				Action: runThreadCreate,
			},
			{
				Name:  "update",
				Usage: "Change a thread's status and/or one comment's content",
				Flags: remoteFlags(append(contentFlags(),
					&cli.IntFlag{Name: "thread-id", Usage: "Thread to update", Required: true},
					&cli.IntFlag{Name: "comment-id", Usage: "Comment whose content is replaced"},
					&cli.StringFlag{Name: "status", Usage: "New thread status"},
				)...),
				Action: runThreadUpdate,
			},
			{
				Name:  "list",
				Usage: "List the pull request's threads",
				Flags: remoteFlags(
					&cli.BoolFlag{Name: "mine", Usage: "Only threads opened by the authenticated identity"},
					&cli.StringFlag{Name: "status", Usage: "Only threads with this status"},
				),
				Action: runThreadList,
			},
			{
				Name:  "find",
				Usage: "Print the first thread anchored to a file",
				Flags: remoteFlags(
					&cli.StringFlag{Name: "file", Usage: "File path", Required: true},
				),
				Action: runThreadFind,
			},
		},
	}
}

func runThreadCreate(c *cli.Context) error {
	cfg, err := loadConfig(c, remoteFlagKeys...)
	if err != nil {
		return err
	}
	r, err := newReconciler(cfg)
	if err != nil {
		return err
	}
	content, err := readContent(c)
	if err != nil {
		return err
	}
	status, err := parseStatus(c.String("status"))
	if err != nil {
		return err
	}

	req := reconcile.CreateRequest{Content: content, Status: status, IterationID: cfg.DevOps.IterationID}
	if c.IsSet("iteration-id") {
		req.IterationID = c.Int("iteration-id")
	}
	if file := c.String("file"); file != "" {
		req.Anchor = &models.FileAnchor{Path: file, StartLine: c.Int("start-line"), EndLine: c.Int("end-line")}
	}

	out, err := r.CreateThread(c.Context, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, out.String())
	return nil
}

func runThreadUpdate(c *cli.Context) error {
	cfg, err := loadConfig(c, remoteFlagKeys...)
	if err != nil {
		return err
	}
	r, err := newReconciler(cfg)
	if err != nil {
		return err
	}
	status, err := parseStatus(c.String("status"))
	if err != nil {
		return err
	}
	req := reconcile.UpdateRequest{ThreadID: c.Int("thread-id"), Status: status, CommentID: c.Int("comment-id")}
	if c.IsSet("content") || c.IsSet("content-file") {
		if req.CommentID <= 0 {
			return fmt.Errorf("--comment-id is required to change content")
		}
		if req.Content, err = readContent(c); err != nil {
			return err
		}
	}

	out, err := r.UpdateThread(c.Context, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, out.String())
	return nil
}

func runThreadList(c *cli.Context) error {
	cfg, err := loadConfig(c, remoteFlagKeys...)
	if err != nil {
		return err
	}
	if err := cfg.ValidatePullRequest(); err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	var status models.ThreadStatus
	if s := c.String("status"); s != "" {
		if status, err = models.ParseThreadStatus(s); err != nil {
			return err
		}
	}

	threads, err := client.ListThreads(c.Context, cfg.PullRequestRef())
	if err != nil {
		return fmt.Errorf("failed to list threads: %w", err)
	}

	var mine string
	if c.Bool("mine") {
		me, err := client.AuthenticatedIdentity(c.Context, cfg.CollectionURI())
		if err != nil {
			return fmt.Errorf("failed to resolve identity: %w", err)
		}
		mine = me.ID
	}

	filtered := threads[:0]
	for _, t := range threads {
		if status != "" && t.Status != status {
			continue
		}
		if mine != "" {
			first, ok := t.FirstComment()
			if !ok || first.Author.ID != mine {
				continue
			}
		}
		filtered = append(filtered, t)
	}
	printThreads(c.App.Writer, filtered)
	return nil
}

func runThreadFind(c *cli.Context) error {
	cfg, err := loadConfig(c, remoteFlagKeys...)
	if err != nil {
		return err
	}
	if err := cfg.ValidatePullRequest(); err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	path := models.FileAnchor{Path: c.String("file")}.Normalize().Path

	thread, err := client.FindThread(c.Context, cfg.PullRequestRef(), func(t models.Thread) bool {
		return t.Anchor != nil && strings.EqualFold(t.Anchor.Path, path)
	})
	if err != nil {
		return fmt.Errorf("failed to search threads: %w", err)
	}
	if thread == nil {
		fmt.Fprintf(c.App.Writer, "no thread on %s\n", path)
		return nil
	}
	printThreads(c.App.Writer, []models.Thread{*thread})
	return nil
}

// CommentCommand groups the comment subcommands
func CommentCommand() *cli.Command {
	return &cli.Command{
		Name:  "comment",
		Usage: "Manage single comments",
		Subcommands: []*cli.Command{
			{
				Name:  "delete",
				Usage: "Delete one comment; the thread itself is kept",
				Flags: remoteFlags(
					&cli.IntFlag{Name: "thread-id", Required: true},
					&cli.IntFlag{Name: "comment-id", Required: true},
				),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, remoteFlagKeys...)
					if err != nil {
						return err
					}
					r, err := newReconciler(cfg)
					if err != nil {
						return err
					}
					out, err := r.DeleteComment(c.Context, c.Int("thread-id"), c.Int("comment-id"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, out.String())
					return nil
				},
			},
		},
	}
}

func newReconciler(cfg *config.Config) (*reconcile.Reconciler, error) {
	if err := cfg.ValidatePullRequest(); err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	r := reconcile.New(client, cfg.PullRequestRef())
	if cfg.Review.RedactSecrets {
		redactor, err := redact.New()
		if err != nil {
			log.Warn().Err(err).Msg("Secret redaction disabled")
		} else {
			r.WithScrubber(redactor)
		}
	}
	return r, nil
}

func parseStatus(s string) (models.ThreadStatus, error) {
	if s == "" {
		return "", nil
	}
	return models.ParseThreadStatus(s)
}

func readContent(c *cli.Context) (string, error) {
	if c.IsSet("content") {
		return c.String("content"), nil
	}
	path := c.String("content-file")
	switch path {
	case "":
		return "", fmt.Errorf("one of --content or --content-file is required")
	case "-":
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read content file: %w", err)
	}
	return string(data), nil
}

func printThreads(w io.Writer, threads []models.Thread) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tLOCATION\tAUTHOR\tCOMMENT IDS\tFIRST LINE")
	for _, t := range threads {
		location := "(pull request)"
		if t.Anchor != nil {
			location = fmt.Sprintf("%s:%d-%d", t.Anchor.Path, t.Anchor.StartLine, t.Anchor.EndLine)
		}
		var author, firstLine string
		if first, ok := t.FirstComment(); ok {
			author = first.Author.DisplayName
			firstLine, _, _ = strings.Cut(strings.TrimSpace(first.Content), "\n")
			firstLine = shorten(firstLine, 80)
		}
		ids := make([]string, 0, len(t.Comments))
		for _, cm := range t.Comments {
			if !cm.Deleted {
				ids = append(ids, fmt.Sprint(cm.ID))
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, location, author, strings.Join(ids, ","), firstLine)
	}
	tw.Flush()
}

// shorten keeps the first n runes of s
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
