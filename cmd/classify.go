package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/reviewpilot/reviewpilot/internal/verdict"
)

// ClassifyCommand prints the verdict for a comment or review
func ClassifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Show the thread status a comment would get",
		ArgsUsage: "[FILE]",
		Action: func(c *cli.Context) error {
			var (
				data []byte
				err  error
			)
			if path := c.Args().First(); path != "" && path != "-" {
				data, err = os.ReadFile(path)
			} else {
				data, err = io.ReadAll(c.App.Reader)
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			text := string(data)
			if verdict.IsNoIssues(text) {
				fmt.Fprintln(c.App.Writer, "no-issues: nothing would be posted")
				return nil
			}
			res := verdict.Classify(text)
			fmt.Fprintf(c.App.Writer, "verdict: %s\nshape: %s\nstatus: %s\n", res.Verdict, res.Shape, res.Verdict.ThreadStatus())
			if res.Label != "" {
				fmt.Fprintf(c.App.Writer, "label: %s\n", res.Label)
			}
			if res.Shape == verdict.ShapeStatusTable {
				fmt.Fprintf(c.App.Writer, "rows: %d\n", res.Rows)
			}
			return nil
		},
	}
}
