package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/readysetinsure/dashboard/internal/transcript"
)

type ParseCmd struct {
	flags  *Flags
	asJSON bool
}

// NewParseCmd creates a new parse command
func NewParseCmd(flags *Flags) *ParseCmd {
	return &ParseCmd{flags: flags}
}

// Register adds the parse command to the application
func (cmd *ParseCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "parse",
		Usage:     "Parse a call transcript into messages",
		UsageText: "rsictl parse [--json] [FILE|-]",
		Description: `Reads a transcript with AI:, User: and --- prefixed lines and prints
the parsed messages. Reads stdin when FILE is omitted or "-".`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the parse report as JSON",
				Destination: &cmd.asJSON,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ParseCmd) run(ctx context.Context, c *cli.Command) error {
	data, err := readInput(c.Root().Reader, c.Args().First())
	if err != nil {
		return err
	}

	report := transcript.ParseReport(string(data))
	out := c.Root().Writer

	if cmd.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSENDER\tMESSAGE")
	for _, m := range report.Messages {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Sender, m.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if n := len(report.Unmatched); n > 0 {
		_, _ = fmt.Fprintf(c.Root().ErrWriter, "%d line(s) without a speaker prefix skipped\n", n)
	}
	return nil
}
