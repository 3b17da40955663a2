package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/readysetinsure/dashboard/internal/vapi"
)

type TemplatesCmd struct {
	flags *Flags
	path  string
}

// NewTemplatesCmd creates a new templates command
func NewTemplatesCmd(flags *Flags) *TemplatesCmd {
	return &TemplatesCmd{flags: flags}
}

// Register adds the templates command to the application
func (cmd *TemplatesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "templates",
		Usage:       "List outbound call templates",
		UsageText:   "rsictl templates [--path FILE]",
		Description: "Loads the call template file and lists each template. Built-in templates are used when the file does not exist.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "path",
				Usage:       "call template YAML file",
				Sources:     cli.EnvVars("CALL_TEMPLATES_PATH"),
				Value:       "call_templates.yaml",
				Destination: &cmd.path,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TemplatesCmd) run(ctx context.Context, c *cli.Command) error {
	tpls, err := vapi.LoadTemplates(cmd.path)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tNAME\tDESCRIPTION")
	for _, key := range tpls.Keys() {
		t := tpls[key]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", key, t.Name, t.Description)
	}
	return w.Flush()
}
