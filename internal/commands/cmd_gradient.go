package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/readysetinsure/dashboard/internal/gradient"
)

type GradientCmd struct {
	flags *Flags
}

// NewGradientCmd creates a new gradient command
func NewGradientCmd(flags *Flags) *GradientCmd {
	return &GradientCmd{flags: flags}
}

// Register adds the gradient command to the application
func (cmd *GradientCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "gradient",
		Usage:       "Show the heatmap colour for a value",
		UsageText:   "rsictl gradient VALUE MIN MAX",
		Description: "Maps VALUE within [MIN, MAX] onto the green → yellow → red heatmap ramp.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *GradientCmd) run(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 3 {
		return fmt.Errorf("expected VALUE MIN MAX, got %d argument(s)", c.NArg())
	}

	var nums [3]float64
	for i := range nums {
		n, err := strconv.ParseFloat(c.Args().Get(i), 64)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		nums[i] = n
	}

	col := gradient.Color(nums[0], nums[1], nums[2])
	swatch := lipgloss.NewStyle().Background(lipgloss.Color(col.Hex())).Render("      ")
	_, err := fmt.Fprintf(c.Root().Writer, "%s  %s  %s\n", col.String(), col.Hex(), swatch)
	return err
}
