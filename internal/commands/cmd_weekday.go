package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/readysetinsure/dashboard/internal/backend"
	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/gradient"
	"github.com/readysetinsure/dashboard/internal/weekday"
)

const barWidth = 40

var labelStyle = lipgloss.NewStyle().Bold(true).Width(4)

type WeekdayCmd struct {
	flags  *Flags
	remote bool
	status string
}

// NewWeekdayCmd creates a new weekday command
func NewWeekdayCmd(flags *Flags) *WeekdayCmd {
	return &WeekdayCmd{flags: flags}
}

// Register adds the weekday command to the application
func (cmd *WeekdayCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "weekday",
		Usage:     "Show assistance requests per weekday",
		UsageText: "rsictl weekday [FILE|-]\n   rsictl weekday --remote [--status incomplete]",
		Description: `Buckets customers by the weekday of their case date and draws a heatmap
bar chart. Input is a JSON array of customer records, or the live backend
queue with --remote.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "remote",
				Usage:       "read customers from the backend instead of a file",
				Destination: &cmd.remote,
			},
			&cli.StringFlag{
				Name:        "status",
				Usage:       "customer status to fetch with --remote",
				Value:       string(customer.StatusIncomplete),
				Destination: &cmd.status,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WeekdayCmd) run(ctx context.Context, c *cli.Command) error {
	customers, err := cmd.load(ctx, c)
	if err != nil {
		return err
	}

	h := weekday.Aggregate(customers, customer.DateField)
	_, err = fmt.Fprint(c.Root().Writer, renderHistogram(h, barWidth))
	return err
}

func (cmd *WeekdayCmd) load(ctx context.Context, c *cli.Command) ([]customer.Customer, error) {
	if cmd.remote {
		status, err := customer.ParseStatus(cmd.status)
		if err != nil {
			return nil, err
		}
		client := backend.NewClient(cmd.flags.BackendURL, slog.Default())
		customers, err := client.ListByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("list customers: %w", err)
		}
		return customers, nil
	}

	data, err := readInput(c.Root().Reader, c.Args().First())
	if err != nil {
		return nil, err
	}
	var customers []customer.Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}
	return customers, nil
}

// renderHistogram draws one coloured bar per weekday, scaled so the busiest
// day spans width cells.
func renderHistogram(h weekday.Histogram, width int) string {
	colors := gradient.Default.Scale(h.Totals())

	peak := 0
	for _, b := range h {
		peak = max(peak, b.Total)
	}

	var sb strings.Builder
	for i, b := range h {
		n := 0
		if peak > 0 {
			n = b.Total * width / peak
		}
		if b.Total > 0 && n == 0 {
			n = 1
		}
		bar := lipgloss.NewStyle().Foreground(lipgloss.Color(colors[i].Hex())).Render(strings.Repeat("█", n))
		fmt.Fprintf(&sb, "%s %s %d\n", labelStyle.Render(b.Label), bar, b.Total)
	}
	fmt.Fprintf(&sb, "total %d\n", h.Sum())
	return sb.String()
}
