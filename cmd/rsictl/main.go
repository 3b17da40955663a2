package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/readysetinsure/dashboard/internal/commands"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func main() {
	// Optional; flags fall back to the process environment.
	_ = godotenv.Load()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "rsictl",
		Usage:     "Operator tools for the Ready Set Insure dashboard",
		UsageText: "rsictl [global options] command [command options]",
		Version:   fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "backend-url",
				Usage:       "customer backend base URL",
				Sources:     cli.EnvVars("BACKEND_URL"),
				Value:       "http://localhost:5000",
				Destination: &flags.BackendURL,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			setupLogging(flags.LogLevel)
			return ctx, nil
		},
	}

	app = commands.NewParseCmd(flags).Register(app)
	app = commands.NewWeekdayCmd(flags).Register(app)
	app = commands.NewGradientCmd(flags).Register(app)
	app = commands.NewTemplatesCmd(flags).Register(app)

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
