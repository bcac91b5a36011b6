package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dayplanner/internal"
	"github.com/starford/dayplanner/internal/timeline"
	"github.com/starford/dayplanner/internal/timeutil"
	pkgconfig "github.com/starford/dayplanner/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// stderrLogger keeps stdout free for command output.
func stderrLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
}

func plan(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	start := time.Now()
	if d := cmd.String("date"); d != "" {
		start, err = timeutil.ParseDayKey(d, time.Local)
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
	}
	days := int(cmd.Int("days"))
	if days <= 0 {
		days = cfg.Planner.VisibleDays
	}

	view, err := internal.Plan(ctx, start, days, internal.WithConfig(cfg), internal.WithLogger(stderrLogger(cfg)))
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, view)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func heading(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, timeline.HeadingMarkdown(cfg.Planner.Settings()))
	return err
}

func main() {
	cmd := &cli.Command{
		Name:   "dayplanner",
		Usage:  "Timeline day planner over a vault of Markdown notes",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: runMCP,
			},
			{
				Name:   "plan",
				Usage:  "Print the layout of the visible days as JSON",
				Action: plan,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "First day (YYYY-MM-DD), defaults to today",
					},
					&cli.IntFlag{
						Name:  "days",
						Usage: "Number of days, defaults to planner.visible_days",
					},
				},
			},
			{
				Name:   "heading",
				Usage:  "Print the Markdown snippet that starts a plan",
				Action: heading,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
