package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func report(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req := internal.ReportRequest{
		Kind:        cmd.String("kind"),
		Format:      cmd.String("format"),
		Descendants: cmd.Bool("descendants"),
		CodeA:       cmd.String("a"),
		CodeB:       cmd.String("b"),
		Mode:        cmd.String("mode"),
		Transcripts: cmd.StringSlice("transcript"),
		OutDir:      cmd.String("out"),
	}
	return internal.RunReport(ctx, req, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:    "ansuz",
		Usage:   "Qualitative coding of interview transcripts with coverage and inter-coder reliability reports",
		Version: version,
		Action:  serve,
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
				Usage:  "Run the HTTP API and watch the transcripts folder",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:   "report",
				Usage:  "Print or save a coverage or reliability report",
				Action: report,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: internal.ReportCoverage, Usage: "coverage or reliability"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "json, csv or text"},
					&cli.BoolFlag{Name: "descendants", Usage: "Roll child codes into their parents (coverage)"},
					&cli.StringFlag{Name: "a", Usage: "First code id (reliability)"},
					&cli.StringFlag{Name: "b", Usage: "Second code id (reliability)"},
					&cli.StringFlag{Name: "mode", Usage: "paragraph or sentence (reliability)"},
					&cli.StringSliceFlag{Name: "transcript", Usage: "Restrict reliability to these transcript ids"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the report into this directory"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
