package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/paperasse/internal"
	"github.com/starford/paperasse/internal/analyzer"
	"github.com/starford/paperasse/internal/ocr"
	pkgconfig "github.com/starford/paperasse/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	path := cmd.String("config")
	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", path))
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

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

type analysis struct {
	OCR        *ocr.Result         `json:"ocr,omitempty"`
	Extraction analyzer.Extraction `json:"extraction"`
	Plan       analyzer.ActionPlan `json:"actionPlan"`
}

// analyze runs the analysis pipeline on a local file without touching the
// document store. "-" reads plain text from stdin.
func analyze(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("analyze: file argument is required")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
		path = "stdin.txt"
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	res, err := ocr.NewTextLayer().Recognize(ctx, path, "", data)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	ext, plan := analyzer.AnalyzeWithPlan(res.Text)
	out := analysis{
		OCR:        &res,
		Extraction: ext,
		Plan:       plan,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "paperasse",
		Usage:  "Document intake for rental bookkeeping: OCR, classification, dedup and versioning",
		Action: serve,
		Flags:  []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the OCR worker and the inbox watcher",
				Action: serve,
			},
			{
				Name:      "analyze",
				Usage:     "Analyze a local PDF or text file and print the extraction and action plan",
				ArgsUsage: "<file|->",
				Action:    analyze,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
