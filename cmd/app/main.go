package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultexport/internal"
	pkgconfig "github.com/starford/vaultexport/pkg/config"
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("vault") {
		cfg.Vault.Path = cmd.String("vault")
	}
	if cmd.IsSet("destination") {
		cfg.Export.Destination = cmd.String("destination")
	}
	if cmd.IsSet("flat") {
		cfg.Export.FlatHierarchy = cmd.Bool("flat")
	}
	if cmd.IsSet("author") {
		cfg.Export.Author = cmd.String("author")
	}
	if cmd.IsSet("skip-tag") {
		cfg.Export.SkipTags = cmd.StringSlice("skip-tag")
	}
	if cmd.IsSet("only-tag") {
		cfg.Export.OnlyTags = cmd.StringSlice("only-tag")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runMode(mode internal.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
		}
		if mode == internal.ModeExport && cmd.Args().Len() > 0 {
			opts = append(opts, internal.WithNotes(cmd.Args().Slice()...))
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "vaultexport",
		Usage:  "Export a Markdown note vault with frontmatter postprocessing, embed transclusion and tag filtering",
		Action: runMode(internal.ModeServe),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Vault directory to export (overrides vault.path)",
				Sources: cli.EnvVars("VAULT_PATH"),
			},
			&cli.StringFlag{
				Name:    "destination",
				Aliases: []string{"o"},
				Usage:   "Output directory (overrides export.destination)",
				Sources: cli.EnvVars("EXPORT_DESTINATION"),
			},
			&cli.BoolFlag{
				Name:  "flat",
				Usage: "Write every note directly under the output directory",
			},
			&cli.StringFlag{
				Name:  "author",
				Usage: "Author written into every exported note",
			},
			&cli.StringSliceFlag{
				Name:  "skip-tag",
				Usage: "Do not export notes carrying this tag (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "only-tag",
				Usage: "Export only notes carrying one of these tags (repeatable)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Export the vault once, or only the given notes",
				ArgsUsage: "[note.md ...]",
				Action:    runMode(internal.ModeExport),
			},
			{
				Name:   "watch",
				Usage:  "Export the vault and re-export notes as they change",
				Action: runMode(internal.ModeWatch),
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live re-export",
				Action: runMode(internal.ModeServe),
			},
			{
				Name:   "mcp",
				Usage:  "Serve export tools over MCP stdio",
				Action: runMode(internal.ModeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
