package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/matthewjhunter/dossier"
	"github.com/matthewjhunter/dossier/internal/config"
	"github.com/matthewjhunter/dossier/internal/logging"
	"github.com/matthewjhunter/dossier/internal/output"
	"github.com/matthewjhunter/dossier/internal/storage"
	"github.com/matthewjhunter/dossier/internal/web"
)

var (
	configPath   string
	outputFormat string
	cfg          *config.Config
	log          *logrus.Logger
	formatter    *output.Formatter
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dossier",
		Short:         "Track job applications, cover letters and follow-ups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path, YAML or TOML (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(promptsCmd())
	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(applicationsCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup() error {
	if configPath == "" {
		configPath = "./config/config.yaml"
	}
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	formatter = output.NewFormatter(format)

	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	log = logging.New(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// openEngine opens the engine for a single command.
func openEngine() (*dossier.Engine, error) {
	engine, err := dossier.NewEngine(dossier.EngineConfig{Config: cfg, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("failed to open dossier: %w", err)
	}
	return engine, nil
}

// withEngine runs fn against a freshly opened engine with a context that
// ends on SIGINT or SIGTERM.
func withEngine(fn func(ctx context.Context, engine *dossier.Engine) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()
	return fn(ctx, engine)
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				return web.Serve(ctx, engine, cfg.Server.Addr, log)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the document search index",
	}

	var full bool
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Index documents missing from the search index",
		Long: "Recreates the search table when it is missing and indexes every document\n" +
			"without a row. With --full every document is re-extracted and re-indexed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				res, err := engine.Reindex(ctx, full)
				if err != nil {
					return err
				}
				return formatter.OutputReindex(res)
			})
		},
	}
	rebuild.Flags().BoolVar(&full, "full", false, "re-index every document, not only missing ones")

	cmd.AddCommand(rebuild)
	return cmd
}

func promptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect and sync LLM prompt templates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List prompt slots and their active versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				prompts, err := engine.ListPrompts(ctx)
				if err != nil {
					return err
				}
				return formatter.OutputPrompts(prompts)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print the active template for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				p, err := engine.GetPrompt(ctx, args[0])
				if err != nil {
					return err
				}
				return formatter.OutputPrompt(p)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Load prompt files into the database as new versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				results, err := engine.SyncPrompts(ctx)
				if err != nil {
					return err
				}
				engine.AfterWrite(ctx)
				return formatter.OutputPromptSync(results)
			})
		},
	})
	return cmd
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Show follow-up reminders",
	}

	var days int
	due := &cobra.Command{
		Use:   "due",
		Short: "List pending reminders due within the window, overdue included",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				reminders, err := engine.DueReminders(ctx, days)
				if err != nil {
					return err
				}
				return formatter.OutputReminders(reminders, storage.DateOf(time.Now()))
			})
		},
	}
	due.Flags().IntVarP(&days, "days", "d", 7, "days ahead to include")

	cmd.AddCommand(due)
	return cmd
}

func applicationsCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:     "applications",
		Aliases: []string{"apps"},
		Short:   "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				apps, err := engine.ListApplications(ctx, status)
				if err != nil {
					return err
				}
				return formatter.OutputApplications(apps)
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "only show applications with this status")
	return cmd
}

func searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across uploaded documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *dossier.Engine) error {
				hits, err := engine.SearchDocuments(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return formatter.OutputSearchHits(hits)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of hits")
	return cmd
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(configPath); err != nil {
				return err
			}
			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
