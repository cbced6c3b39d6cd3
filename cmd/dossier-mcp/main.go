// dossier-mcp serves the dossier application tracker as MCP tools over
// stdio, so an assistant can list applications, search documents and work
// through due reminders.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matthewjhunter/dossier"
	"github.com/matthewjhunter/dossier/internal/config"
	"github.com/matthewjhunter/dossier/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML or TOML)")
	dbPath := flag.String("db", "", "path to dossier database (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dossier-mcp: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	// stdout carries the protocol; logging.New writes to stderr.
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	engine, err := dossier.NewEngine(dossier.EngineConfig{Config: cfg, Logger: log})
	if err != nil {
		log.WithError(err).Fatal("create dossier engine")
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("db", cfg.Database.Path).Info("dossier-mcp starting")
	if err := newServer(engine, log).mcpServer().Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("server error")
		engine.Close()
		os.Exit(1)
	}
}
