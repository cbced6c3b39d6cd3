package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matthewjhunter/dossier"
	"github.com/matthewjhunter/dossier/internal/config"
	"github.com/matthewjhunter/dossier/internal/logging"
	"github.com/matthewjhunter/dossier/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML or TOML)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dossier-web: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	engine, err := dossier.NewEngine(dossier.EngineConfig{Config: cfg, Logger: log})
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := web.Serve(ctx, engine, cfg.Server.Addr, log); err != nil {
		log.WithError(err).Error("server failed")
		engine.Close()
		os.Exit(1)
	}
}
