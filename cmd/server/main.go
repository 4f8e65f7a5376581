package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ringpong/internal/config"
	"ringpong/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to ringpong.yaml (default: search ./config, ., /etc/ringpong)")
	flag.Parse()

	// Load server configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logs, err := logging.NewLogBackend(os.Stdout, cfg.Server.LogLevel)
	if err != nil {
		log.Fatal("Failed to set up logging: ", err)
	}

	// Wait for interrupt signal to gracefully shutdown the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := SetupServer(cfg, logs)
	if err := srv.Run(ctx); err != nil {
		log.Fatal("Server failed: ", err)
	}

	logs.Logger(logging.SubsysHTTP).Infof("Server gracefully stopped")
}
