package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/inferd-ai/inferd-go/pkg/config"
	"github.com/inferd-ai/inferd-go/pkg/core"
	"github.com/inferd-ai/inferd-go/pkg/events"
	"github.com/inferd-ai/inferd-go/pkg/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting inferd in %s mode", cfg.Environment)

	svc, err := core.New(cfg, events.LogSink{})
	if err != nil {
		log.Fatalf("Failed to initialize core service: %v", err)
	}
	defer svc.Close()

	if cfg.DBPath != "" {
		log.Printf("Using SQLite metadata store at: %s", cfg.DBPath)
	}
	if cfg.RedisURL != "" {
		log.Println("Using Redis prediction cache")
	}

	// Load pipeline definitions from file, if configured
	if cfg.PipelineFile != "" {
		created, err := svc.Pipelines.LoadFile(cfg.PipelineFile)
		if err != nil {
			log.Fatalf("Failed to load pipelines from %s: %v", cfg.PipelineFile, err)
		}
		log.Printf("Loaded %d pipeline(s) from %s", len(created), cfg.PipelineFile)
	}

	// Start cron scheduler for recurring pipeline executions
	schedulerService := scheduler.NewService(svc.Pipelines)
	schedulerService.Start()
	defer schedulerService.Stop()

	log.Println("Started pipeline scheduler")
	log.Println("inferd started successfully")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down inferd...")
}
