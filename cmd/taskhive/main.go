package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mtzanidakis/taskhive/internal/bus"
	"github.com/mtzanidakis/taskhive/internal/condition"
	"github.com/mtzanidakis/taskhive/internal/config"
	"github.com/mtzanidakis/taskhive/internal/orchestrator"
	"github.com/mtzanidakis/taskhive/internal/recurring"
	"github.com/mtzanidakis/taskhive/internal/store"
	"github.com/mtzanidakis/taskhive/internal/web"
	"github.com/mtzanidakis/taskhive/internal/workflow"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("taskhive %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: taskhive <command>\n\nCommands:\n  gateway    Start the taskhive gateway service\n  backup     Archive the data directory\n  version    Print version\n")
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetLogLoggerLevel(cfg.Orchestrator.SlogLevel())

	slog.Info("starting taskhive gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	b, err := bus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer b.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	// Orchestrator with agents from config
	orch := orchestrator.New(cfg.Orchestrator)
	orch.Subscribe(store.Recorder(db, orch))
	for _, a := range cfg.Agents {
		def := orchestrator.AgentDefinition{
			ID:   a.ID,
			Name: a.Name,
			Role: a.Role,
			Capabilities: orchestrator.AgentCapabilities{
				Tools:     a.Tools,
				TaskTypes: a.TaskTypes,
			},
			Priority: a.Priority,
		}
		if err := orch.RegisterAgent(def); err != nil {
			return fmt.Errorf("register agent %s: %w", a.ID, err)
		}
	}

	// Bus client: event fan-out and the executor IPC endpoint
	client, err := bus.NewClient(b)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer client.Close()
	orch.Subscribe(bus.EventForwarder(client))

	ipc, err := bus.ServeIPC(client, orch)
	if err != nil {
		return fmt.Errorf("serve ipc: %w", err)
	}
	defer ipc.Close()

	orch.Start()
	defer orch.Stop()

	// Workflow engine
	engine := workflow.NewEngine(orch, condition.New())

	// Recurring task runner
	runner := recurring.New(db, orch, cfg.Recurring)
	go runner.Start(ctx)

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, b, orch, engine, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}
