// Command agentd starts the autonomous agent engine: it loads
// configuration, wires the Task Queue/Executor, State Manager, Decision
// Engine, Planner, Lifecycle Controller, and HTTP API, then runs until
// interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/loopagent/core/pkg/api"
	"github.com/loopagent/core/pkg/config"
	"github.com/loopagent/core/pkg/decision"
	"github.com/loopagent/core/pkg/interaction"
	"github.com/loopagent/core/pkg/lifecycle"
	"github.com/loopagent/core/pkg/llm"
	"github.com/loopagent/core/pkg/masking"
	"github.com/loopagent/core/pkg/mcptool"
	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/planner"
	"github.com/loopagent/core/pkg/probe"
	"github.com/loopagent/core/pkg/queue"
	"github.com/loopagent/core/pkg/state"
	"github.com/loopagent/core/pkg/toolexec"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	workDir := flag.String("work-dir",
		getEnv("WORK_DIR", "."),
		"Working directory the planner probes and writes into")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8090")
	ginMode := getEnv("GIN_MODE", "debug")

	log.Printf("Starting loopagent")
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	stats := cfg.Stats()
	slog.Info("configuration ready",
		"max_concurrent_tasks", stats.MaxConcurrentTasks,
		"decision_model", stats.DecisionModel,
		"llm_provider", stats.LLMProvider,
		"state_persisted", stats.StatePersisted,
	)

	llmClient := buildLLMClient(cfg.LLM)
	masker := masking.NewService(cfg.Masking)
	tools := probe.NewToolInventory(128)
	decisionEngine := decision.New(llmClient)

	shell := cfg.ExecutionShell
	if shell == "" {
		shell = toolexec.DefaultShell()
	}

	mcpClient := mcptool.NewClient(cfg.MCP.Servers)

	handlers := map[models.TaskType]queue.Handler{
		models.TaskFileRead:     &toolexec.FileReadHandler{MaxReadSize: cfg.FileOps.MaxReadSize, Masker: masker},
		models.TaskFileWrite:    &toolexec.FileWriteHandler{WorkDir: *workDir, Masker: masker},
		models.TaskFileCopy:     &toolexec.FileCopyHandler{},
		models.TaskFileDelete:   &toolexec.FileDeleteHandler{},
		models.TaskShellCommand: &toolexec.ShellHandler{Shell: shell, Masker: masker},
		models.TaskCodeGenerate: &toolexec.CodeGenHandler{Client: llmClient},
		models.TaskAIAnalysis:   &toolexec.AIAnalysisHandler{Client: llmClient},
		models.TaskMCPToolCall:  mcptool.NewHandler(mcpClient),
	}

	q := queue.New()
	executor := queue.NewExecutor(q, handlers, cfg.Agent.MaxConcurrentTasks, 5*time.Minute)

	statePath := cfg.Agent.StatePersistence.FilePath
	if statePath == "" {
		statePath = "./agent-state.json"
	}
	stateManager := state.New(state.Options{
		FilePath:          statePath,
		BackupInterval:    cfg.Agent.StatePersistence.BackupInterval,
		MaxHistoryEntries: cfg.Agent.StatePersistence.MaxHistoryEntries,
	})

	var interactionBackend interaction.Backend
	if term := os.Getenv("AGENTD_NON_INTERACTIVE"); term != "" {
		interactionBackend = interaction.NewNonInteractiveBackend()
	} else {
		interactionBackend = interaction.NewTTYBackend()
	}

	p := planner.New(llmClient, q, decisionEngine, tools, stateManager, interactionBackend, *workDir)
	controller := lifecycle.New(cfg.Agent, q, executor, stateManager, decisionEngine)

	if err := controller.Start(ctx); err != nil {
		log.Fatalf("Failed to start agent: %v", err)
	}

	server := api.NewServer(p, controller, ginMode)
	go func() {
		if err := server.Start(":" + httpPort); err != nil {
			slog.Error("api server stopped", "error", err)
		}
	}()

	log.Printf("HTTP server listening on :%s", httpPort)
	log.Printf("Health check available at: http://localhost:%s/health", httpPort)

	<-ctx.Done()
	log.Println("shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api server shutdown error", "error", err)
	}
	if err := controller.Stop(); err != nil {
		slog.Error("lifecycle shutdown error", "error", err)
	}

	log.Println("loopagent stopped")
}

func buildLLMClient(cfg config.LLMSection) llm.Client {
	endpoint := cfg.Endpoints[cfg.DefaultProvider]
	if endpoint == "" {
		endpoint = os.Getenv("LLM_ENDPOINT")
	}
	apiKey := os.Getenv("LLM_API_KEY")

	var opts []llm.HTTPClientOption
	if apiKey != "" {
		opts = append(opts, llm.WithAPIKey(apiKey))
	}
	return llm.NewHTTPClient(endpoint, cfg.DefaultProvider, opts...)
}
