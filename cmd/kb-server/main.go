// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// kb-server is the process boundary around the engine's nine core
// components: it provisions the data directory, spawns kb-bridge,
// wires the Storage Adapter / Embedding Client / Retrieval Service /
// Chat Orchestrator together, and serves the HTTP surface described in
// SPEC_FULL.md §6.
//
// Grounded on cmd/hive-server/main.go's shape: flag-parsed ports and
// paths, logger init before .env load, optional Redis/job-queue
// startup that degrades gracefully if unavailable, a routes() builder
// handed to http.Server, and signal-based graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/northbound/kbengine/internal/appconfig"
	"github.com/northbound/kbengine/internal/bridge"
	"github.com/northbound/kbengine/internal/chat"
	"github.com/northbound/kbengine/internal/classify"
	"github.com/northbound/kbengine/internal/config"
	"github.com/northbound/kbengine/internal/conversation"
	"github.com/northbound/kbengine/internal/document"
	"github.com/northbound/kbengine/internal/documentsvc"
	"github.com/northbound/kbengine/internal/embedding"
	"github.com/northbound/kbengine/internal/embeddings"
	"github.com/northbound/kbengine/internal/events"
	"github.com/northbound/kbengine/internal/ingestion"
	"github.com/northbound/kbengine/internal/ingestion/watch"
	"github.com/northbound/kbengine/internal/jobs"
	"github.com/northbound/kbengine/internal/llm"
	"github.com/northbound/kbengine/internal/logger"
	"github.com/northbound/kbengine/internal/models"
	"github.com/northbound/kbengine/internal/project"
	"github.com/northbound/kbengine/internal/queue"
	"github.com/northbound/kbengine/internal/retrieval"
	"github.com/northbound/kbengine/internal/runtime"
	"github.com/northbound/kbengine/internal/server"
	"github.com/northbound/kbengine/internal/storage"
	"github.com/northbound/kbengine/internal/worker"
)

var workerCount = flag.Int("worker-count", 0, "background worker count (0 = use config default)")

func main() {
	logFile := "kb-server.log"
	if _, err := logger.Init(logFile); err != nil {
		fmt.Printf("failed to initialize logger: %v, using stdout only\n", err)
	}

	flag.Parse()
	env := config.Load()
	if *workerCount > 0 {
		env.WorkerCount = *workerCount
	}

	cfg, err := appconfig.Load(env.DataDir)
	if err != nil {
		logger.Fatalf("loading config.json: %v", err)
	}

	broadcaster := events.New()
	defer broadcaster.Stop()

	layout := runtime.NewLayout(env.DataDir, env.BridgeBinary)
	provisioner := runtime.New(layout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := provisioner.EnsureReady(ctx, func(p runtime.Progress) {
		logger.Printf("startup: %s — %s", p.Step, p.Message)
		broadcaster.Publish(events.StartupProgress, map[string]string{
			"step":    string(p.Step),
			"message": p.Message,
		})
	}); err != nil {
		logger.Fatalf("runtime provisioning failed: %v", err)
	}
	layout = provisioner.Layout()

	bridgeClient, err := bridge.New(layout.BridgeBinary)
	if err != nil {
		logger.Fatalf("starting kb-bridge: %v", err)
	}
	defer bridgeClient.Close()

	storageAdapter := storage.New(bridgeClient)
	if err := storageAdapter.Init(ctx, layout.DBPath, "kb"); err != nil {
		logger.Fatalf("initialising storage: %v", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		logger.Fatalf("initialising embedder: %v", err)
	}
	embeddingClient := embedding.New(embedder)

	llmClient, err := llm.New(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   intOrZero(cfg.LLM.MaxTokens),
		Temperature: floatOrZero(cfg.LLM.Temperature),
		Stream:      cfg.LLM.Stream,
	})
	if err != nil {
		logger.Fatalf("initialising llm client: %v", err)
	}

	processor := document.New()
	retriever := retrieval.New(storageAdapter, embeddingClient)
	coordinator := ingestion.New(processor, embeddingClient, storageAdapter).WithTitler(classify.New(llmClient))

	projectSvc := project.New(storageAdapter)
	documentSvc := documentsvc.New(storageAdapter, coordinator, retriever)
	conversationSvc := conversation.New(storageAdapter)
	chatSvc := chat.New(storageAdapter, retriever, llmClient, broadcaster, conversationSvc)

	jobQueue, workerCancel := startWorkers(ctx, env, documentSvc)

	// Every project gets its own inbox directory watched for auto-ingest;
	// a project created after startup is picked up via the onCreate hook,
	// and projects that already existed get a watcher started right here.
	watchers := newWatchRegistry(jobQueue, layout.DocumentsDir)
	projectSvc.WithOnCreate(watchers.start)
	if existing, err := projectSvc.List(ctx); err != nil {
		logger.Warnf("ingestion watch: listing existing projects failed: %v", err)
	} else {
		for _, p := range existing {
			watchers.start(p)
		}
	}

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", env.HTTPPort),
		Handler: server.Routes(server.Deps{
			Projects:      projectSvc,
			Documents:     documentSvc,
			Conversations: conversationSvc,
			Chat:          chatSvc,
			Broadcaster:   broadcaster,
			Bridge:        bridgeClient,
		}),
	}

	go func() {
		logger.Printf("HTTP server listening on %d", env.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(httpServer, workerCancel, watchers)
}

// watchRegistry owns one ingestion watch.Manager per project, started
// either at startup (for projects that already exist) or from
// project.Service's onCreate hook (for ones created while the process
// is running). A nil queue (Redis unavailable) makes start a no-op,
// the same degrade-gracefully rule startWorkers already follows.
type watchRegistry struct {
	mu       sync.Mutex
	managers map[string]*watch.Manager
	queue    queue.Queue
	baseDir  string
}

func newWatchRegistry(q queue.Queue, baseDir string) *watchRegistry {
	return &watchRegistry{managers: make(map[string]*watch.Manager), queue: q, baseDir: baseDir}
}

func (r *watchRegistry) start(p models.Project) {
	if r.queue == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.managers[p.ID]; ok {
		return
	}

	inbox := filepath.Join(r.baseDir, p.ID, "inbox")
	m := watch.New(p.ID, inbox, r.queue)
	if err := m.Start(); err != nil {
		logger.Warnf("ingestion watch: failed to start watcher for project %s: %v", p.ID, err)
		return
	}
	r.managers[p.ID] = m
	logger.Printf("ingestion watch: watching %s for project %s", inbox, p.ID)
}

func (r *watchRegistry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.managers {
		m.Stop()
	}
}

func newEmbedder(cfg appconfig.Config) (embeddings.Embedder, error) {
	embedderType := os.Getenv("EMBEDDER_TYPE")
	if embedderType == "" {
		if cfg.LLM.APIKey != "" {
			embedderType = "openai"
		} else {
			embedderType = "mock"
		}
	}

	baseURL := ""
	if cfg.Embedding != nil {
		baseURL = cfg.Embedding.BaseURL
	}

	return embeddings.NewEmbedder(embedderType, map[string]string{
		"api_key":  cfg.LLM.APIKey,
		"model":    os.Getenv("EMBEDDER_MODEL"),
		"base_url": baseURL,
	})
}

// startWorkers brings up the Redis-backed job queue and worker pool for
// filesystem-watch auto-ingest jobs. Redis being unavailable degrades
// to synchronous-only ingestion via the HTTP API, not a fatal error.
func startWorkers(ctx context.Context, env config.Env, documentSvc *documentsvc.Service) (queue.Queue, context.CancelFunc) {
	redisClient, err := config.NewRedisClient(ctx, env)
	if err != nil {
		logger.Warnf("job queue disabled: %v", err)
		return nil, nil
	}

	jobQueue, err := queue.NewRedisQueue(redisClient, "jobs:kbengine")
	if err != nil {
		logger.Warnf("job queue disabled: %v", err)
		return nil, nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	handler := func(ctx context.Context, job queue.Job) error {
		return jobs.Dispatch(ctx, job,
			func(ctx context.Context, p jobs.IngestDocumentPayload) error {
				_, err := documentSvc.Ingest(ctx, p.ProjectID, p.FilePath)
				return err
			},
			func(ctx context.Context, p jobs.ReprocessDocumentPayload) error {
				_, err := documentSvc.Reprocess(ctx, p.ProjectID, p.DocumentID, p.FilePath)
				return err
			},
		)
	}

	go func() {
		logger.Printf("starting %d background workers", env.WorkerCount)
		if err := worker.StartWorkers(workerCtx, jobQueue, handler, env.WorkerCount); err != nil {
			logger.Errorf("worker error: %v", err)
		}
	}()

	return jobQueue, cancel
}

func waitForShutdown(httpServer *http.Server, workerCancel context.CancelFunc, watchers *watchRegistry) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Println("shutting down")
	watchers.stopAll()
	if workerCancel != nil {
		workerCancel()
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}
	if err := logger.GetDefault().Close(); err != nil {
		logger.Warnf("failed to close logger: %v", err)
	}
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
