package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/askmydocs/internal/adapters/driven/ai"
	"github.com/custodia-labs/askmydocs/internal/adapters/driven/flatindex"
	"github.com/custodia-labs/askmydocs/internal/adapters/driven/memory"
	"github.com/custodia-labs/askmydocs/internal/adapters/driven/postgres"
	"github.com/custodia-labs/askmydocs/internal/adapters/driven/qdrantindex"
	postgresqueue "github.com/custodia-labs/askmydocs/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/askmydocs/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/askmydocs/internal/adapters/driven/redis"
	"github.com/custodia-labs/askmydocs/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/askmydocs/internal/adapters/driven/storage"
	"github.com/custodia-labs/askmydocs/internal/adapters/driving/http"
	"github.com/custodia-labs/askmydocs/internal/chunker"
	"github.com/custodia-labs/askmydocs/internal/config"
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driving"
	"github.com/custodia-labs/askmydocs/internal/core/services"
	"github.com/custodia-labs/askmydocs/internal/extractors"
	"github.com/custodia-labs/askmydocs/internal/runtime"
)

// app is the fully wired set of adapters and services for one process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	runtime    *domain.RuntimeConfig
	services   *runtime.Services
	extractors *extractors.Registry
	files      *storage.LocalStore
	documents  driven.DocumentStore
	queue      driven.TaskQueue
	lock       driven.DistributedLock

	orchestrator *services.IndexingOrchestrator
	answers      *services.AnswerGenerator
	ingestion    driving.IngestionService

	checks  map[string]http.Pinger
	closers []func() error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// newApp connects every configured backend. On error, whatever was opened
// is closed again.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		runtime: domain.NewRuntimeConfig(
			cfg.VectorIndex.Backend, cfg.Queue.Backend, cfg.Lock.Backend, cfg.Registry.Backend),
		checks: make(map[string]http.Pinger),
	}
	ready := false
	defer func() {
		if !ready {
			_ = a.Close()
		}
	}()

	a.services = runtime.NewServices(a.runtime)
	a.closers = append(a.closers, a.services.Close)
	if err := a.initProviders(); err != nil {
		return nil, err
	}

	var (
		db  *postgres.DB
		err error
	)
	if cfg.UsesPostgres() {
		logger.Info("connecting to postgres")
		db, err = postgres.Connect(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.checks["database"] = db
	}

	var redisClient *redis.Client
	if cfg.Queue.Backend == "redis" || cfg.Lock.Backend == "redis" {
		logger.Info("connecting to redis")
		redisClient, err = redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisClient.Close)
		a.checks["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	if err := a.initRegistry(ctx, db); err != nil {
		return nil, err
	}
	if err := a.initQueue(ctx, db, redisClient); err != nil {
		return nil, err
	}
	switch cfg.Lock.Backend {
	case "redis":
		a.lock = redisadapter.NewLock(redisClient)
	case "postgres":
		a.lock = postgres.NewAdvisoryLock(db)
	default:
		a.lock = memory.NewLock()
	}
	a.checks["lock"] = a.lock

	a.files, err = storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}

	factory, err := a.indexFactory()
	if err != nil {
		return nil, err
	}

	strategy, err := cfg.ChunkStrategy()
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.New(strategy, cfg.ChunkOptions())
	if err != nil {
		return nil, err
	}
	a.extractors = extractors.DefaultRegistry()

	a.orchestrator = services.NewIndexingOrchestrator(services.IndexingConfig{
		Chunker:     chunks,
		Extractors:  a.extractors,
		Factory:     factory,
		Services:    a.services,
		Lock:        a.lock,
		Files:       a.files,
		Documents:   a.documents,
		Logger:      logger.With("component", "indexing"),
		IndexPath:   cfg.VectorIndex.Path,
		LockTTL:     cfg.Lock.TTL,
		LockWait:    cfg.Lock.Wait,
		KeepUploads: cfg.Storage.KeepUploads,
	})

	retriever := services.NewRetriever(services.RetrieverConfig{
		Services: a.services,
		MinScore: cfg.Retrieval.MinScore,
		Logger:   logger.With("component", "retriever"),
	})
	a.answers = services.NewAnswerGenerator(services.AnswerGeneratorConfig{
		Retriever:      retriever,
		Services:       a.services,
		Logger:         logger.With("component", "answers"),
		SystemPrompt:   cfg.LLM.SystemPrompt,
		DefaultTopK:    cfg.Retrieval.TopK,
		MaxTopK:        cfg.Retrieval.MaxTopK,
		MinQueryLength: cfg.Retrieval.MinQueryLength,
	})
	a.ingestion = services.NewIngestionService(services.IngestionConfig{
		Extractors: a.extractors,
		Files:      a.files,
		Documents:  a.documents,
		TaskQueue:  a.queue,
		MaxBytes:   cfg.Server.MaxUploadBytes,
		Logger:     logger.With("component", "ingestion"),
	})

	logger.Info("runtime configured",
		"index", a.runtime.IndexBackend,
		"queue", a.runtime.QueueBackend,
		"lock", a.runtime.LockBackend,
		"registry", a.runtime.RegistryBackend,
		"embedding", a.runtime.EmbeddingAvailable(),
		"llm", a.runtime.LLMAvailable(),
	)
	ready = true
	return a, nil
}

func (a *app) initProviders() error {
	factory := ai.NewFactory()

	embedder, err := factory.CreateEmbeddingService(a.cfg.EmbeddingSettings())
	if err != nil {
		return err
	}
	if embedder == nil {
		a.logger.Warn("embedding provider not configured, indexing and questions are disabled",
			"provider", a.cfg.Embedding.Provider)
	}
	a.services.SetEmbeddingService(embedder)

	llm, err := factory.CreateLLMService(a.cfg.LLMSettings())
	if err != nil {
		return err
	}
	if llm == nil {
		a.logger.Warn("llm provider not configured, questions are disabled", "provider", a.cfg.LLM.Provider)
	}
	a.services.SetLLMService(llm)
	return nil
}

func (a *app) initRegistry(ctx context.Context, db *postgres.DB) error {
	if a.cfg.Registry.Backend == "postgres" {
		if err := db.InitSchema(ctx); err != nil {
			return err
		}
		a.documents = postgres.NewDocumentStore(db)
		a.checks["registry"] = a.documents
		return nil
	}

	store, err := sqlite.Open(ctx, a.cfg.Registry.SQLitePath)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, store.Close)
	a.documents = store
	a.checks["registry"] = store
	return nil
}

func (a *app) initQueue(ctx context.Context, db *postgres.DB, client *redis.Client) error {
	switch a.cfg.Queue.Backend {
	case "redis":
		hostname, _ := os.Hostname()
		q, err := redisqueue.NewQueue(ctx, client, fmt.Sprintf("worker-%s-%d", hostname, os.Getpid()))
		if err != nil {
			return err
		}
		a.queue = q
	case "postgres":
		q := postgresqueue.NewQueue(db.DB)
		if err := q.InitSchema(ctx); err != nil {
			return err
		}
		a.queue = q
	default:
		a.queue = memory.NewQueue()
	}
	a.closers = append(a.closers, a.queue.Close)
	a.checks["queue"] = a.queue
	return nil
}

func (a *app) indexFactory() (driven.VectorIndexFactory, error) {
	provider := a.cfg.Embedding.Provider
	if a.cfg.VectorIndex.Backend != qdrantindex.Backend {
		return flatindex.NewFactory(provider, a.logger.With("component", "flatindex")), nil
	}

	q := a.cfg.VectorIndex.Qdrant
	factory, err := qdrantindex.NewFactory(qdrantindex.Config{
		Host:       q.Host,
		Port:       q.Port,
		APIKey:     q.APIKey,
		UseTLS:     q.UseTLS,
		Collection: q.Collection,
		Provider:   provider,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, factory.Close)
	a.checks["qdrant"] = factory
	return factory, nil
}

// loadIndex serves the persisted bundle if there is one.
func (a *app) loadIndex(ctx context.Context) {
	if err := a.orchestrator.Reload(ctx); err != nil {
		a.logger.Warn("persisted index not loaded", "path", a.cfg.VectorIndex.Path, "error", err)
	}
}

// Close releases backends in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
