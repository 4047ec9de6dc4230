package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/mtrtrdev/localQA/internal/ai"
	"github.com/mtrtrdev/localQA/internal/chunker"
	"github.com/mtrtrdev/localQA/internal/config"
	"github.com/mtrtrdev/localQA/internal/database"
	"github.com/mtrtrdev/localQA/internal/embedcache"
	"github.com/mtrtrdev/localQA/internal/filestore"
	"github.com/mtrtrdev/localQA/internal/handler"
	"github.com/mtrtrdev/localQA/internal/index"
	"github.com/mtrtrdev/localQA/internal/index/memory"
	"github.com/mtrtrdev/localQA/internal/index/pgvector"
	"github.com/mtrtrdev/localQA/internal/index/qdrant"
	"github.com/mtrtrdev/localQA/internal/job"
	"github.com/mtrtrdev/localQA/internal/middleware"
	"github.com/mtrtrdev/localQA/internal/repo"
	"github.com/mtrtrdev/localQA/internal/schedule"
	"github.com/mtrtrdev/localQA/internal/service"
)

func main() {
	var configPath string
	var reindexDB string

	rootCmd := &cobra.Command{
		Use:   "localqa",
		Short: "document QA server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the QA server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			return runServer(app)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "re-embed every chunk of a database in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reindexDB == "" {
				return fmt.Errorf("--db is required")
			}
			app, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			count, err := app.qa.Reindex(ctx, reindexDB)
			if err != nil {
				return err
			}
			logutil.GetLogger(ctx).Info("reindex finished",
				zap.String("database", reindexDB), zap.Int("chunks", count))
			return nil
		},
	}
	reindexCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	reindexCmd.Flags().StringVar(&reindexDB, "db", "", "database to reindex")

	rootCmd.AddCommand(runCmd, reindexCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

type app struct {
	cfg       *config.Config
	db        *sql.DB
	cacheRepo *repo.EmbeddingCacheRepo
	archive   filestore.Store
	qa        *service.QAService
	databases *database.Manager
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildApp(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath),
		zap.String("index", cfg.Index.Type),
		zap.String("embedding_provider", cfg.AI.Embedding.Provider),
		zap.String("generation_provider", cfg.AI.Generation.Provider))

	var db *sql.DB
	if cfg.Database.Enabled() {
		db, err = repo.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := repo.ApplyMigrations(db); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	provider, err := buildIndexProvider(cfg, db)
	if err != nil {
		return nil, err
	}
	databases := database.NewManager(provider)

	generator, err := buildGenerator(cfg.AI.Generation)
	if err != nil {
		return nil, fmt.Errorf("init generation provider: %w", err)
	}
	embedder, err := buildEmbedder(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	var cacheRepo *repo.EmbeddingCacheRepo
	if db != nil {
		cacheRepo = repo.NewEmbeddingCacheRepo(db)
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder,
		cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLHours)*time.Hour)
	manager := ai.NewManager(generator, embedder, ai.ManagerConfig{
		Timeout:    cfg.AI.TimeoutSeconds,
		MaxRelated: cfg.Retrieval.RelatedQuestions,
	})

	splitter, err := chunker.New(cfg.Chunking.ChunkSize, *cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	var archive filestore.Store
	if cfg.Archive.Type != "" {
		archive, err = filestore.New(cfg.Archive.Type, cfg.Archive.Data)
		if err != nil {
			return nil, fmt.Errorf("init archive store: %w", err)
		}
	}

	qa := service.NewQAService(databases, manager, splitter, archive, service.QAServiceConfig{
		TopK:          cfg.Retrieval.TopK,
		ContextWindow: *cfg.Retrieval.ContextWindow,
		BatchSize:     cfg.AI.BatchSize,
	})
	return &app{
		cfg:       cfg,
		db:        db,
		cacheRepo: cacheRepo,
		archive:   archive,
		qa:        qa,
		databases: databases,
	}, nil
}

func buildIndexProvider(cfg *config.Config, db *sql.DB) (index.Provider, error) {
	switch cfg.Index.Type {
	case "memory":
		return memory.NewProvider(cfg.Index.Data, cfg.AI.Dimension)
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector index requires a database")
		}
		return pgvector.NewProvider(db, cfg.AI.Dimension), nil
	case "qdrant":
		return qdrant.NewProvider(cfg.Index.Data, cfg.AI.Dimension)
	default:
		return nil, fmt.Errorf("unsupported index type: %s", cfg.Index.Type)
	}
}

func buildGenerator(cfg config.ProviderConfig) (ai.IGenerator, error) {
	primary, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}
	entries := []ai.GeneratorEntry{{Name: cfg.Provider, Generator: primary}}
	for _, fb := range cfg.Fallbacks {
		g, err := newGenerator(fb)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ai.GeneratorEntry{Name: fb.Provider, Generator: g})
	}
	return ai.NewGroupGenerator(entries), nil
}

func newGenerator(cfg config.ProviderConfig) (ai.IGenerator, error) {
	p, err := ai.NewProvider(cfg.Provider, cfg.Data)
	if err != nil {
		return nil, err
	}
	return ai.NewGenerator(p, cfg.Model), nil
}

func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, error) {
	primary, err := newEmbedder(cfg.Embedding, cfg.Dimension, cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(cfg.Embedding.Fallbacks) == 0 {
		return primary, nil
	}
	entries := []ai.EmbedderEntry{{Name: cfg.Embedding.Model, Embedder: primary}}
	for _, fb := range cfg.Embedding.Fallbacks {
		e, err := newEmbedder(fb, cfg.Dimension, cfg.BatchSize)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ai.EmbedderEntry{Name: fb.Model, Embedder: e})
	}
	return ai.NewGroupEmbedder(entries), nil
}

func newEmbedder(cfg config.ProviderConfig, dimension, batchSize int) (ai.IEmbedder, error) {
	p, err := ai.NewEmbedProvider(cfg.Provider, cfg.Data)
	if err != nil {
		return nil, err
	}
	return ai.NewEmbedder(p, cfg.Model, dimension, batchSize), nil
}

func runServer(a *app) error {
	cfg := a.cfg
	deps := handler.RouterDeps{
		Databases:     handler.NewDatabaseHandler(a.databases, a.qa),
		Documents:     handler.NewDocumentHandler(a.qa, a.archive),
		QA:            handler.NewQAHandler(a.qa),
		AskRateWindow: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cacheRepo != nil {
		scheduler := schedule.NewCronScheduler()
		cleanup := job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.AI.CacheMaxAgeDays)
		if err := scheduler.AddJob(cleanup, "30 3 * * *"); err != nil {
			return err
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
