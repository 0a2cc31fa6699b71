package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopassist/shopassist/internal/api"
	"github.com/shopassist/shopassist/internal/assistant"
	"github.com/shopassist/shopassist/internal/auth"
	"github.com/shopassist/shopassist/internal/catalog"
	"github.com/shopassist/shopassist/internal/config"
	"github.com/shopassist/shopassist/internal/llm"
	"github.com/shopassist/shopassist/internal/narrate"
	"github.com/shopassist/shopassist/internal/nl2sql"
	"github.com/shopassist/shopassist/internal/observability"
	"github.com/shopassist/shopassist/internal/query"
	duckdbengine "github.com/shopassist/shopassist/internal/query/duckdb"
	"github.com/shopassist/shopassist/internal/query/sqlstore"
	"github.com/shopassist/shopassist/internal/router"
	s3store "github.com/shopassist/shopassist/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("shopassist-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	engine, closeEngine, err := openEngine(startupCtx, cfg)
	if err != nil {
		logger.Error("failed to open query engine", slog.String("backend", cfg.Store.Backend), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeEngine()

	client, err := llm.NewClient(llm.Config{
		BaseURL:        cfg.AI.BaseURL,
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		EmbeddingModel: cfg.Router.EmbeddingModel,
		MaxTokens:      cfg.AI.MaxTokens,
		Timeout:        cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize generation client", slog.Any("error", err))
		os.Exit(1)
	}

	questionRouter, err := newRouter(startupCtx, cfg, client)
	if err != nil {
		logger.Error("failed to initialize router", slog.Any("error", err))
		os.Exit(1)
	}

	schema := catalog.ProductSchema()
	generator, err := nl2sql.NewLLMGenerator(client, nl2sql.GeneratorConfig{
		Temperature: cfg.AI.Temperature,
		Schema:      &schema,
	})
	if err != nil {
		logger.Error("failed to initialize statement generator", slog.Any("error", err))
		os.Exit(1)
	}

	narrator, err := newNarrator(cfg, client)
	if err != nil {
		logger.Error("failed to initialize narrator", slog.Any("error", err))
		os.Exit(1)
	}

	shopAssistant, err := assistant.New(assistant.Assistant{
		Router:    questionRouter,
		Generator: generator,
		Validator: nl2sql.NewValidator(nl2sql.ValidatorOptions{StrictColumns: cfg.Pipeline.StrictColumns}),
		Engine:    engine,
		Narrator:  narrator,
		RowLimit:  cfg.Pipeline.RowLimit,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to assemble assistant", slog.Any("error", err))
		os.Exit(1)
	}

	readiness := []api.ReadinessCheck{api.CheckEngine(engine), api.CheckGenerationConfig(cfg)}
	if cfg.Store.Backend == config.StoreBackendDuckDB {
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg))
	}
	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: 2 * time.Second,
		Assistant:         shopAssistant,
		Schema:            &schema,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("backend", cfg.Store.Backend),
			slog.String("encoder", cfg.Router.Encoder),
			slog.String("narration", cfg.Pipeline.NarrationMode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openEngine(ctx context.Context, cfg config.Config) (query.Engine, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite, config.StoreBackendPostgres:
		dbCfg := sqlstore.DBConfig{
			Dialect:         sqlstore.DialectPostgres,
			DSN:             cfg.Store.PostgresDSN,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		}
		if cfg.Store.Backend == config.StoreBackendSQLite {
			dbCfg.Dialect = sqlstore.DialectSQLite
			dbCfg.DSN = sqlstore.SQLiteDSN(cfg.Store.SQLitePath, true)
		}
		db, err := sqlstore.Open(ctx, dbCfg)
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.NewEngine(db, sqlstore.WithDialect(dbCfg.Dialect)), func() { _ = db.Close() }, nil
	case config.StoreBackendDuckDB:
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			return nil, nil, err
		}
		return duckdbengine.NewEngine(store, cfg.Store.SnapshotKey), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func newRouter(ctx context.Context, cfg config.Config, client *llm.Client) (*router.SemanticRouter, error) {
	var encoder router.Encoder
	switch cfg.Router.Encoder {
	case config.EncoderEmbedding:
		embedding, err := router.NewEmbeddingEncoder(client)
		if err != nil {
			return nil, err
		}
		encoder = embedding
	default:
		encoder = router.NewHashingEncoder(0)
	}

	definitions, err := router.DefaultDefinitions()
	if cfg.Router.RoutesFile != "" {
		definitions, err = router.LoadDefinitions(cfg.Router.RoutesFile)
	}
	if err != nil {
		return nil, err
	}
	return router.NewSemanticRouter(ctx, encoder, definitions, router.Options{
		Threshold: cfg.Router.Threshold,
		CacheSize: cfg.Router.CacheSize,
	})
}

func newNarrator(cfg config.Config, client *llm.Client) (narrate.Narrator, error) {
	if cfg.Pipeline.NarrationMode == config.NarrationModeTemplate {
		return narrate.NewTemplateNarrator(), nil
	}
	return narrate.NewLLMNarrator(client, cfg.AI.Temperature)
}
