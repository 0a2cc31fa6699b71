package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopassist/shopassist/internal/catalog/loader"
	"github.com/shopassist/shopassist/internal/config"
	"github.com/shopassist/shopassist/internal/observability"
	"github.com/shopassist/shopassist/internal/query/sqlstore"
	s3store "github.com/shopassist/shopassist/internal/storage/s3"
)

func main() {
	csvPath := flag.String("csv", "resources/ecommerce_data_final.csv", "path to the catalog CSV export")
	target := flag.String("target", "", "load target: sqlite|postgres|snapshot (defaults to the configured store backend)")
	force := flag.Bool("force", false, "reload even if the target already holds products")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall load timeout")
	flag.Parse()

	cfg, err := config.LoadFromEnv("shopassist-loader")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	name := *target
	if name == "" {
		name = cfg.Store.Backend
		if name == config.StoreBackendDuckDB {
			name = "snapshot"
		}
	}
	sink, closeSink, err := openTarget(ctx, cfg, name)
	if err != nil {
		logger.Error("failed to open load target", slog.String("target", name), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeSink()

	file, err := os.Open(*csvPath)
	if err != nil {
		logger.Error("failed to open csv", slog.String("path", *csvPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = file.Close() }()

	report, err := loader.Load(ctx, file, sink, loader.Options{Force: *force, Logger: logger})
	if err != nil {
		logger.Error("catalog load failed", slog.String("target", name), slog.Any("error", err))
		os.Exit(1)
	}
	if snapshot, ok := sink.(*loader.SnapshotTarget); ok && !report.Skipped {
		logger.Info("snapshot published",
			slog.String("version_key", snapshot.LastRef.VersionKey),
			slog.String("current_key", snapshot.LastRef.CurrentKey),
			slog.Int64("bytes", snapshot.LastRef.Size),
		)
	}
}

func openTarget(ctx context.Context, cfg config.Config, name string) (loader.Target, func(), error) {
	switch name {
	case config.StoreBackendSQLite, config.StoreBackendPostgres:
		dbCfg := sqlstore.DBConfig{Dialect: sqlstore.DialectPostgres, DSN: cfg.Store.PostgresDSN}
		if name == config.StoreBackendSQLite {
			if cfg.Store.SQLitePath == "" || cfg.Store.SQLitePath == sqlstore.MemoryPath {
				return nil, nil, fmt.Errorf("sqlite target needs a file path, got %q", cfg.Store.SQLitePath)
			}
			dbCfg = sqlstore.DBConfig{Dialect: sqlstore.DialectSQLite, DSN: sqlstore.SQLiteDSN(cfg.Store.SQLitePath, false)}
		}
		db, err := sqlstore.Open(ctx, dbCfg)
		if err != nil {
			return nil, nil, err
		}
		return &loader.SQLTarget{DB: db, Dialect: dbCfg.Dialect}, func() { _ = db.Close() }, nil
	case "snapshot":
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
		return &loader.SnapshotTarget{Store: store}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown load target %q", name)
	}
}
