package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blog/internal/auth"
	"blog/internal/config"
	"blog/internal/db"
	"blog/internal/graph"
	"blog/internal/handlers"
	"blog/internal/metrics"
	"blog/internal/pubsub"
	"blog/internal/service"
	"blog/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "parsing log_level")
	}
	zc.Level = level
	return zc.Build()
}

// openDB opens and migrates the configured SQL database. The sqlite file's
// directory is created if missing.
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, db.Dialect, error) {
	dialect := db.Dialect(cfg.Store)
	if dialect == db.SQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, "", errors.Wrap(err, "creating data dir")
		}
	}
	conn, err := db.Open(dialect, cfg.DSN)
	if err != nil {
		return nil, "", err
	}
	if err := db.Migrate(ctx, conn, dialect); err != nil {
		conn.Close()
		return nil, "", err
	}
	return conn, dialect, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(context.Context) error, error) {
	if cfg.Store == config.StoreMemory {
		return store.NewMemory(), nil, nil
	}
	conn, dialect, err := openDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.NewSQL(conn, dialect), conn.PingContext, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store == config.StoreMemory {
		return errors.New("nothing to migrate for the memory store")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	conn, _, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("database migrated", zap.String("store", cfg.Store))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	st, health, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	bus := pubsub.New(cfg.SubscriptionBuffer, log.Named("pubsub"), m)
	svc := service.New(st, auth.NewManager(cfg.JWTSecret, cfg.TokenTTL), bus, service.Options{
		BcryptCost: cfg.BcryptCost,
		Log:        log.Named("service"),
		Metrics:    m,
	})
	schema, err := graph.NewSchema(svc, log.Named("graphql"))
	if err != nil {
		return errors.Wrap(err, "parsing schema")
	}
	h := handlers.New(schema, m, log.Named("http"), health)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serving http")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
