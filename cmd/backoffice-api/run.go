package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/fabworks/backoffice/internal/api_server"
	"github.com/fabworks/backoffice/internal/artifacts"
	"github.com/fabworks/backoffice/internal/config"
	"github.com/fabworks/backoffice/internal/jobs"
	"github.com/fabworks/backoffice/internal/jobs/builtin"
	"github.com/fabworks/backoffice/internal/objstore"
	"github.com/fabworks/backoffice/internal/queue"
	"github.com/fabworks/backoffice/internal/store"
	"github.com/fabworks/backoffice/internal/workers"
	"github.com/fabworks/backoffice/pkg/log"
)

const maxRetryDelay = 10 * time.Minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the back-office api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := migrateStore(db, s, cfg); err != nil {
			zap.S().Fatalf("running initial migration: %v", err)
		}

		objects, err := objstore.NewMinioStore(
			objstore.WithEndpoint(cfg.Storage.Endpoint),
			objstore.WithBucket(cfg.Storage.Bucket),
			objstore.WithAccessKey(cfg.Storage.AccessKey),
			objstore.WithSecretKey(cfg.Storage.SecretKey),
			objstore.WithSSL(cfg.Storage.UseSSL),
		)
		if err != nil {
			zap.S().Fatalf("initializing object store: %v", err)
		}
		if err := objstore.EnsureBucket(context.Background(), objects); err != nil {
			zap.S().Fatalf("ensuring artifact bucket: %v", err)
		}

		q := queue.New(s.Queue(), queue.Config{
			MaxAttempts: cfg.Queue.MaxAttempts,
			Backoff:     queue.NewExponential(cfg.Queue.BaseDelay, maxRetryDelay),
		})

		registry := jobs.NewRegistry()
		builtin.RegisterAll(registry)

		scratchRoot := cfg.Service.ScratchDir
		if scratchRoot == "" {
			scratchRoot = filepath.Join(os.TempDir(), "backoffice")
		}
		if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
			zap.S().Fatalf("creating scratch dir: %v", err)
		}

		pool := workers.NewPool(workers.Config{
			Workers:      cfg.Queue.Workers,
			PollInterval: cfg.Queue.PollInterval,
			ScratchRoot:  scratchRoot,
		}, q, registry, s, artifacts.New(s, objects))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go pool.Run(ctx, func(d *queue.Delivery) *jobs.Context {
			return jobs.NewContext(d.Item.JobID, d.Item.OrgID, d.Item.Username, s, objects, scratchRoot)
		})

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalf("creating metrics listener: %v", err)
			}
			if err := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener).Run(ctx); err != nil {
				zap.S().Fatalf("running metrics server: %v", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalf("creating listener: %v", err)
			}
			if err := apiserver.New(cfg, s, q, objects, listener).Run(ctx); err != nil {
				zap.S().Fatalf("running api server: %v", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
