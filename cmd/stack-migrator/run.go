package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/kubev2v/stack-migration/internal/api_server"
	"github.com/kubev2v/stack-migration/internal/blob"
	"github.com/kubev2v/stack-migration/internal/cli"
	"github.com/kubev2v/stack-migration/internal/config"
	"github.com/kubev2v/stack-migration/internal/events"
	"github.com/kubev2v/stack-migration/internal/service"
	"github.com/kubev2v/stack-migration/internal/store"
	"github.com/kubev2v/stack-migration/pkg/log"
	"github.com/kubev2v/stack-migration/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stack migration api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		logger := log.InitLog(cfg.Service.LogLevel)
		defer func() { _ = logger.Sync() }()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		producer := events.NewEventProducer(
			&events.StdoutWriter{},
			events.WithOutputTopic(cfg.Backup.EventTopic),
			events.WithFlushInterval(cfg.Backup.EventFlushInterval),
			events.WithBufferSize(cfg.Backup.EventBufferSize),
		)
		defer func() {
			if err := producer.Close(); err != nil {
				zap.S().Errorw("failed to close event producer", "error", err)
			}
		}()

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := migrations.MigrateStore(db, cfg); err != nil {
			zap.S().Fatalw("running migrations", "error", err)
		}

		blobStore, err := blob.New(ctx, cfg)
		if err != nil {
			zap.S().Fatalw("initializing blob store", "error", err)
		}

		opts, err := cli.ServiceOptions(cfg)
		if err != nil {
			zap.S().Fatalw("reading migration options", "error", err)
		}
		opts = append(opts, service.WithListeners(
			service.NewAclOwnerTypeListener(s),
			service.NewChangeBroadcastListener(producer),
		))
		migrationService := service.NewMigrationService(s, blobStore, opts...)

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			server := apiserver.New(cfg, migrationService, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("Error running server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("failed to run metrics server", "error", err)
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
