package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/danthegoodman1/icemor/config"
	"github.com/danthegoodman1/icemor/crdb"
	"github.com/danthegoodman1/icemor/datastore"
	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/gologger"
	"github.com/danthegoodman1/icemor/http_server"
	"github.com/danthegoodman1/icemor/metastore"
	"github.com/danthegoodman1/icemor/migrations"
	"github.com/danthegoodman1/icemor/plan"
	"github.com/danthegoodman1/icemor/planner"
	"github.com/danthegoodman1/icemor/s3_helper"
	"github.com/danthegoodman1/icemor/scheduler"
	"github.com/danthegoodman1/icemor/utils"
)

var logger = gologger.NewLogger()

func main() {
	logger.Debug().Msg("starting icemor compaction scheduler")

	cfg, err := config.LoadFile(utils.CONFIG_PATH)
	if err != nil {
		logger.Error().Err(err).Msg("error loading config")
		os.Exit(1)
	}

	ctx := logger.WithContext(context.Background())
	ms, err := newMetaStore(ctx, cfg.MetaStore)
	if err != nil {
		logger.Error().Err(err).Msg("error creating metastore")
		os.Exit(1)
	}

	view, plans, err := newStorage(cfg.Storage)
	if err != nil {
		logger.Error().Err(err).Msg("error creating storage")
		os.Exit(1)
	}

	sched := scheduler.New(view, plans, ms, planner.New(cfg.Compaction, fsutils.Convention{}))
	httpServer := http_server.StartHTTPServer(sched)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	// Convert the time to seconds
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
	if err := ms.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown metastore")
	}
}

func newMetaStore(ctx context.Context, cfg config.MetaStoreConfig) (metastore.MetaStore, error) {
	switch cfg.Backend {
	case config.MetaStoreRedis:
		return metastore.NewRedisMetaStore(ctx)
	case config.MetaStoreCRDB:
		if os.Getenv("RUN_MIGRATIONS") != "0" {
			if _, err := migrations.RunMigrations(utils.CRDB_DSN); err != nil {
				return nil, fmt.Errorf("error in RunMigrations: %w", err)
			}
		}
		if err := migrations.CheckMigrations(utils.CRDB_DSN); err != nil {
			return nil, fmt.Errorf("error in CheckMigrations: %w", err)
		}
		pool, err := crdb.ConnectToDB(ctx, utils.CRDB_DSN)
		if err != nil {
			return nil, fmt.Errorf("error in ConnectToDB: %w", err)
		}
		return metastore.NewCRDBMetaStore(pool), nil
	default:
		return metastore.NewMemoryMetaStore(), nil
	}
}

func newStorage(cfg config.StorageConfig) (datastore.FileSystemView, plan.Store, error) {
	if cfg.Backend == config.BackendS3 {
		client, err := s3_helper.NewClient()
		if err != nil {
			return nil, nil, fmt.Errorf("error in s3_helper.NewClient: %w", err)
		}
		return datastore.NewS3View(client, cfg.S3Prefix), plan.NewS3Store(client, path.Join(cfg.S3Prefix, ".plans")), nil
	}

	view, err := datastore.NewDiskView(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("error in NewDiskView: %w", err)
	}
	plans, err := plan.NewDiskStore(cfg.PlanDir)
	if err != nil {
		return nil, nil, fmt.Errorf("error in NewDiskStore: %w", err)
	}
	return view, plans, nil
}
