package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/askmydocs/internal/adapters/driving/http"
	"github.com/custodia-labs/askmydocs/internal/runtime"
	"github.com/custodia-labs/askmydocs/internal/worker"
)

const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeAll    = "all"
)

func (c *cli) newServeCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the indexing worker, or both",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch mode {
			case modeAPI, modeWorker, modeAll:
			default:
				return fmt.Errorf("unknown mode %q (use: api, worker, or all)", mode)
			}

			cfg, logger, err := c.load(cmd)
			if err != nil {
				return err
			}
			logger.Info("askmydocs starting", "version", version, "mode", mode)

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			a.loadIndex(ctx)

			switch mode {
			case modeAPI:
				return a.runAPI(ctx)
			case modeWorker:
				return a.runWorker(ctx)
			default:
				w, err := a.startWorker(ctx)
				if err != nil {
					return err
				}
				defer w.Stop()
				return a.serveHTTP(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeAll, "what to run: api, worker or all")
	cmd.Flags().Int("port", 0, "HTTP port (overrides server.port)")
	bindFlag(c.v, "server.port", cmd, "port")
	return cmd
}

// runAPI serves HTTP and follows index bundles written by separate worker
// processes.
func (a *app) runAPI(ctx context.Context) error {
	if a.cfg.Queue.Backend == "memory" {
		a.logger.Warn("api mode with the memory queue: uploads are queued but no worker will index them")
	}

	watcher := runtime.NewIndexWatcher(a.cfg.VectorIndex.Path, a.cfg.Worker.ReloadInterval,
		a.orchestrator.Reload, a.logger.With("component", "watcher"))
	watcher.Start(ctx)
	defer watcher.Stop()

	return a.serveHTTP(ctx)
}

func (a *app) runWorker(ctx context.Context) error {
	w, err := a.startWorker(ctx)
	if err != nil {
		return err
	}

	a.logger.Info("worker started, processing index_document tasks")
	<-ctx.Done()

	a.logger.Info("stopping worker")
	w.Stop()
	return nil
}

func (a *app) startWorker(ctx context.Context) (*worker.Worker, error) {
	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.queue,
		Indexer:        a.orchestrator,
		Logger:         a.logger,
		Concurrency:    a.cfg.Worker.Concurrency,
		DequeueTimeout: a.cfg.Worker.DequeueTimeout,
	})
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	return w, nil
}

func (a *app) serveHTTP(ctx context.Context) error {
	server := http.NewServer(http.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		Version:        version,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
	}, http.Deps{
		Questions: a.answers,
		Ingestion: a.ingestion,
		Runtime:   a.runtime,
		Checks:    a.checks,
		Logger:    a.logger,
	})
	return server.Start(ctx)
}
