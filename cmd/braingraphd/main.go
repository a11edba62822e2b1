// braingraphd is the HTTP front door of the memory engine.
//
// It exposes endpoints for ingesting events, asking grounded questions,
// assembling retrieval context packs, housekeeping, and plan checks.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/braingraph/braingraph/pkg/brain"
	"github.com/braingraph/braingraph/pkg/config"
	"github.com/braingraph/braingraph/pkg/metrics"
	"github.com/braingraph/braingraph/pkg/retrieve"
	"github.com/braingraph/braingraph/pkg/server"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("braingraphd: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := config.NewLogger(settings)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graph, err := config.NewStore(ctx, settings)
	if err != nil {
		logger.Fatal("failed to open store", "err", err)
	}
	defer graph.Close()
	if err := graph.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", "err", err)
	}

	client, err := config.NewLLM(settings)
	if err != nil {
		logger.Fatal("failed to build model client", "err", err)
	}

	collector := config.NewCollector(settings)
	var metricsHandler http.Handler
	if mc, ok := collector.(*metrics.MetricsCollector); ok {
		metricsHandler = mc.Handler()
	}

	b, err := brain.New(brain.Config{
		Store:   graph,
		LLM:     client,
		Logger:  logger,
		Metrics: collector,
		Models: retrieve.ModelTable{
			Cheap:   settings.ModelCheap,
			Default: settings.ModelDefault,
			Premium: settings.ModelPremium,
		},
	})
	if err != nil {
		logger.Fatal("failed to build engine", "err", err)
	}

	srv := server.New(b, logger, metricsHandler)
	go func() {
		if err := srv.Start(settings.ListenAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down server", "err", err)
	}
}
