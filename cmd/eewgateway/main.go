// Command eewgateway runs the Taiwan earthquake early warning aggregation
// and fan-out gateway: it consumes upstream bulletins over a WebSocket or
// HTTP polling transport, computes per-region expected intensity, and
// dispatches alert lifecycle events to configured notifiers.
//
// Signal handling and the shutdown sequence mirror the teacher's
// cmd/server/main.go (os/signal, syscall.SIGTERM, a bounded grace context),
// generalized from just the HTTP listener to the whole runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/geo"
	"github.com/tw-eew/eewgateway/internal/httppool"
	"github.com/tw-eew/eewgateway/internal/ingest"
	"github.com/tw-eew/eewgateway/internal/logging"
	"github.com/tw-eew/eewgateway/internal/notify"
	"github.com/tw-eew/eewgateway/internal/runtime"
	"github.com/tw-eew/eewgateway/internal/transport"
	"github.com/tw-eew/eewgateway/internal/wavemodel"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "eewgateway: %v\n", err)
		return 1
	}

	logger := logging.New(logging.Options{
		DebugMode: cfg.DebugMode(),
		Format:    cfg.LogFormat(),
		Retention: cfg.LogRetention(),
	})

	regions, err := geo.LoadRegions(cfg.AssetsDir())
	if err != nil {
		logger.Errorf("eewgateway: fatal startup: %v", err)
		return 1
	}
	logger.Infof("eewgateway: loaded %d regions", regions.Len())

	table := alert.NewTable()
	cache := wavemodel.NewCache()

	factories := []notify.Factory{
		notify.NewLogNotifierFactory(),
		notify.NewWebhookNotifierFactory(),
		notify.NewDashboardNotifierFactory(),
	}
	registry := notify.Build(factories, cfg, logger)
	logger.Infof("eewgateway: %d notifiers registered", registry.Len())

	controller := ingest.New(table, registry, cfg, cache, regions.All(), logger, 0)

	apiPool := httppool.New(httppool.APINodeURLs(cfg.TransportDomain(), cfg.APINodeCount()))
	wsHosts := httppool.WSNodeHosts(cfg.TransportDomain(), cfg.WSNodeCount())
	supervisor := transport.New(os.Getenv("API_KEY"), wsHosts, services(), apiPool, controller, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := runtime.New(ctx, table, registry, supervisor, controller, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("eewgateway: shutdown signal received")
		rt.Shutdown()
	}()

	logger.Info("eewgateway: starting")
	rt.Run()
	logger.Info("eewgateway: stopped")
	return 0
}

// services lists the subscribable WebSocket service identifiers relevant to
// this gateway (spec.md §6): EEW alerts and real-time intensity reports.
func services() []string {
	return []string{"trem.eew", "websocket.eew", "cwa.intensity", "trem.intensity"}
}
