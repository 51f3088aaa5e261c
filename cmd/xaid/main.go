// Command xaid runs the XAI node daemon: it wires the consensus-bearing
// core (C1-C11) and the HTTP/WebSocket API boundary (C12) together, then
// serves until an interrupt signal arrives.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xai-network/xaid/config"
	"github.com/xai-network/xaid/core"
	"github.com/xai-network/xaid/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.XAID)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	services, err := core.New(cfg)
	if err != nil {
		log.Errorf("error initializing node: %s", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	services.Start(ctx)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.RPCPort),
		Handler: services.API.Router(),
	}
	go func() {
		log.Infof("API server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("API server error: %s", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Infof("received shutdown signal, stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("error shutting down API server: %s", err)
	}

	cancel()
	if err := services.Stop(); err != nil {
		log.Errorf("error stopping node: %s", err)
		os.Exit(1)
	}
}
