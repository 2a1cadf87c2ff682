package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pdfextract/internal/api"
	"github.com/dgallion1/pdfextract/internal/config"
	"github.com/dgallion1/pdfextract/internal/pipeline"
	"github.com/dgallion1/pdfextract/internal/preview"
	"github.com/dgallion1/pdfextract/internal/stats"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	renderer, err := preview.New()
	if err != nil {
		log.Error("load templates", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, pipeline.DefaultExtractors(cfg), stats.NewRecorder(cfg.StatsWindow), log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, renderer, log, cfg)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// Synchronous extraction of large PDFs happens inside the request.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		log.Error("listen", "error", err)
		os.Exit(1)
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	log.Info("starting pdfextract",
		"port", cfg.Port,
		"image_engine", cfg.ImageEngine,
		"workers", cfg.WorkerCount,
		"auth", cfg.APIKey != "",
	)
	if err := serve(httpServer, ln, sigCtx.Done(), orch.Stop, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}

// serve runs srv on ln until stop is closed. It returns only after
// in-flight requests have drained and cleanup has run.
func serve(srv *http.Server, ln net.Listener, stop <-chan struct{}, cleanup func(), log *slog.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-stop
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
		cleanup()
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
