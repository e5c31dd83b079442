// Command gallerysim serves a local stand-in for the display device's
// gallery so boards can be uploaded and inspected without hardware.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/gallery"
)

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultPath, "path to the YAML config file")
	debug := pflag.Bool("debug", false, "enable debug logging")
	malformed := pflag.Bool("malformed-content-length", false, "answer uploads with a broken Content-Length header")
	pflag.Parse()

	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := config.LoadDotEnv(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load .env")
	}
	cfg := config.MustLoad(*configPath)

	// Initialize the gallery directory.
	store, err := gallery.NewStore(cfg.Gallery.Dir)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to prepare gallery directory")
	}

	h := gallery.NewHandler(store, gallery.WithMalformedContentLength(cfg.Gallery.MalformedContentLength || *malformed))

	// Start HTTP server in a separate goroutine.
	s := gallery.NewServer(cfg.Gallery.HTTPPort, gallery.NewRouter(h))
	go func() {
		zlog.Logger.Info().Str("addr", s.Addr).Str("dir", store.Root()).Msg("gallery listening")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}
}
