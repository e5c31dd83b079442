// Command today renders today's tasks from Todoist or Google Tasks into a
// 240x240 JPEG.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/status-board/internal/app"
	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/events"
	"github.com/aliskhannn/status-board/internal/exitcode"
)

func main() {
	configPath := pflag.StringP("config", "c", config.DefaultPath, "path to the YAML config file")
	debug := pflag.Bool("debug", false, "enable debug logging")
	pflag.Parse()

	// Initialize logger.
	zlog.Init()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	// Context & signals: an interrupt aborts the fetch.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load .env and the application configuration.
	if err := config.LoadDotEnv(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to load .env")
		return exitcode.ConfigError
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to load config")
		return exitcode.ConfigError
	}

	pub := events.NewPublisher(cfg.Kafka)
	defer func() {
		if err := pub.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	p, err := app.BuildTasks(ctx, cfg, pub)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to set up task board")
		return exitcode.FromError(err)
	}

	if err := p.Run(ctx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to produce task board")
		return exitcode.FromError(err)
	}

	return exitcode.Success
}
