// Command upload sends a rendered board to the display device's gallery.
//
//	upload [flags] [image.jpg]
//
// The image defaults to the departures board output.
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

	zlog.Init()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	os.Exit(run(*configPath, pflag.Arg(0)))
}

func run(configPath, imagePath string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to load .env")
		return exitcode.ConfigError
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to load config")
		return exitcode.ConfigError
	}

	if imagePath == "" {
		imagePath = cfg.Departures.Output
	}

	pub := events.NewPublisher(cfg.Kafka)
	defer func() {
		if err := pub.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	p, err := app.BuildUpload(ctx, cfg, pub)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to set up uploader")
		return exitcode.FromError(err)
	}

	zlog.Logger.Info().Str("file", imagePath).Str("device", cfg.Device.BaseURL).Msg("uploading")
	if err := p.Run(ctx, imagePath); err != nil {
		zlog.Logger.Error().Err(err).Msg("upload failed")
		return exitcode.FromError(err)
	}

	return exitcode.Success
}
