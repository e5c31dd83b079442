package app

import (
	"context"
	"fmt"

	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/events"
	"github.com/aliskhannn/status-board/internal/fetch/citymapper"
	"github.com/aliskhannn/status-board/internal/fetch/googletasks"
	"github.com/aliskhannn/status-board/internal/fetch/todoist"
	"github.com/aliskhannn/status-board/internal/render"
	"github.com/aliskhannn/status-board/internal/storage/file"
	"github.com/aliskhannn/status-board/internal/upload"
)

// BuildDepartures creates the departures pipeline from configuration.
func BuildDepartures(cfg *config.Config, pub events.Publisher) (*Departures, error) {
	loc, err := cfg.Display.Location()
	if err != nil {
		return nil, err
	}

	fonts, err := render.LoadFonts(cfg.Display.FontPath, cfg.Display.BoldFontPath)
	if err != nil {
		return nil, err
	}

	board, err := render.NewDeparturesBoard(cfg.Display, cfg.Departures, fonts)
	if err != nil {
		return nil, err
	}

	src := citymapper.New(cfg.Departures, cfg.HTTP.Timeout, citymapper.WithLocation(loc))
	out := Output{Path: cfg.Departures.Output, Quality: cfg.Display.Quality}

	return NewDepartures(src, board, out, pub), nil
}

// BuildTasks creates the task pipeline for the configured provider.
func BuildTasks(ctx context.Context, cfg *config.Config, pub events.Publisher) (*Tasks, error) {
	loc, err := cfg.Display.Location()
	if err != nil {
		return nil, err
	}

	fonts, err := render.LoadFonts(cfg.Display.FontPath, cfg.Display.BoldFontPath)
	if err != nil {
		return nil, err
	}

	board, err := render.NewTasksBoard(cfg.Display, cfg.Tasks, fonts)
	if err != nil {
		return nil, err
	}

	var src taskSource
	switch cfg.Tasks.Provider {
	case "googletasks":
		src, err = googletasks.New(ctx, cfg.Tasks, cfg.HTTP.Timeout, loc)
	case "todoist":
		src, err = todoist.New(ctx, cfg.Tasks, cfg.HTTP.Timeout, todoist.WithLocation(loc))
	default:
		err = fmt.Errorf("unknown task provider %q", cfg.Tasks.Provider)
	}
	if err != nil {
		return nil, err
	}

	out := Output{Path: cfg.Tasks.Output, Quality: cfg.Display.Quality}
	return NewTasks(src, cfg.Tasks.Provider, board, out, pub), nil
}

// BuildUpload creates the upload pipeline, connecting the mirror when a
// storage endpoint is configured.
func BuildUpload(ctx context.Context, cfg *config.Config, pub events.Publisher) (*Upload, error) {
	client, err := upload.New(cfg.Device, cfg.HTTP.Timeout)
	if err != nil {
		return nil, err
	}

	if !cfg.Storage.Enabled() {
		return NewUpload(client, nil, pub), nil
	}

	storage, err := file.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, &upload.Error{URL: cfg.Storage.Endpoint, Err: fmt.Errorf("mirror: %w", err)}
	}
	return NewUpload(client, storage, pub), nil
}
