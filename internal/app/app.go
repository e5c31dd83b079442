// Package app wires fetchers, boards, the uploader and the optional
// mirror and event publisher into the three command pipelines.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/status-board/internal/events"
	"github.com/aliskhannn/status-board/internal/fetch"
	"github.com/aliskhannn/status-board/internal/model"
	"github.com/aliskhannn/status-board/internal/render"
	"github.com/aliskhannn/status-board/internal/upload"
)

// Board names used in logs and events.
const (
	BoardDepartures = "departures"
	BoardTasks      = "tasks"
)

type departureSource interface {
	Departures(ctx context.Context) ([]model.Departure, error)
}

type taskSource interface {
	Tasks(ctx context.Context) ([]model.Task, error)
}

type departuresRenderer interface {
	Render(deps []model.Departure) *render.Frame
}

type tasksRenderer interface {
	Render(tasks []model.Task) *render.Frame
}

type uploader interface {
	Upload(ctx context.Context, path string) (*upload.Result, error)
}

// mirror stores a copy of a published image.
type mirror interface {
	Save(ctx context.Context, filename string, src io.Reader, size int64) (string, error)
}

// Output is where a board image is written.
type Output struct {
	Path    string
	Quality int
}

// Departures is the fetch-render-write pipeline of the transit board.
type Departures struct {
	source    departureSource
	board     departuresRenderer
	out       Output
	publisher events.Publisher
	now       func() time.Time
}

// NewDepartures assembles the departures pipeline. A nil publisher
// discards events.
func NewDepartures(src departureSource, board departuresRenderer, out Output, pub events.Publisher) *Departures {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Departures{source: src, board: board, out: out, publisher: pub, now: time.Now}
}

// Run produces the departures image. Nothing is written when the fetch fails.
func (p *Departures) Run(ctx context.Context) error {
	deps, err := p.source.Departures(ctx)
	if err != nil {
		return asFetchError("citymapper", err)
	}

	zlog.Logger.Info().Int("departures", len(deps)).Msg("fetched departures")

	frame := p.board.Render(deps)
	return writeFrame(ctx, BoardDepartures, frame, p.out, p.publisher, p.now)
}

// Tasks is the fetch-render-write pipeline of the task board.
type Tasks struct {
	source    taskSource
	name      string
	board     tasksRenderer
	out       Output
	publisher events.Publisher
	now       func() time.Time
}

// NewTasks assembles the task pipeline; name identifies the provider in errors.
func NewTasks(src taskSource, name string, board tasksRenderer, out Output, pub events.Publisher) *Tasks {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Tasks{source: src, name: name, board: board, out: out, publisher: pub, now: time.Now}
}

// Run produces the task image. Nothing is written when the fetch fails.
func (p *Tasks) Run(ctx context.Context) error {
	tasks, err := p.source.Tasks(ctx)
	if err != nil {
		return asFetchError(p.name, err)
	}

	zlog.Logger.Info().Int("tasks", len(tasks)).Str("provider", p.name).Msg("fetched tasks")

	frame := p.board.Render(tasks)
	return writeFrame(ctx, BoardTasks, frame, p.out, p.publisher, p.now)
}

func writeFrame(ctx context.Context, board string, frame *render.Frame, out Output, pub events.Publisher, now func() time.Time) error {
	if frame.Empty() {
		zlog.Logger.Info().Str("board", board).Msg("nothing to show, drawing empty state")
	}
	for i, row := range frame.Rows {
		zlog.Logger.Debug().
			Int("row", i).
			Str("label", row.Label).
			Str("text", row.Text).
			Str("detail", row.Detail).
			Msg("drew row")
	}

	size, err := render.WriteJPEG(out.Path, frame.Image, out.Quality)
	if err != nil {
		return err
	}

	zlog.Logger.Info().
		Str("board", board).
		Str("file", out.Path).
		Int("bytes", size).
		Msg("image written")

	publish(ctx, pub, events.NewEvent(events.KindRendered, board, filepath.Base(out.Path), int64(size), now()))
	return nil
}

// Upload pushes an image to the device and, when configured, mirrors it.
type Upload struct {
	client    uploader
	mirror    mirror
	publisher events.Publisher
	now       func() time.Time
}

// NewUpload assembles the upload pipeline. m and pub may be nil.
func NewUpload(client uploader, m mirror, pub events.Publisher) *Upload {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Upload{client: client, mirror: m, publisher: pub, now: time.Now}
}

// Run uploads the file at path.
func (p *Upload) Run(ctx context.Context, path string) error {
	res, err := p.client.Upload(ctx, path)
	if err != nil {
		return err
	}

	zlog.Logger.Info().
		Str("file", res.Filename).
		Int("status", res.StatusCode).
		Str("url", res.URL).
		Msg("upload successful")

	if p.mirror != nil {
		key, err := p.saveMirror(ctx, path)
		if err != nil {
			return &upload.Error{URL: path, Err: fmt.Errorf("mirror: %w", err)}
		}
		zlog.Logger.Info().Str("key", key).Msg("image mirrored")
	}

	publish(ctx, p.publisher, events.NewEvent(events.KindUploaded, BoardName(path), res.Filename, int64(res.Size), p.now()))
	return nil
}

func (p *Upload) saveMirror(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	return p.mirror.Save(ctx, filepath.Base(path), f, info.Size())
}

// BoardName derives the event key from an image file name.
func BoardName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// publish logs instead of failing: the image already exists.
func publish(ctx context.Context, pub events.Publisher, ev events.Event) {
	if err := pub.Publish(ctx, ev); err != nil {
		zlog.Logger.Warn().Err(err).Str("kind", string(ev.Kind)).Str("board", ev.Board).Msg("failed to publish event")
	}
}

func asFetchError(source string, err error) error {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return err
	}
	return &fetch.Error{Source: source, Err: err}
}
