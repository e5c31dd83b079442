package render

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/model"
)

// Departures board geometry, in pixels.
const (
	depHeaderHeight = 28
	depCaptionY     = 32
	depCaptionLine  = 45
	depFirstRowY    = 50
	depRowHeight    = 47
	depMinRowHeight = 40
	depMargin       = 8
	depRouteX       = 8
	depBarWidth     = 4
	depDestX        = 80
	depCaptionDestX = 65
	depCaptionTimeX = 185
	depTimeRight    = 6
	depDotSize      = 6
)

// DeparturesBoard renders the airport-style departures board.
type DeparturesBoard struct {
	width, height   int
	maxItems        int
	imminentMinutes int
	ellipsis        string
	loc             *time.Location
	now             func() time.Time

	bg, header, text, muted, accent, imminent, grid, altRow color.RGBA

	titleFace, captionFace, routeFace, destFace, timeFace, followFace, emptyFace font.Face
}

// BoardOption configures a board at construction.
type BoardOption func(*boardOptions)

type boardOptions struct {
	now func() time.Time
}

// WithClock overrides the clock shown in headers.
func WithClock(now func() time.Time) BoardOption {
	return func(o *boardOptions) { o.now = now }
}

// NewDeparturesBoard validates the palette and geometry and prepares the faces.
func NewDeparturesBoard(display config.Display, cfg config.Departures, fonts *Fonts, opts ...BoardOption) (*DeparturesBoard, error) {
	o := boardOptions{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if cfg.MaxItems < 1 {
		return nil, fmt.Errorf("departures board: max items must be at least 1, got %d", cfg.MaxItems)
	}
	if capacity := (display.Height - depFirstRowY) / depMinRowHeight; cfg.MaxItems > capacity {
		return nil, fmt.Errorf("departures board: %d rows do not fit a %dpx canvas (at most %d)", cfg.MaxItems, display.Height, capacity)
	}

	loc, err := display.Location()
	if err != nil {
		return nil, err
	}

	var p palette
	b := &DeparturesBoard{
		width:           display.Width,
		height:          display.Height,
		maxItems:        cfg.MaxItems,
		imminentMinutes: cfg.ImminentMinutes,
		ellipsis:        display.Ellipsis,
		loc:             loc,
		now:             o.now,

		bg:       p.color("background", cfg.Colors.Background),
		header:   p.color("header", cfg.Colors.Header),
		text:     p.color("text", cfg.Colors.Text),
		muted:    p.color("muted", cfg.Colors.Muted),
		accent:   p.color("accent", cfg.Colors.Accent),
		imminent: p.color("imminent", cfg.Colors.Imminent),
		grid:     p.color("grid", cfg.Colors.Grid),
		altRow:   p.color("alt_row", cfg.Colors.AltRow),

		titleFace:   fonts.Bold(16),
		captionFace: fonts.Regular(9),
		routeFace:   fonts.Bold(30),
		destFace:    fonts.Regular(11),
		timeFace:    fonts.Bold(24),
		followFace:  fonts.Regular(11),
		emptyFace:   fonts.Regular(14),
	}
	if err := p.err(); err != nil {
		return nil, fmt.Errorf("departures board: %w", err)
	}

	return b, nil
}

// Classify returns the colour of a departure's time column.
func (b *DeparturesBoard) Classify(d model.Departure) color.RGBA {
	switch {
	case d.Live && d.MinutesUntil <= b.imminentMinutes:
		return b.imminent
	case d.Live:
		return b.accent
	default:
		return b.text
	}
}

// TimeText formats the time column: minutes for live, clock time otherwise.
func (b *DeparturesBoard) TimeText(d model.Departure) string {
	if d.Live || d.Departs.IsZero() {
		return fmt.Sprintf("%d min", d.MinutesUntil)
	}
	return d.Departs.In(b.loc).Format("15:04")
}

// Render draws the board. Only the first MaxItems departures are drawn.
func (b *DeparturesBoard) Render(deps []model.Departure) *Frame {
	if len(deps) > b.maxItems {
		deps = deps[:b.maxItems]
	}

	dc := gg.NewContextForImage(imaging.New(b.width, b.height, b.bg))
	w := float64(b.width)

	// Header band with title and clock.
	dc.SetColor(b.header)
	dc.DrawRectangle(0, 0, w, depHeaderHeight)
	dc.Fill()

	dc.SetFontFace(b.titleFace)
	dc.SetColor(b.text)
	drawText(dc, "DEPARTURES", depMargin, 6)
	dc.SetColor(b.muted)
	drawTextRight(dc, b.now().In(b.loc).Format("15:04"), w-depMargin, 6)

	dc.SetColor(b.grid)
	hline(dc, 0, w, depHeaderHeight, 2)

	// Column captions.
	dc.SetFontFace(b.captionFace)
	dc.SetColor(b.muted)
	drawText(dc, "LINE", depMargin, depCaptionY)
	drawText(dc, "DESTINATION", depCaptionDestX, depCaptionY)
	drawText(dc, "TIME", depCaptionTimeX, depCaptionY)

	dc.SetColor(b.grid)
	hline(dc, 0, w, depCaptionLine, 1)

	frame := &Frame{Rows: make([]Row, 0, len(deps))}

	if len(deps) == 0 {
		dc.SetFontFace(b.emptyFace)
		dc.SetColor(b.muted)
		dc.DrawStringAnchored("No departures", w/2, float64(depFirstRowY+b.height)/2, 0.5, 0.5)
		frame.Image = dc.Image()
		return frame
	}

	rowHeight := depRowHeight
	if fit := (b.height - depFirstRowY) / b.maxItems; fit < rowHeight {
		rowHeight = fit
	}
	rh := float64(rowHeight)

	y := float64(depFirstRowY)
	for i, d := range deps {
		frame.Rows = append(frame.Rows, b.drawRow(dc, i, d, y, rh, i < len(deps)-1))
		y += rh
	}

	frame.Image = dc.Image()
	return frame
}

func (b *DeparturesBoard) drawRow(dc *gg.Context, i int, d model.Departure, y, rh float64, separator bool) Row {
	w := float64(b.width)

	if i%2 == 1 {
		dc.SetColor(b.altRow)
		dc.DrawRectangle(0, y-2, w, rh)
		dc.Fill()
	}

	routeY := y + 8

	// Route colour bar; an unparseable route colour falls back to muted.
	bar, err := ParseHex(d.RouteColor)
	if err != nil {
		bar = b.muted
	}
	dc.SetColor(bar)
	dc.DrawRectangle(depRouteX, routeY-2, depBarWidth, rh-16)
	dc.Fill()

	labelX := float64(depRouteX + depBarWidth + 6)
	dc.SetFontFace(b.routeFace)
	dc.SetColor(b.text)
	label := fitText(dc, d.RouteLabel, depDestX-labelX-4, b.ellipsis)
	drawText(dc, label, labelX, routeY)

	// Time column, right aligned.
	timeText := b.TimeText(d)
	timeColor := b.Classify(d)
	dc.SetFontFace(b.timeFace)
	timeWidth, _ := dc.MeasureString(timeText)
	timeX := w - timeWidth - depTimeRight
	dc.SetColor(timeColor)
	drawTextRight(dc, timeText, w-depTimeRight, routeY+1)

	destRight := timeX - 4
	if d.Live {
		dotX := timeX - 10
		dc.SetColor(timeColor)
		dc.DrawCircle(dotX+depDotSize/2, routeY+10+depDotSize/2, depDotSize/2)
		dc.Fill()
		destRight = dotX - 4
	}

	dc.SetFontFace(b.destFace)
	dc.SetColor(b.text)
	dest := fitText(dc, d.Destination, destRight-depDestX, b.ellipsis)
	drawText(dc, dest, depDestX, routeY+1)

	if len(d.Following) > 0 && rh >= depMinRowHeight {
		times := make([]string, 0, len(d.Following))
		for _, t := range d.Following {
			times = append(times, t.In(b.loc).Format("15:04"))
		}
		dc.SetFontFace(b.followFace)
		dc.SetColor(b.muted)
		drawText(dc, fitText(dc, strings.Join(times, ", "), destRight-depDestX, b.ellipsis), depDestX, routeY+16)
	}

	if separator {
		dc.SetColor(b.grid)
		hline(dc, depMargin, w-depMargin, y+rh-2, 1)
	}

	return Row{Label: label, Text: dest, Detail: timeText, Color: timeColor}
}
