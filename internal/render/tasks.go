package render

import (
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/model"
)

// Task board geometry, in pixels.
const (
	taskMargin       = 12
	taskTitleY       = 10
	taskCountY       = 30
	taskHeaderLine   = 50
	taskFirstRowY    = 58
	taskRowHeight    = 36
	taskMinRowHeight = 30
	taskCheckSize    = 16
	taskDueOffset    = 18
)

var defaultPriorityColors = map[model.Priority]string{
	model.P1: "#d1453b",
	model.P2: "#eb8909",
	model.P3: "#4073ff",
	model.P4: "#808080",
}

// TasksBoard renders today's task list.
type TasksBoard struct {
	width, height int
	maxItems      int
	ellipsis      string

	bg, text, accent, completed, border, muted color.RGBA
	priority                                   map[model.Priority]color.RGBA

	titleFace, countFace, taskFace, dueFace font.Face
}

// NewTasksBoard validates the palette and geometry and prepares the faces.
func NewTasksBoard(display config.Display, cfg config.Tasks, fonts *Fonts) (*TasksBoard, error) {
	if cfg.MaxItems < 1 {
		return nil, fmt.Errorf("tasks board: max items must be at least 1, got %d", cfg.MaxItems)
	}
	if capacity := (display.Height - taskFirstRowY) / taskMinRowHeight; cfg.MaxItems > capacity {
		return nil, fmt.Errorf("tasks board: %d rows do not fit a %dpx canvas (at most %d)", cfg.MaxItems, display.Height, capacity)
	}

	var p palette
	b := &TasksBoard{
		width:    display.Width,
		height:   display.Height,
		maxItems: cfg.MaxItems,
		ellipsis: display.Ellipsis,

		bg:        p.color("background", cfg.Colors.Background),
		text:      p.color("text", cfg.Colors.Text),
		accent:    p.color("accent", cfg.Colors.Accent),
		completed: p.color("completed", cfg.Colors.Completed),
		border:    p.color("border", cfg.Colors.Border),
		muted:     p.color("muted", cfg.Colors.Muted),
		priority:  make(map[model.Priority]color.RGBA, len(defaultPriorityColors)),

		titleFace: fonts.Bold(16),
		countFace: fonts.Regular(10),
		taskFace:  fonts.Regular(13),
		dueFace:   fonts.Regular(11),
	}

	for prio, fallback := range defaultPriorityColors {
		hex, ok := cfg.Colors.Priority[prio.Key()]
		if !ok || hex == "" {
			hex = fallback
		}
		b.priority[prio] = p.color("priority."+prio.Key(), hex)
	}

	if err := p.err(); err != nil {
		return nil, fmt.Errorf("tasks board: %w", err)
	}

	return b, nil
}

// Classify returns the colour a task's marker is drawn in.
func (b *TasksBoard) Classify(t model.Task) color.RGBA {
	if t.Completed {
		return b.completed
	}
	return b.priority[t.Priority.Normalize()]
}

// Render draws the board. Only the first MaxItems tasks are drawn.
func (b *TasksBoard) Render(tasks []model.Task) *Frame {
	if len(tasks) > b.maxItems {
		tasks = tasks[:b.maxItems]
	}

	dc := gg.NewContextForImage(imaging.New(b.width, b.height, b.bg))
	w := float64(b.width)

	dc.SetFontFace(b.titleFace)
	dc.SetColor(b.accent)
	drawText(dc, "Today", taskMargin, taskTitleY)

	active, done := 0, 0
	for _, t := range tasks {
		if t.Completed {
			done++
		} else {
			active++
		}
	}
	count := fmt.Sprintf("%d tasks", active)
	if done > 0 {
		count = fmt.Sprintf("%d active · %d completed", active, done)
	}
	dc.SetFontFace(b.countFace)
	dc.SetColor(b.muted)
	drawText(dc, count, taskMargin, taskCountY)

	dc.SetColor(b.border)
	hline(dc, 0, w, taskHeaderLine, 1)

	frame := &Frame{Rows: make([]Row, 0, len(tasks))}

	if len(tasks) == 0 {
		dc.SetFontFace(b.taskFace)
		dc.SetColor(b.accent)
		dc.DrawStringAnchored("All done for today!", w/2, float64(b.height)/2, 0.5, 0.5)
		frame.Image = dc.Image()
		return frame
	}

	rowHeight := taskRowHeight
	if fit := (b.height - taskFirstRowY) / b.maxItems; fit < rowHeight {
		rowHeight = fit
	}
	rh := float64(rowHeight)

	y := float64(taskFirstRowY)
	for i, t := range tasks {
		frame.Rows = append(frame.Rows, b.drawRow(dc, t, y, rh, i < len(tasks)-1))
		y += rh
	}

	frame.Image = dc.Image()
	return frame
}

func (b *TasksBoard) drawRow(dc *gg.Context, t model.Task, y, rh float64, separator bool) Row {
	w := float64(b.width)
	marker := b.Classify(t)

	boxX, boxY := float64(taskMargin), y+2
	r := float64(taskCheckSize) / 2
	cx, cy := boxX+r, boxY+r

	if t.Completed {
		dc.SetColor(marker)
		dc.DrawCircle(cx, cy, r)
		dc.Fill()

		dc.SetColor(color.White)
		dc.SetLineWidth(2)
		dc.MoveTo(boxX+4, boxY+8)
		dc.LineTo(boxX+7, boxY+11)
		dc.LineTo(boxX+12, boxY+5)
		dc.Stroke()
	} else {
		dc.SetColor(marker)
		dc.SetLineWidth(2)
		dc.DrawCircle(cx, cy, r-1)
		dc.Stroke()
	}

	contentX := boxX + taskCheckSize + 10
	dc.SetFontFace(b.taskFace)
	title := fitText(dc, t.Title, w-contentX-taskMargin, b.ellipsis)

	textColor := b.text
	if t.Completed {
		textColor = b.completed
	}
	dc.SetColor(textColor)
	drawText(dc, title, contentX, boxY)

	if t.Completed {
		tw, _ := dc.MeasureString(title)
		hline(dc, contentX, contentX+tw, boxY+8, 1)
	}

	detail := ""
	if !t.Completed && t.DueText != "" {
		dc.SetFontFace(b.dueFace)
		dc.SetColor(b.muted)
		detail = fitText(dc, t.DueText, w-contentX-taskMargin, b.ellipsis)
		drawText(dc, detail, contentX, boxY+taskDueOffset)
	}

	if separator {
		dc.SetColor(b.border)
		hline(dc, taskMargin, w-taskMargin, y+rh-2, 1)
	}

	return Row{Text: title, Detail: detail, Color: marker}
}
