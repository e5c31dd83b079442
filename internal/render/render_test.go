package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/model"
)

func testDisplay() config.Display {
	return config.Display{Width: 240, Height: 240, Quality: 95, Ellipsis: "...", Timezone: "UTC"}
}

func testFonts(t *testing.T) *Fonts {
	t.Helper()
	f, err := LoadFonts("", "")
	if err != nil {
		t.Fatalf("LoadFonts: %v", err)
	}
	return f
}

func testTasksConfig(maxItems int) config.Tasks {
	return config.Tasks{
		MaxItems: maxItems,
		Colors: config.TaskColors{
			Background: "#1a1a1a",
			Text:       "#ffffff",
			Accent:     "#de4c4a",
			Completed:  "#6b6b6b",
			Border:     "#2a2a2a",
			Muted:      "#888888",
			Priority:   map[string]string{"p1": "#d1453b", "p2": "#eb8909", "p3": "#4073ff", "p4": "#808080"},
		},
	}
}

func testDeparturesConfig(maxItems int) config.Departures {
	return config.Departures{
		MaxItems:        maxItems,
		ImminentMinutes: 1,
		Colors: config.DepartureColors{
			Background: "#000000",
			Header:     "#1a1a1a",
			Text:       "#FFFFFF",
			Muted:      "#888888",
			Accent:     "#FFA500",
			Imminent:   "#FF3B30",
			Grid:       "#2a2a2a",
			AltRow:     "#0a0a0a",
		},
	}
}

func assertCanvas(t *testing.T, img image.Image) {
	t.Helper()
	if b := img.Bounds(); b.Dx() != 240 || b.Dy() != 240 {
		t.Fatalf("canvas %v, want 240x240", b)
	}
}

// near reports whether some pixel inside r is within tol of want on every channel.
func near(img image.Image, r image.Rectangle, want color.RGBA, tol int) bool {
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if abs(int(cr>>8)-int(want.R)) <= tol && abs(int(cg>>8)-int(want.G)) <= tol && abs(int(cb>>8)-int(want.B)) <= tol {
				return true
			}
		}
	}
	return false
}

func TestTasksBoard_SingleRowScenario(t *testing.T) {
	board, err := NewTasksBoard(testDisplay(), testTasksConfig(1), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}

	frame := board.Render([]model.Task{
		{Title: "Buy milk", Priority: model.P1},
		{Title: "Call bank", Priority: model.P3},
	})
	assertCanvas(t, frame.Image)

	if len(frame.Rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(frame.Rows))
	}
	p1, _ := ParseHex("#d1453b")
	if frame.Rows[0].Text != "Buy milk" || frame.Rows[0].Color != color.Color(p1) {
		t.Fatalf("row=%+v", frame.Rows[0])
	}

	// The priority ring of the first row sits right of the checkbox centre.
	ring := image.Rect(25, taskFirstRowY+7, 30, taskFirstRowY+14)
	if !near(frame.Image, ring, p1, 40) {
		t.Errorf("no P1-coloured pixel in %v", ring)
	}
}

func TestTasksBoard_TruncatesToMaxItems(t *testing.T) {
	board, err := NewTasksBoard(testDisplay(), testTasksConfig(3), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}

	tasks := make([]model.Task, 10)
	for i := range tasks {
		tasks[i] = model.Task{Title: string(rune('A' + i)), Priority: model.P2}
	}
	frame := board.Render(tasks)
	if len(frame.Rows) != 3 {
		t.Fatalf("rows=%d, want 3", len(frame.Rows))
	}
	for i, r := range frame.Rows {
		if r.Text != tasks[i].Title {
			t.Errorf("row %d = %q, want %q", i, r.Text, tasks[i].Title)
		}
	}
}

func TestTasksBoard_EmptyState(t *testing.T) {
	board, err := NewTasksBoard(testDisplay(), testTasksConfig(6), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}
	frame := board.Render(nil)
	assertCanvas(t, frame.Image)
	if !frame.Empty() {
		t.Fatal("want empty frame")
	}
}

func TestTasksBoard_CompletedUsesCompletedColour(t *testing.T) {
	board, err := NewTasksBoard(testDisplay(), testTasksConfig(6), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}
	frame := board.Render([]model.Task{{Title: "Stretch", Priority: model.P1, Completed: true, DueText: "Completed"}})
	want, _ := ParseHex("#6b6b6b")
	if frame.Rows[0].Color != color.Color(want) {
		t.Errorf("colour=%v, want %v", frame.Rows[0].Color, want)
	}
	if frame.Rows[0].Detail != "" {
		t.Errorf("completed task shows due text %q", frame.Rows[0].Detail)
	}
}

func TestTasksBoard_LongTitleEllipsised(t *testing.T) {
	board, err := NewTasksBoard(testDisplay(), testTasksConfig(6), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("Reconcile quarterly expenses ", 6)
	frame := board.Render([]model.Task{{Title: long, Priority: model.P2}})

	got := frame.Rows[0].Text
	if !strings.HasSuffix(got, "...") || len(got) >= len(long) {
		t.Fatalf("title not truncated: %q", got)
	}
	if !strings.HasPrefix(long, strings.TrimSuffix(got, "...")) {
		t.Fatalf("truncation is not a prefix: %q", got)
	}
}

func TestNewTasksBoard_Rejects(t *testing.T) {
	if _, err := NewTasksBoard(testDisplay(), testTasksConfig(20), testFonts(t)); err == nil {
		t.Error("20 rows should not fit")
	}
	cfg := testTasksConfig(6)
	cfg.Colors.Text = "white"
	if _, err := NewTasksBoard(testDisplay(), cfg, testFonts(t)); err == nil {
		t.Error("invalid colour accepted")
	}
}

func TestDeparturesBoard_Rows(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	board, err := NewDeparturesBoard(testDisplay(), testDeparturesConfig(4), testFonts(t), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	deps := []model.Departure{
		{RouteLabel: "9", Destination: "Gocławek", MinutesUntil: 0, Live: true, RouteColor: "#00ff00"},
		{RouteLabel: "175", Destination: "Lotnisko Chopina", MinutesUntil: 7, Live: true, RouteColor: "#ff0000"},
		{RouteLabel: "22", Destination: "Dworzec Wschodni", MinutesUntil: 3, Departs: now.Add(3 * time.Minute),
			Following: []time.Time{now.Add(13 * time.Minute), now.Add(23 * time.Minute)}},
		{RouteLabel: "N32", Destination: "Somewhere", MinutesUntil: 20, Live: true},
		{RouteLabel: "X", Destination: "Dropped", MinutesUntil: 30, Live: true},
	}

	frame := board.Render(deps)
	assertCanvas(t, frame.Image)
	if len(frame.Rows) != 4 {
		t.Fatalf("rows=%d, want 4", len(frame.Rows))
	}

	imminent, _ := ParseHex("#FF3B30")
	accent, _ := ParseHex("#FFA500")
	text, _ := ParseHex("#FFFFFF")
	want := []struct {
		detail string
		colour color.RGBA
	}{
		{"0 min", imminent},
		{"7 min", accent},
		{"12:03", text},
		{"20 min", accent},
	}
	for i, w := range want {
		if frame.Rows[i].Detail != w.detail || frame.Rows[i].Color != color.Color(w.colour) {
			t.Errorf("row %d = %+v, want %s in %v", i, frame.Rows[i], w.detail, w.colour)
		}
	}
}

func TestDeparturesBoard_LongDestinationStaysInColumn(t *testing.T) {
	board, err := NewDeparturesBoard(testDisplay(), testDeparturesConfig(4), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}
	frame := board.Render([]model.Departure{{
		RouteLabel:  "1234567",
		Destination: "Centrum Handlowe Galeria Mokotów przez Pole Mokotowskie",
		Live:        true,
		RouteColor:  "#123456",
	}})

	row := frame.Rows[0]
	if !strings.HasSuffix(row.Text, "...") {
		t.Errorf("destination not truncated: %q", row.Text)
	}
	if !strings.HasSuffix(row.Label, "...") && row.Label != "1234567" {
		t.Errorf("label mangled: %q", row.Label)
	}
}

func TestDeparturesBoard_EmptyState(t *testing.T) {
	board, err := NewDeparturesBoard(testDisplay(), testDeparturesConfig(4), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}
	frame := board.Render([]model.Departure{})
	assertCanvas(t, frame.Image)
	if !frame.Empty() {
		t.Fatal("want empty frame")
	}
}

func TestNewDeparturesBoard_TooManyRows(t *testing.T) {
	if _, err := NewDeparturesBoard(testDisplay(), testDeparturesConfig(5), testFonts(t)); err == nil {
		t.Fatal("5 rows should not fit at the minimum row height")
	}
}

func TestEllipsize(t *testing.T) {
	perRune := func(s string) float64 { return float64(len([]rune(s))) }

	tests := []struct {
		in   string
		max  float64
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a long sentence", 8, "a lon..."},
		{"trailing space", 11, "trailing..."},
		{"abc", 2, ""},
		{"abcdef", 3, "..."},
	}
	for _, tt := range tests {
		if got := Ellipsize(perRune, tt.in, tt.max, "..."); got != tt.want {
			t.Errorf("Ellipsize(%q, %v)=%q, want %q", tt.in, tt.max, got, tt.want)
		}
		if got := Ellipsize(perRune, tt.in, tt.max, "..."); perRune(got) > tt.max {
			t.Errorf("Ellipsize(%q) overflows: %q", tt.in, got)
		}
	}
}

func TestEllipsize_MeasuresLogarithmically(t *testing.T) {
	calls := 0
	perRune := func(s string) float64 {
		calls++
		return float64(len([]rune(s)))
	}

	long := strings.Repeat("x", 1<<20)
	got := Ellipsize(perRune, long, 40, "...")
	if len(got) != 40 || !strings.HasSuffix(got, "...") {
		t.Fatalf("Ellipsize = %d runes ending %q", len(got), got[len(got)-3:])
	}
	if calls > 40 {
		t.Fatalf("measured %d times for a 1 MiB string", calls)
	}
}

func TestTasksBoard_HugeTitleRendersQuickly(t *testing.T) {
	board, err := NewTasksBoard(testDisplay(), testTasksConfig(6), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}

	long := strings.Repeat("Reconcile quarterly expenses ", 700)
	start := time.Now()
	frame := board.Render([]model.Task{{Title: long, Priority: model.P1}})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("render took %s", elapsed)
	}
	if got := frame.Rows[0].Text; !strings.HasSuffix(got, "...") || len(got) > 200 {
		t.Fatalf("title not truncated: %q", got)
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#d1453b", color.RGBA{0xd1, 0x45, 0x3b, 0xff}, false},
		{"FFF", color.RGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"#00000080", color.RGBA{0, 0, 0, 0x80}, false},
		{"#12345", color.RGBA{}, true},
		{"orange", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseHex(%q)=%v,%v", tt.in, got, err)
		}
	}
}

func TestWriteJPEG_OverwritesInPlace(t *testing.T) {
	board, err := NewTasksBoard(testDisplay(), testTasksConfig(6), testFonts(t))
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "todoist_today.jpg")

	for i := 0; i < 2; i++ {
		frame := board.Render([]model.Task{{Title: "Run", Priority: model.P2}})
		if _, err := WriteJPEG(path, frame.Image, 95); err != nil {
			t.Fatalf("WriteJPEG #%d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "todoist_today.jpg" {
		t.Fatalf("dir has %v", entries)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertCanvas(t, img)
}

func TestWriteJPEG_MissingDirectory(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	_, err := WriteJPEG(filepath.Join(t.TempDir(), "nope", "x.jpg"), img, 90)
	if _, ok := err.(*Error); !ok {
		t.Fatalf("want *render.Error, got %T (%v)", err, err)
	}
}
