package render

import (
	"strings"
	"unicode"

	"github.com/fogleman/gg"
)

// Ellipsize returns s unchanged when it fits maxWidth, otherwise the longest
// prefix that fits once marker is appended. If not even the marker fits the
// result is empty. The prefix length is found by bisection, so the number
// of measurements grows with the logarithm of the text length.
func Ellipsize(measure func(string) float64, s string, maxWidth float64, marker string) string {
	if measure(s) <= maxWidth {
		return s
	}
	if measure(marker) > maxWidth {
		return ""
	}

	runes := []rune(s)
	candidate := func(n int) string {
		return strings.TrimRightFunc(string(runes[:n]), unicode.IsSpace) + marker
	}

	// Invariant: candidate(lo) fits, candidate(hi) does not.
	lo, hi := 0, len(runes)
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if measure(candidate(mid)) <= maxWidth {
			lo = mid
		} else {
			hi = mid
		}
	}

	if lo == 0 {
		return marker
	}
	return candidate(lo)
}

// measurer adapts the context's current face to Ellipsize.
func measurer(dc *gg.Context) func(string) float64 {
	return func(s string) float64 {
		w, _ := dc.MeasureString(s)
		return w
	}
}

// fitText cuts s to maxWidth with the current face.
func fitText(dc *gg.Context, s string, maxWidth float64, marker string) string {
	return Ellipsize(measurer(dc), s, maxWidth, marker)
}

// drawText draws s with its top-left corner near (x, y).
func drawText(dc *gg.Context, s string, x, y float64) {
	dc.DrawStringAnchored(s, x, y, 0, 1)
}

// drawTextRight draws s with its top-right corner near (x, y).
func drawTextRight(dc *gg.Context, s string, x, y float64) {
	dc.DrawStringAnchored(s, x, y, 1, 1)
}

// hline draws a horizontal line of the given width in the current colour.
func hline(dc *gg.Context, x1, x2, y, width float64) {
	dc.SetLineWidth(width)
	dc.DrawLine(x1, y, x2, y)
	dc.Stroke()
}
