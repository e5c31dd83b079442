package render

import (
	"fmt"
	"image/color"
	"strings"
)

// ParseHex parses "#rgb", "#rrggbb" or "#rrggbbaa" (the leading # is optional).
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b, a uint8 = 0, 0, 0, 0xff

	var err error
	switch len(h) {
	case 3:
		_, err = fmt.Sscanf(h, "%1x%1x%1x", &r, &g, &b)
		r, g, b = r*17, g*17, b*17
	case 6:
		_, err = fmt.Sscanf(h, "%02x%02x%02x", &r, &g, &b)
	case 8:
		_, err = fmt.Sscanf(h, "%02x%02x%02x%02x", &r, &g, &b, &a)
	default:
		err = fmt.Errorf("unexpected length %d", len(h))
	}
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// palette collects parse errors so a board can report every bad colour at once.
type palette struct {
	errs []error
}

func (p *palette) color(name, hex string) color.RGBA {
	c, err := ParseHex(hex)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", name, err))
	}
	return c
}

func (p *palette) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid palette: %v", p.errs)
}
