package render

import (
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Fonts holds the parsed regular and bold typefaces.
type Fonts struct {
	regular *truetype.Font
	bold    *truetype.Font
}

// LoadFonts parses the TTF files at the given paths. An empty path falls
// back to the embedded Go fonts, so rendering never depends on the host.
func LoadFonts(regularPath, boldPath string) (*Fonts, error) {
	regular, err := parseFont(regularPath, goregular.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := parseFont(boldPath, gobold.TTF)
	if err != nil {
		return nil, err
	}
	return &Fonts{regular: regular, bold: bold}, nil
}

func parseFont(path string, fallback []byte) (*truetype.Font, error) {
	data := fallback
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font: %w", err)
		}
		data = b
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %q: %w", path, err)
	}
	return f, nil
}

// Regular returns a face of the regular typeface at size points.
func (f *Fonts) Regular(size float64) font.Face {
	return truetype.NewFace(f.regular, &truetype.Options{Size: size})
}

// Bold returns a face of the bold typeface at size points.
func (f *Fonts) Bold(size float64) font.Face {
	return truetype.NewFace(f.bold, &truetype.Options{Size: size})
}
