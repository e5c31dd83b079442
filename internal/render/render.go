// Package render draws the status boards onto a fixed-size canvas and
// encodes them as JPEG.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Error is returned when a board cannot be encoded or written.
type Error struct {
	Op   string // "encode" or "write"
	Path string // empty for in-memory encodes
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("render: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("render: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Row describes one record as it was drawn.
type Row struct {
	Label  string      // route label; empty on the task board
	Text   string      // main text after truncation
	Detail string      // time or due text
	Color  color.Color // colour picked by the board's classification rule
}

// Frame is a rendered board together with what was drawn on it.
type Frame struct {
	Image image.Image
	Rows  []Row
}

// Empty reports whether the empty-state layout was drawn.
func (f *Frame) Empty() bool { return len(f.Rows) == 0 }

// Encode writes img as JPEG at the given quality.
func Encode(w io.Writer, img image.Image, quality int) error {
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return &Error{Op: "encode", Err: err}
	}
	return nil
}

// WriteJPEG encodes img and replaces path with it. The bytes go to a
// temporary file in the same directory first, so readers never see a
// partial image.
func WriteJPEG(path string, img image.Image, quality int) (int, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, quality); err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, &Error{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return 0, &Error{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, &Error{Op: "write", Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return 0, &Error{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, &Error{Op: "write", Path: path, Err: err}
	}

	return buf.Len(), nil
}
