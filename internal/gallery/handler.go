// Package gallery emulates the display device's HTTP gallery so uploads
// can be exercised without hardware.
package gallery

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

const (
	maxUploadMemory = 10 << 20
	uploadReply     = "Upload OK"
)

// store defines the file operations the handler needs.
type store interface {
	Save(dir, name string, src io.Reader) (File, error)
	List(dir string) ([]File, error)
	Open(dir, name string) (io.ReadCloser, error)
	Delete(file string) error
}

// Handler serves the gallery endpoints of the device.
type Handler struct {
	store     store
	imageDir  string
	malformed bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMalformedContentLength makes upload replies carry a broken
// Content-Length header.
func WithMalformedContentLength(enabled bool) HandlerOption {
	return func(h *Handler) { h.malformed = enabled }
}

// NewHandler creates a Handler backed by s.
func NewHandler(s store, opts ...HandlerOption) *Handler {
	h := &Handler{store: s, imageDir: "/image/"}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Upload stores the multipart file under its own name in ?dir=.
func (h *Handler) Upload(c *ginext.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		zlog.Logger.Err(err).Msg("failed to parse multipart form")
		c.String(http.StatusBadRequest, "Upload failed: bad form")
		return
	}

	header := firstFile(c.Request.MultipartForm)
	if header == nil {
		zlog.Logger.Warn().Msg("upload without a file part")
		c.String(http.StatusBadRequest, "Upload failed: no file")
		return
	}

	file, err := header.Open()
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to open uploaded file")
		c.String(http.StatusBadRequest, "Upload failed: unreadable file")
		return
	}
	defer file.Close()

	dir := c.DefaultQuery("dir", "/")
	saved, err := h.store.Save(dir, header.Filename, file)
	if err != nil {
		zlog.Logger.Err(err).Str("file", header.Filename).Msg("failed to save upload")
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidName) {
			status = http.StatusBadRequest
		}
		c.String(status, "Upload failed: "+err.Error())
		return
	}

	zlog.Logger.Info().
		Str("path", saved.Path).
		Int64("size", saved.Size).
		Msg("stored upload")

	if h.malformed {
		malformed(c, http.StatusOK, uploadReply)
		return
	}
	c.String(http.StatusOK, uploadReply)
}

// List returns the files of ?dir= as JSON.
func (h *Handler) List(c *ginext.Context) {
	files, err := h.store.List(c.DefaultQuery("dir", h.imageDir))
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to list files")
		fail(c, http.StatusInternalServerError, fmt.Errorf("failed to list files"))
		return
	}
	ok(c, files)
}

// Image serves a file from the image directory.
func (h *Handler) Image(c *ginext.Context) {
	r, err := h.store.Open(h.imageDir, c.Param("name"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			fail(c, http.StatusNotFound, err)
		case errors.Is(err, ErrInvalidName):
			fail(c, http.StatusBadRequest, err)
		default:
			zlog.Logger.Err(err).Msg("failed to open image")
			fail(c, http.StatusInternalServerError, fmt.Errorf("failed to open image"))
		}
		return
	}
	defer r.Close()

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	jpeg(c, r)
}

// Delete removes ?file=, a gallery path such as /image/a.jpg.
func (h *Handler) Delete(c *ginext.Context) {
	file := c.Query("file")
	if file == "" {
		fail(c, http.StatusBadRequest, fmt.Errorf("file is required"))
		return
	}

	if err := h.store.Delete(file); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			fail(c, http.StatusNotFound, err)
		case errors.Is(err, ErrInvalidName):
			fail(c, http.StatusBadRequest, err)
		default:
			zlog.Logger.Err(err).Msg("failed to delete file")
			fail(c, http.StatusInternalServerError, fmt.Errorf("failed to delete file"))
		}
		return
	}

	ok(c, ginext.H{"deleted": file})
}

func firstFile(form *multipart.Form) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	if files := form.File["file"]; len(files) > 0 {
		return files[0]
	}
	for _, files := range form.File {
		if len(files) > 0 {
			return files[0]
		}
	}
	return nil
}
