// Package exitcode maps pipeline failures to process exit codes.
package exitcode

import (
	"errors"

	"github.com/aliskhannn/status-board/internal/fetch"
	"github.com/aliskhannn/status-board/internal/render"
	"github.com/aliskhannn/status-board/internal/upload"
)

const (
	// Success indicates the image was produced or delivered.
	Success = 0

	// ConfigError indicates bad configuration, arguments or credentials.
	ConfigError = 1

	// FetchError indicates the data source could not be read.
	FetchError = 2

	// RenderError indicates the image could not be composed or written.
	RenderError = 3

	// UploadError indicates the device did not accept the image.
	UploadError = 4
)

// FromError returns the exit code for err.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var (
		fetchErr  *fetch.Error
		renderErr *render.Error
		uploadErr *upload.Error
	)
	switch {
	case errors.As(err, &fetchErr):
		return FetchError
	case errors.As(err, &renderErr):
		return RenderError
	case errors.As(err, &uploadErr):
		return UploadError
	default:
		return ConfigError
	}
}
