// Package fetch holds what the board data sources share: the FetchError
// type, a bounded JSON GET and the ordering rules for fetched records.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/aliskhannn/status-board/internal/model"
)

const maxResponseBodySize = 4 << 20 // 4 MiB guard

// ErrMalformed marks a response that arrived but could not be understood.
var ErrMalformed = errors.New("malformed payload")

// Error is returned by every data source on network, status or payload failures.
type Error struct {
	// Source names the data source, e.g. "citymapper".
	Source string
	// StatusCode is the HTTP status observed, 0 when no response was received.
	StatusCode int
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	b := strings.Builder{}
	b.WriteString("fetch ")
	b.WriteString(e.Source)
	if e.StatusCode != 0 {
		b.WriteString(" (status=")
		b.WriteString(strconv.Itoa(e.StatusCode))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Malformed wraps a decoding problem as a FetchError.
func Malformed(source string, err error) error {
	return &Error{Source: source, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
}

// GetJSON performs a GET against rawURL with query and header applied and
// decodes a 2xx JSON response into out.
func GetJSON(ctx context.Context, hc *http.Client, source, rawURL string, query url.Values, header http.Header, out interface{}) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &Error{Source: source, Err: fmt.Errorf("invalid url: %w", err)}
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &Error{Source: source, Err: fmt.Errorf("build request: %w", err)}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return &Error{Source: source, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return &Error{Source: source, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return &Error{Source: source, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s: %s", resp.Status, msg)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Source: source, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	return nil
}

// OrderTasks sorts active tasks before completed ones, active by priority
// (P1 first) then title, completed by title. Titles compare case-insensitively.
func OrderTasks(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if !a.Completed && a.Priority.Normalize() != b.Priority.Normalize() {
			return a.Priority.Normalize() < b.Priority.Normalize()
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
}

// Limit keeps the first n records. A non-positive n keeps everything.
func Limit[T any](records []T, n int) []T {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}
