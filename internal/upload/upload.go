// Package upload pushes rendered boards to the display device's gallery.
//
// The device answers uploads with a hand-written HTTP response that
// sometimes carries a broken Content-Length. The client therefore speaks
// HTTP/1.1 over its own connection, reads the whole reply and falls back
// to a lenient parse when net/http rejects the framing.
package upload

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/status-board/internal/config"
)

const (
	defaultUploadPath   = "/doUpload"
	defaultField        = "file"
	defaultTimeout      = 10 * time.Second
	maxResponseBodySize = 1 << 20
	userAgent           = "status-board-uploader/1.0"
)

// ErrBaseURLMissing indicates the device URL is not configured.
var ErrBaseURLMissing = errors.New("upload: device base URL is required (DEVICE_URL)")

// Error is returned when the device cannot be reached or rejects the file.
type Error struct {
	URL        string
	StatusCode int    // 0 when no usable status was received
	Body       string // trimmed response body, if any
	Err        error
}

func (e *Error) Error() string {
	b := strings.Builder{}
	b.WriteString("upload to ")
	b.WriteString(e.URL)
	if e.StatusCode != 0 {
		b.WriteString(" (status=")
		b.WriteString(strconv.Itoa(e.StatusCode))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Result describes an accepted upload.
type Result struct {
	URL        string
	Filename   string
	Size       int
	StatusCode int
	Body       string
	// Lenient is set when the response framing was broken and had to be
	// parsed by hand.
	Lenient bool
}

// Client uploads files to one device.
type Client struct {
	endpoint  *url.URL
	field     string
	timeout   time.Duration
	dialer    *net.Dialer
	tlsConfig *tls.Config
	userAgent string
}

// Option mutates the client during construction.
type Option func(*Client)

// WithTLSConfig sets the TLS configuration for https device URLs.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) { c.tlsConfig = cfg }
}

// WithUserAgent sets a custom User-Agent string.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New builds a client for the configured device.
func New(cfg config.Device, timeout time.Duration, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrBaseURLMissing
	}

	path := cfg.UploadPath
	if path == "" {
		path = defaultUploadPath
	}
	// DEVICE_URL has historically been the full upload URL.
	if !strings.HasSuffix(base, path) {
		base += path
	}

	dir := cfg.Dir
	if dir == "" {
		dir = "/"
	}

	endpoint, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("upload: invalid device URL: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("upload: unsupported scheme %q", endpoint.Scheme)
	}
	// The firmware expects the directory unescaped, e.g. ?dir=/image/.
	endpoint.RawQuery = "dir=" + (&url.URL{Path: dir}).EscapedPath()

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	field := cfg.Field
	if field == "" {
		field = defaultField
	}

	c := &Client{
		endpoint:  endpoint,
		field:     field,
		timeout:   timeout,
		dialer:    &net.Dialer{},
		userAgent: userAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// URL returns the upload URL including the directory query.
func (c *Client) URL() string { return c.endpoint.String() }

// Upload sends the file at path under its base name.
func (c *Client) Upload(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{URL: c.URL(), Err: fmt.Errorf("open image: %w", err)}
	}
	defer f.Close()

	return c.UploadReader(ctx, filepath.Base(path), f)
}

// UploadReader sends the content of r as filename.
func (c *Client) UploadReader(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	body, contentType, size, err := c.multipartBody(filename, r)
	if err != nil {
		return nil, &Error{URL: c.URL(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, &Error{URL: c.URL(), Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.userAgent)
	req.Close = true

	res, err := c.exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Filename = filename
	res.Size = size

	return res, nil
}

func (c *Client) multipartBody(filename string, r io.Reader) ([]byte, string, int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(c.field), escapeQuotes(filename)))
	h.Set("Content-Type", "image/jpeg")

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", 0, fmt.Errorf("create form part: %w", err)
	}
	n, err := io.Copy(part, r)
	if err != nil {
		return nil, "", 0, fmt.Errorf("read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("close form: %w", err)
	}

	return buf.Bytes(), mw.FormDataContentType(), int(n), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// exchange writes req on a fresh connection and reads the reply, bounded
// by the client timeout.
func (c *Client) exchange(ctx context.Context, req *http.Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, &Error{URL: c.URL(), Err: fmt.Errorf("connect: %w", err)}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := req.Write(conn); err != nil {
		return nil, &Error{URL: c.URL(), Err: fmt.Errorf("send request: %w", err)}
	}

	var captured bytes.Buffer
	br := bufio.NewReader(io.TeeReader(io.LimitReader(conn, maxResponseBodySize), &captured))

	resp, err := http.ReadResponse(br, req)
	if err == nil {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		lenient := false
		if readErr != nil {
			// A Content-Length larger than the body the device sent.
			if !errors.Is(readErr, io.ErrUnexpectedEOF) {
				return nil, &Error{URL: c.URL(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", readErr)}
			}
			lenient = true
		}
		return c.evaluate(resp.StatusCode, body, lenient)
	}

	if !isContentLengthAnomaly(err) {
		return nil, &Error{URL: c.URL(), Err: fmt.Errorf("read response: %w", err)}
	}

	// The device closes the connection after the body; read up to that.
	_, _ = io.Copy(io.Discard, br)

	status, body := parseLenient(captured.Bytes())
	return c.evaluate(status, body, true)
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	host := c.endpoint.Host
	if c.endpoint.Port() == "" {
		port := "80"
		if c.endpoint.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(c.endpoint.Hostname(), port)
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, err
	}
	if c.endpoint.Scheme != "https" {
		return conn, nil
	}

	cfg := &tls.Config{}
	if c.tlsConfig != nil {
		cfg = c.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = c.endpoint.Hostname()
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// evaluate decides whether the device accepted the file.
func (c *Client) evaluate(status int, body []byte, lenient bool) (*Result, error) {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}

	if lenient {
		zlog.Logger.Warn().
			Int("status", status).
			Str("url", c.URL()).
			Msg("device sent a malformed response, parsed leniently")
	}

	if !accepted(status, body) {
		return nil, &Error{URL: c.URL(), StatusCode: status, Body: text, Err: errors.New("device rejected the upload")}
	}

	return &Result{URL: c.URL(), StatusCode: status, Body: text, Lenient: lenient}, nil
}

var (
	rejectionPattern  = regexp.MustCompile(`\b(fail|failed|failure|error|denied|rejected)\b`)
	completionPattern = regexp.MustCompile(`\b(ok|success|successful|uploaded|upload|done)\b`)
)

// accepted applies the acceptance rule: a body reporting a failure is a
// rejection whatever the status; otherwise a 2xx/3xx status, or no usable
// status but a body reporting completion, is a success.
func accepted(status int, body []byte) bool {
	text := strings.ToLower(strings.TrimSpace(string(body)))

	switch {
	case status >= 400:
		return false
	case rejectionPattern.MatchString(text):
		return false
	case status >= 200:
		return true
	}

	return completionPattern.MatchString(text)
}

func isContentLengthAnomaly(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "content-length")
}

// parseLenient reads a status line, headers and the rest of the stream as
// body without trusting Content-Length. Unparseable parts yield status 0.
func parseLenient(raw []byte) (int, []byte) {
	br := bufio.NewReader(bytes.NewReader(raw))
	tp := textproto.NewReader(br)

	status := 0
	line, err := tp.ReadLine()
	if err != nil {
		return 0, nil
	}
	if parts := strings.Fields(line); len(parts) >= 2 && strings.HasPrefix(parts[0], "HTTP/") {
		if n, err := strconv.Atoi(parts[1]); err == nil {
			status = n
		}
	}

	header, _ := tp.ReadMIMEHeader()
	rest, _ := io.ReadAll(br)

	if strings.EqualFold(header.Get("Transfer-Encoding"), "chunked") {
		if decoded, err := io.ReadAll(httputil.NewChunkedReader(bytes.NewReader(rest))); err == nil {
			return status, decoded
		}
	}

	return status, rest
}
