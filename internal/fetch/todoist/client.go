// Package todoist fetches today's tasks from Todoist: active tasks through
// the REST API and, optionally, the ones completed today through the Sync API.
package todoist

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/fetch"
	"github.com/aliskhannn/status-board/internal/model"
)

const (
	source = "todoist"

	untitled      = "Untitled Task"
	dueFallback   = "Today"
	completedText = "Completed"
)

// ErrTokenMissing indicates the API token is not configured.
var ErrTokenMissing = errors.New("todoist: API token is required (TODOIST_API_TOKEN)")

type activeTask struct {
	Content  string   `json:"content"`
	Priority int      `json:"priority"` // 4 = urgent ... 1 = normal
	Due      *due     `json:"due"`
	Labels   []string `json:"labels"`
}

type due struct {
	String string `json:"string"`
	Date   string `json:"date"`
}

type completedResponse struct {
	Items []completedItem `json:"items"`
}

type completedItem struct {
	Content string `json:"content"`
}

// Client fetches today's tasks.
type Client struct {
	http             *http.Client
	apiURL           string
	syncURL          string
	filter           string
	includeCompleted bool
	maxItems         int
	now              func() time.Time
	loc              *time.Location
}

// Option mutates the client during construction.
type Option func(*options)

type options struct {
	base *http.Client
	now  func() time.Time
	loc  *time.Location
}

// WithHTTPClient sets the client the bearer transport is layered on.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.base = hc }
}

// WithClock overrides the time source used for the "since" parameter.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the zone that decides which day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// New builds a client. The token is sent as a bearer credential on every request.
func New(ctx context.Context, cfg config.Tasks, timeout time.Duration, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrTokenMissing
	}

	o := options{base: &http.Client{}, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if o.loc == nil {
		o.loc = time.Local
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	hc.Timeout = timeout

	return &Client{
		http:             hc,
		apiURL:           cfg.APIURL,
		syncURL:          cfg.SyncURL,
		filter:           cfg.Filter,
		includeCompleted: cfg.IncludeCompleted,
		maxItems:         cfg.MaxItems,
		now:              o.now,
		loc:              o.loc,
	}, nil
}

// Tasks returns today's tasks, active first by priority, at most MaxItems long.
func (c *Client) Tasks(ctx context.Context) ([]model.Task, error) {
	var query url.Values
	if c.filter != "" {
		query = url.Values{"filter": {c.filter}}
	}

	var active []activeTask
	if err := fetch.GetJSON(ctx, c.http, source, c.apiURL, query, nil, &active); err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(active))
	for _, t := range active {
		tasks = append(tasks, fromActive(t))
	}

	if c.includeCompleted {
		since := c.now().In(c.loc).Format("2006-01-02") + "T00:00"

		var done completedResponse
		if err := fetch.GetJSON(ctx, c.http, source, c.syncURL, url.Values{"since": {since}}, nil, &done); err != nil {
			return nil, err
		}
		for _, item := range done.Items {
			tasks = append(tasks, model.Task{
				Title:     titleOrDefault(item.Content),
				Priority:  model.P4,
				Completed: true,
				DueText:   completedText,
			})
		}
	}

	fetch.OrderTasks(tasks)

	return fetch.Limit(tasks, c.maxItems), nil
}

func fromActive(t activeTask) model.Task {
	dueText := dueFallback
	if t.Due != nil && strings.TrimSpace(t.Due.String) != "" {
		dueText = strings.TrimSpace(t.Due.String)
	}

	return model.Task{
		Title:    titleOrDefault(t.Content),
		Priority: priorityFromAPI(t.Priority),
		DueText:  dueText,
		Labels:   t.Labels,
	}
}

// priorityFromAPI maps the API scale (4 urgent .. 1 normal) onto P1..P4.
func priorityFromAPI(p int) model.Priority {
	if p < 1 || p > 4 {
		return model.P4
	}
	return model.Priority(5 - p)
}

func titleOrDefault(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return untitled
	}
	return s
}
