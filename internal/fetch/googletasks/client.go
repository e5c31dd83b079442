// Package googletasks reads today's tasks from a Google Tasks list.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/fetch"
	"github.com/aliskhannn/status-board/internal/model"
)

const (
	source = "googletasks"

	// PageSize is the number of tasks per page.
	PageSize = 100

	tasksReadonlyScope = "https://www.googleapis.com/auth/tasks.readonly"

	statusCompleted = "completed"
	dateLayout      = "2006-01-02"
)

// Client reads one task list.
type Client struct {
	svc              *tasks.Service
	listID           string
	includeCompleted bool
	maxItems         int
	now              func() time.Time
	loc              *time.Location
}

// New creates a client from the OAuth client and token files written by
// the usual installed-app flow. The token refreshes automatically.
func New(ctx context.Context, cfg config.Tasks, timeout time.Duration, loc *time.Location) (*Client, error) {
	clientJSON, err := os.ReadFile(cfg.Google.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth client file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth client file: %w", err)
	}

	tokenData, err := os.ReadFile(cfg.Google.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}

	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))
	httpClient.Timeout = timeout

	return NewWithHTTPClient(ctx, httpClient, cfg, loc)
}

// NewWithHTTPClient creates a client on top of an already authorised HTTP
// client. Extra options (e.g. option.WithEndpoint) are passed to the API.
func NewWithHTTPClient(ctx context.Context, hc *http.Client, cfg config.Tasks, loc *time.Location, opts ...option.ClientOption) (*Client, error) {
	svc, err := tasks.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	listID := cfg.Google.ListID
	if listID == "" {
		listID = "@default"
	}

	return &Client{
		svc:              svc,
		listID:           listID,
		includeCompleted: cfg.IncludeCompleted,
		maxItems:         cfg.MaxItems,
		now:              time.Now,
		loc:              loc,
	}, nil
}

// SetClock overrides the time source that decides what "today" is.
func (c *Client) SetClock(now func() time.Time) { c.now = now }

// Tasks returns open tasks due today or earlier (or undated) and, when
// enabled, the ones completed today.
func (c *Client) Tasks(ctx context.Context) ([]model.Task, error) {
	today := c.now().In(c.loc).Format(dateLayout)

	var out []model.Task
	err := c.svc.Tasks.List(c.listID).
		ShowCompleted(c.includeCompleted).
		ShowHidden(c.includeCompleted).
		MaxResults(PageSize).
		Pages(ctx, func(page *tasks.Tasks) error {
			for _, t := range page.Items {
				if t.Deleted {
					continue
				}
				if task, ok := c.convert(t, today); ok {
					out = append(out, task)
				}
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	if out == nil {
		out = []model.Task{}
	}
	fetch.OrderTasks(out)

	return fetch.Limit(out, c.maxItems), nil
}

func (c *Client) convert(t *tasks.Task, today string) (model.Task, bool) {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "Untitled Task"
	}

	if t.Status == statusCompleted {
		if !c.includeCompleted || t.Completed == nil {
			return model.Task{}, false
		}
		done, err := time.Parse(time.RFC3339, *t.Completed)
		if err != nil || done.In(c.loc).Format(dateLayout) != today {
			return model.Task{}, false
		}
		return model.Task{Title: title, Priority: model.P4, Completed: true, DueText: "Completed"}, true
	}

	// Due dates are date-only values encoded as midnight UTC.
	dueText := "No date"
	if len(t.Due) >= len(dateLayout) {
		day := t.Due[:len(dateLayout)]
		switch {
		case day > today:
			return model.Task{}, false
		case day < today:
			dueText = "Overdue"
		default:
			dueText = "Today"
		}
	}

	return model.Task{Title: title, Priority: model.P4, DueText: dueText}, true
}

func wrapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &fetch.Error{Source: source, StatusCode: apiErr.Code, Err: err}
	}
	return &fetch.Error{Source: source, Err: err}
}
