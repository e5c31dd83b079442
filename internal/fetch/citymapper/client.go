// Package citymapper fetches upcoming departures for one stop from the
// Citymapper departures API.
package citymapper

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aliskhannn/status-board/internal/config"
	"github.com/aliskhannn/status-board/internal/fetch"
	"github.com/aliskhannn/status-board/internal/model"
)

const (
	source = "citymapper"

	unknownRoute      = "???"
	defaultRouteColor = "#888888"
	maxFollowing      = 2
)

// response mirrors the parts of the departures payload the board uses.
type response struct {
	Stops []stop `json:"stops"`
}

type stop struct {
	Routes   []route   `json:"routes"`
	Services []service `json:"services"`
}

type route struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
}

type service struct {
	RouteID               string    `json:"route_id"`
	Headsign              string    `json:"headsign"`
	LiveDeparturesSeconds []float64 `json:"live_departures_seconds"`
	NextDepartures        []string  `json:"next_departures"`
}

// Client fetches departures for the configured stop.
type Client struct {
	http     *http.Client
	apiURL   string
	stopID   string
	regionID string
	maxItems int
	now      func() time.Time
	loc      *time.Location
}

// Option mutates the client during construction.
type Option func(*Client)

// WithHTTPClient installs a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock overrides the time source used for scheduled departures.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLocation sets the zone used for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// New builds a client from the departures configuration.
func New(cfg config.Departures, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: timeout},
		apiURL:   cfg.APIURL,
		stopID:   cfg.StopID,
		regionID: cfg.RegionID,
		maxItems: cfg.MaxItems,
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Departures returns the next departures, soonest first, at most MaxItems long.
func (c *Client) Departures(ctx context.Context) ([]model.Departure, error) {
	query := url.Values{
		"headways":  {"1"},
		"ids":       {c.stopID},
		"region_id": {c.regionID},
	}

	var resp response
	if err := fetch.GetJSON(ctx, c.http, source, c.apiURL, query, nil, &resp); err != nil {
		return nil, err
	}

	deps, err := parse(resp, c.now(), c.loc)
	if err != nil {
		return nil, err
	}

	return fetch.Limit(deps, c.maxItems), nil
}

// parse flattens the first stop's services into departures ordered soonest first.
// Services with neither live nor scheduled times are skipped.
func parse(resp response, now time.Time, loc *time.Location) ([]model.Departure, error) {
	if len(resp.Stops) == 0 {
		return []model.Departure{}, nil
	}

	st := resp.Stops[0]
	routes := make(map[string]route, len(st.Routes))
	for _, r := range st.Routes {
		routes[r.ID] = r
	}

	type entry struct {
		dep     model.Departure
		seconds float64
	}
	entries := make([]entry, 0, len(st.Services))

	for _, svc := range st.Services {
		r, ok := routes[svc.RouteID]
		dep := model.Departure{
			RouteLabel:  unknownRoute,
			Destination: strings.TrimSpace(svc.Headsign),
			RouteColor:  defaultRouteColor,
		}
		if ok {
			if r.Name != "" {
				dep.RouteLabel = r.Name
			}
			if r.Color != "" {
				dep.RouteColor = r.Color
			}
		}

		var seconds float64
		switch {
		case len(svc.LiveDeparturesSeconds) > 0:
			s := math.Floor(svc.LiveDeparturesSeconds[0])
			if s < 0 {
				s = 0
			}
			dep.Live = true
			dep.MinutesUntil = int(s) / 60
			seconds = s

		case len(svc.NextDepartures) > 0:
			departs, err := parseTime(svc.NextDepartures[0], loc)
			if err != nil {
				return nil, fetch.Malformed(source, fmt.Errorf("route %s: %w", svc.RouteID, err))
			}
			dep.Departs = departs
			for _, raw := range svc.NextDepartures[1:] {
				if len(dep.Following) == maxFollowing {
					break
				}
				t, err := parseTime(raw, loc)
				if err != nil {
					return nil, fetch.Malformed(source, fmt.Errorf("route %s: %w", svc.RouteID, err))
				}
				dep.Following = append(dep.Following, t)
			}
			seconds = departs.Sub(now).Seconds()
			if seconds > 0 {
				dep.MinutesUntil = int(seconds) / 60
			}

		default:
			continue
		}

		entries = append(entries, entry{dep: dep, seconds: seconds})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].seconds < entries[j].seconds
	})

	deps := make([]model.Departure, 0, len(entries))
	for _, e := range entries {
		deps = append(deps, e.dep)
	}

	return deps, nil
}

// parseTime accepts RFC 3339 and offset-less ISO timestamps (read in loc).
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
