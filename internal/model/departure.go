package model

import "time"

// Departure is a single upcoming departure from the watched stop.
type Departure struct {
	RouteLabel   string      `json:"route_label"`   // line name shown in the LINE column, e.g. "175"
	Destination  string      `json:"destination"`   // headsign of the service
	MinutesUntil int         `json:"minutes_until"` // never negative
	Live         bool        `json:"live"`          // real-time prediction vs. timetable
	RouteColor   string      `json:"route_color"`   // hex colour of the route bar
	Departs      time.Time   `json:"departs"`       // absolute time, zero for live departures
	Following    []time.Time `json:"following"`     // up to two later scheduled departures
}
