package model

import "fmt"

// Priority is a task urgency level, P1 being the most urgent.
type Priority int

const (
	P1 Priority = iota + 1
	P2
	P3
	P4
)

// String returns the short label ("P1".."P4").
func (p Priority) String() string {
	if p < P1 || p > P4 {
		return fmt.Sprintf("P?(%d)", int(p))
	}
	return fmt.Sprintf("P%d", int(p))
}

// Key returns the lowercase key used in configuration maps ("p1".."p4").
func (p Priority) Key() string {
	return fmt.Sprintf("p%d", int(p.Normalize()))
}

// Normalize clamps unknown values to the lowest priority.
func (p Priority) Normalize() Priority {
	if p < P1 || p > P4 {
		return P4
	}
	return p
}

// Task represents one entry of today's task list.
type Task struct {
	Title     string   `json:"title"`
	Priority  Priority `json:"priority"`
	Completed bool     `json:"completed"`
	DueText   string   `json:"due_text"` // "Today", "tomorrow 9am", ...
	Labels    []string `json:"labels"`
}
