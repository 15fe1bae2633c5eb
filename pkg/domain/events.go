package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// EventTag identifies one ceremony sub-gallery.
type EventTag string

const (
	EventNikah   EventTag = "Nikah"
	EventSanding EventTag = "Sanding"
	EventTandang EventTag = "Tandang"
)

// DefaultTimeZone is where ceremony dates are interpreted.
const DefaultTimeZone = "Asia/Kuala_Lumpur"

const dateLayout = "2006-01-02"

// Event is a ceremony with an inclusive local capture-date window.
type Event struct {
	Tag       EventTag `json:"tag" yaml:"tag"`
	Title     string   `json:"title" yaml:"title"`
	StartDate string   `json:"startDate" yaml:"startDate"`
	EndDate   string   `json:"endDate" yaml:"endDate"`
}

// DefaultEvents returns the built-in ceremony schedule.
func DefaultEvents() []Event {
	return []Event{
		{Tag: EventNikah, Title: "Majlis Akad Nikah", StartDate: "2025-12-05", EndDate: "2025-12-05"},
		{Tag: EventSanding, Title: "Majlis Persandingan", StartDate: "2025-12-06", EndDate: "2025-12-06"},
		{Tag: EventTandang, Title: "Majlis Bertandang", StartDate: "2025-12-13", EndDate: "2025-12-14"},
	}
}

// Catalog is the fixed ordered set of events for one wedding.
type Catalog struct {
	events []Event
	loc    *time.Location
}

// NewCatalog validates events and binds them to loc (UTC when nil).
func NewCatalog(events []Event, loc *time.Location) (*Catalog, error) {
	if len(events) == 0 {
		return nil, errors.New("event catalog is empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	seen := make(map[EventTag]struct{}, len(events))
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		ev.Tag = EventTag(strings.TrimSpace(string(ev.Tag)))
		if ev.Tag == "" {
			return nil, errors.New("event tag is required")
		}
		if _, dup := seen[ev.Tag]; dup {
			return nil, fmt.Errorf("duplicate event tag %q", ev.Tag)
		}
		seen[ev.Tag] = struct{}{}
		if ev.EndDate == "" {
			ev.EndDate = ev.StartDate
		}
		start, err := time.Parse(dateLayout, ev.StartDate)
		if err != nil {
			return nil, fmt.Errorf("event %s start date: %w", ev.Tag, err)
		}
		end, err := time.Parse(dateLayout, ev.EndDate)
		if err != nil {
			return nil, fmt.Errorf("event %s end date: %w", ev.Tag, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("event %s ends before it starts", ev.Tag)
		}
		if ev.Title == "" {
			ev.Title = string(ev.Tag)
		}
		out = append(out, ev)
	}
	return &Catalog{events: out, loc: loc}, nil
}

// MustDefaultCatalog returns the default schedule in DefaultTimeZone.
func MustDefaultCatalog() *Catalog {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		panic(err)
	}
	c, err := NewCatalog(DefaultEvents(), loc)
	if err != nil {
		panic(err)
	}
	return c
}

// Events returns the events in catalog order.
func (c *Catalog) Events() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Location is the zone capture dates are evaluated in.
func (c *Catalog) Location() *time.Location {
	return c.loc
}

// Lookup finds an event by its exact tag.
func (c *Catalog) Lookup(tag string) (Event, bool) {
	for _, ev := range c.events {
		if string(ev.Tag) == tag {
			return ev, true
		}
	}
	return Event{}, false
}

// ForTime returns the first event whose window contains t's local date.
func (c *Catalog) ForTime(t time.Time) (Event, bool) {
	day := t.In(c.loc).Format(dateLayout)
	for _, ev := range c.events {
		if day >= ev.StartDate && day <= ev.EndDate {
			return ev, true
		}
	}
	return Event{}, false
}

// DescribeWindows renders the acceptable dates for user-facing messages,
// e.g. "Majlis Akad Nikah (5 Dec 2025), Majlis Bertandang (13 Dec 2025 - 14 Dec 2025)".
func (c *Catalog) DescribeWindows() string {
	parts := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		start, _ := time.Parse(dateLayout, ev.StartDate)
		end, _ := time.Parse(dateLayout, ev.EndDate)
		window := start.Format("2 Jan 2006")
		if !end.Equal(start) {
			window += " - " + end.Format("2 Jan 2006")
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", ev.Title, window))
	}
	return strings.Join(parts, ", ")
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
