// Package calendar fetches the club's public ICS feed and picks out the next
// meeting from it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const (
	// DefaultURL is the public feed the bot has always announced meetings from
	DefaultURL = "https://www.google.com/calendar/ical/outofthemadness%40gmail.com/public/basic.ics"

	// DefaultTimezone is where meeting times are announced
	DefaultTimezone = "America/New_York"

	dateFormat       = "January 02, 2006 @ 3:04 PM"
	dateFormatAllDay = "January 02, 2006 @ All Day"
)

// ErrNoUpcoming is returned by Next when every event in the feed is in the past
var ErrNoUpcoming = errors.New("no upcoming events")

// Event is a single VEVENT from the feed
type Event struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	AllDay      bool
}

// FormatStart renders the start time the way it is announced in the channel
func (e *Event) FormatStart() string {
	if e.AllDay {
		return e.Start.Format(dateFormatAllDay)
	}
	return e.Start.Format(dateFormat)
}

// Feed is an ICS calendar reachable over HTTP
type Feed struct {
	URL      string
	Client   *http.Client
	Location *time.Location
}

// NewFeed creates a feed for url with times converted to tz
func NewFeed(url, tz string) (*Feed, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}
	return &Feed{
		URL:      url,
		Client:   http.DefaultClient,
		Location: loc,
	}, nil
}

// Fetch downloads and parses every event in the feed
func (f *Feed) Fetch(ctx context.Context) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch calendar: unexpected status %s", resp.Status)
	}

	return Parse(resp.Body, f.location())
}

// Next returns the earliest event starting on or after now's date
func (f *Feed) Next(ctx context.Context, now time.Time) (*Event, error) {
	events, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return NextEvent(events, now, f.location())
}

func (f *Feed) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// Parse reads an ICS document. Events without a usable DTSTART are skipped.
func Parse(r io.Reader, loc *time.Location) ([]Event, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	var events []Event
	for _, vevent := range cal.Events() {
		start, allDay, ok := eventStart(vevent, loc)
		if !ok {
			continue
		}

		ev := Event{
			Summary:     propertyValue(vevent, ics.ComponentPropertySummary),
			Description: propertyValue(vevent, ics.ComponentPropertyDescription),
			Location:    propertyValue(vevent, ics.ComponentPropertyLocation),
			Start:       start,
			AllDay:      allDay,
		}
		if ev.Location == "" {
			ev.Location = "TBA"
		}
		if ev.Description == "" {
			ev.Description = "No Description"
		}
		events = append(events, ev)
	}
	return events, nil
}

// NextEvent picks the earliest event whose start date is today or later.
// Dates are compared in loc.
func NextEvent(events []Event, now time.Time, loc *time.Location) (*Event, error) {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var upcoming []Event
	for _, ev := range events {
		if !ev.Start.Before(today) {
			upcoming = append(upcoming, ev)
		}
	}
	if len(upcoming) == 0 {
		return nil, ErrNoUpcoming
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].Start.Before(upcoming[j].Start)
	})
	return &upcoming[0], nil
}

func eventStart(vevent *ics.VEvent, loc *time.Location) (time.Time, bool, bool) {
	prop := vevent.GetProperty(ics.ComponentPropertyDtStart)
	if prop == nil {
		return time.Time{}, false, false
	}

	// DTSTART;VALUE=DATE:20250220
	if isDateValue(prop) {
		day, err := time.ParseInLocation("20060102", strings.TrimSpace(prop.Value), loc)
		if err != nil {
			return time.Time{}, false, false
		}
		return day, true, true
	}

	start, err := vevent.GetStartAt()
	if err != nil {
		return time.Time{}, false, false
	}
	return start.In(loc), false, true
}

func isDateValue(prop *ics.IANAProperty) bool {
	for _, v := range prop.ICalParameters[string(ics.ParameterValue)] {
		if strings.EqualFold(v, "DATE") {
			return true
		}
	}
	return len(strings.TrimSpace(prop.Value)) == len("20060102")
}

func propertyValue(vevent *ics.VEvent, name ics.ComponentProperty) string {
	prop := vevent.GetProperty(name)
	if prop == nil {
		return ""
	}
	return strings.TrimSpace(prop.Value)
}
