package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//handbot//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:past@example.com\r\n" +
	"DTSTART:20250110T230000Z\r\n" +
	"SUMMARY:January meeting\r\n" +
	"LOCATION:Library\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:later@example.com\r\n" +
	"DTSTART:20250315T230000Z\r\n" +
	"SUMMARY:March meeting\r\n" +
	"LOCATION:Community Hall\r\n" +
	"DESCRIPTION:Elections\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:soon@example.com\r\n" +
	"DTSTART:20250227T230000Z\r\n" +
	"SUMMARY:February meeting\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:nostart@example.com\r\n" +
	"SUMMARY:Someday\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParse(t *testing.T) {
	events, err := Parse(strings.NewReader(testFeed), time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "January meeting", events[0].Summary)
	assert.Equal(t, "Library", events[0].Location)
	assert.Equal(t, "No Description", events[0].Description)
	assert.False(t, events[0].AllDay)

	assert.Equal(t, "Elections", events[1].Description)
	assert.Equal(t, "TBA", events[2].Location)
	assert.True(t, events[2].Start.Equal(time.Date(2025, time.February, 27, 23, 0, 0, 0, time.UTC)))
}

func TestParseAllDay(t *testing.T) {
	feed := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:allday@example.com\r\n" +
		"DTSTART;VALUE=DATE:20250220\r\n" +
		"SUMMARY:Picnic\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := Parse(strings.NewReader(feed), time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.True(t, events[0].AllDay)
	assert.Equal(t, "February 20, 2025 @ All Day", events[0].FormatStart())
}

func TestNextEvent(t *testing.T) {
	events, err := Parse(strings.NewReader(testFeed), time.UTC)
	require.NoError(t, err)

	now := time.Date(2025, time.February, 20, 12, 0, 0, 0, time.UTC)
	next, err := NextEvent(events, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "February meeting", next.Summary)

	// Everything is in the past
	_, err = NextEvent(events, now.AddDate(1, 0, 0), time.UTC)
	assert.True(t, errors.Is(err, ErrNoUpcoming))
}

func TestNextEventCountsToday(t *testing.T) {
	loc := time.UTC
	events := []Event{
		{Summary: "Tomorrow", Start: time.Date(2025, time.February, 21, 18, 0, 0, 0, loc)},
		{Summary: "This morning", Start: time.Date(2025, time.February, 20, 8, 0, 0, 0, loc)},
		{Summary: "Today all day", Start: time.Date(2025, time.February, 20, 0, 0, 0, 0, loc), AllDay: true},
		{Summary: "Yesterday", Start: time.Date(2025, time.February, 19, 18, 0, 0, 0, loc)},
	}

	now := time.Date(2025, time.February, 20, 12, 0, 0, 0, loc)
	next, err := NextEvent(events, now, loc)
	require.NoError(t, err)
	assert.Equal(t, "Today all day", next.Summary)
}

func TestFormatStart(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	ev := Event{Start: time.Date(2025, time.February, 27, 18, 30, 0, 0, loc)}
	assert.Equal(t, "February 27, 2025 @ 6:30 PM", ev.FormatStart())
}

func TestFeedNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	feed := &Feed{URL: srv.URL, Client: srv.Client(), Location: time.FixedZone("EST", -5*60*60)}

	now := time.Date(2025, time.February, 20, 12, 0, 0, 0, time.UTC)
	next, err := feed.Next(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "February meeting", next.Summary)
	assert.Equal(t, "February 27, 2025 @ 6:00 PM", next.FormatStart())
}

func TestFeedFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	feed := &Feed{URL: srv.URL, Client: srv.Client()}
	_, err := feed.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestFeedFetchCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	feed := &Feed{URL: srv.URL, Client: srv.Client()}
	_, err := feed.Fetch(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewFeedBadTimezone(t *testing.T) {
	_, err := NewFeed(DefaultURL, "Not/AZone")
	assert.Error(t, err)
}
