package eventsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"evently/internal/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//evently//test//EN
BEGIN:VEVENT
UID:single@test
DTSTAMP:20231201T000000Z
DTSTART:20240101T120000Z
DTEND:20240101T130000Z
SUMMARY:Lunch
LOCATION:Cafe
END:VEVENT
BEGIN:VEVENT
UID:daily@test
DTSTAMP:20231201T000000Z
DTSTART:20231225T090000Z
DTEND:20231225T093000Z
RRULE:FREQ=DAILY
EXDATE:20240103T090000Z
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:allday@test
DTSTAMP:20231201T000000Z
DTSTART;VALUE=DATE:20240101
SUMMARY:Holiday
END:VEVENT
BEGIN:VEVENT
UID:boundary@test
DTSTAMP:20231201T000000Z
DTSTART:20240102T100000Z
SUMMARY:Too late
END:VEVENT
BEGIN:VEVENT
UID:start@test
DTSTAMP:20231201T000000Z
DTSTART:20240101T100000Z
SUMMARY:Right now
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseICSWindow(t *testing.T) {
	w := reminder.NewWindow(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), reminder.DefaultWindow)

	events, err := ParseICS(crlf(sampleICS), w, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []reminder.Event{
		{ID: "start@test", Name: "Right now", Date: "2024-01-01", Time: "10:00"},
		{ID: "single@test", Name: "Lunch", Date: "2024-01-01", Time: "12:00", Location: "Cafe"},
		{ID: "daily@test/20240102T0900", Name: "Standup", Date: "2024-01-02", Time: "09:00"},
	}, events)
}

const secondsICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//evently//test//EN
BEGIN:VEVENT
UID:seconds@test
DTSTAMP:20231201T000000Z
DTSTART:20240101T100045Z
SUMMARY:Call
END:VEVENT
BEGIN:VEVENT
UID:sync@test
DTSTAMP:20231201T000000Z
DTSTART:20231225T100050Z
RRULE:FREQ=DAILY
SUMMARY:Sync
END:VEVENT
END:VCALENDAR
`

func TestParseICSAgreesWithFilterOnSeconds(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want []string
	}{
		{"before the minute", time.Date(2024, 1, 1, 9, 59, 30, 0, time.UTC),
			[]string{"seconds@test", "sync@test/20240101T1000"}},
		{"inside the minute", time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC),
			[]string{"sync@test/20240102T1000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := reminder.NewWindow(tt.now, reminder.DefaultWindow)
			events, err := ParseICS(crlf(secondsICS), w, time.UTC)
			require.NoError(t, err)

			var ids []string
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)

			kept, bad := w.Filter(events, time.UTC)
			assert.Empty(t, bad)
			assert.Equal(t, events, kept)
		})
	}
}

func TestParseICSExDate(t *testing.T) {
	w := reminder.NewWindow(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), reminder.DefaultWindow)

	events, err := ParseICS(crlf(sampleICS), w, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "boundary@test", events[0].ID)
}

func TestParseICSLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	w := reminder.NewWindow(time.Date(2024, 1, 1, 12, 30, 0, 0, loc), 2*time.Hour)

	events, err := ParseICS(crlf(sampleICS), w, loc)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Lunch", events[0].Name)
	assert.Equal(t, "14:00", events[0].Time)
}

func TestParseICSErrors(t *testing.T) {
	w := reminder.NewWindow(time.Now(), 0)
	_, err := ParseICS(nil, w, nil)
	assert.Error(t, err)
}

func TestICSSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.ics")
	require.NoError(t, os.WriteFile(path, crlf(sampleICS), 0o600))

	src := NewICSSource(path, time.UTC)
	assert.False(t, src.IsRemote())
	assert.Equal(t, path, src.Path())

	w := reminder.NewWindow(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), reminder.DefaultWindow)
	events, err := src.FetchUpcoming(context.Background(), "alice", w)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	_, err = NewICSSource(filepath.Join(t.TempDir(), "missing.ics"), nil).FetchUpcoming(context.Background(), "alice", w)
	assert.Error(t, err)
	assert.False(t, reminder.IsTransient(err))
}

func TestICSSourceURL(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(crlf(sampleICS))
	}))
	defer srv.Close()

	src := NewICSSource(srv.URL+"/cal.ics", time.UTC)
	assert.True(t, src.IsRemote())
	assert.Empty(t, src.Path())

	w := reminder.NewWindow(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), reminder.DefaultWindow)
	events, err := src.FetchUpcoming(context.Background(), "alice", w)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	fail.Store(true)
	_, err = src.FetchUpcoming(context.Background(), "alice", w)
	assert.True(t, reminder.IsTransient(err))
}
