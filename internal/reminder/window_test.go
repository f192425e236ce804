package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowBoundaries(t *testing.T) {
	w := NewWindow(testNow, 0)
	assert.Equal(t, testNow.Add(24*time.Hour), w.End)

	events := []Event{
		{ID: "at-start", Date: "2024-01-01", Time: "10:00"},
		{ID: "before", Date: "2024-01-01", Time: "09:59"},
		{ID: "last-minute", Date: "2024-01-02", Time: "09:59"},
		{ID: "at-end", Date: "2024-01-02", Time: "10:00"},
		{ID: "broken", Date: "2024-13-40", Time: "10:00"},
		{ID: "no-time", Date: "2024-01-01", Time: ""},
	}
	in, bad := w.Filter(events, time.UTC)

	ids := make([]string, 0, len(in))
	for _, e := range in {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"at-start", "last-minute"}, ids)
	require.Len(t, bad, 2)
	assert.Equal(t, "broken", bad[0].ID)
}

func TestWindowFilterUsesLocation(t *testing.T) {
	berlin := time.FixedZone("CET", 60*60)
	// 10:00 UTC is 11:00 CET, so a 10:30 CET event has already started.
	w := NewWindow(testNow.In(berlin), 24*time.Hour)
	in, _ := w.Filter([]Event{
		{ID: "past", Date: "2024-01-01", Time: "10:30"},
		{ID: "soon", Date: "2024-01-01", Time: "11:30"},
	}, berlin)
	require.Len(t, in, 1)
	assert.Equal(t, "soon", in[0].ID)
}

func TestWindowQueryStrings(t *testing.T) {
	w := NewWindow(time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC), 24*time.Hour)
	assert.Equal(t, "2024-01-01", w.StartDate())
	assert.Equal(t, "10:00", w.StartTime())
	assert.Equal(t, "2024-01-02", w.EndDate())
	assert.Equal(t, "10:01", w.EndTime())

	w = NewWindow(time.Date(2024, 1, 1, 23, 59, 30, 0, time.UTC), 24*time.Hour)
	assert.Equal(t, "2024-01-03", w.EndDate())
	assert.Equal(t, "00:00", w.EndTime())

	w = NewWindow(testNow, 24*time.Hour)
	assert.Equal(t, "2024-01-02", w.EndDate())
	assert.Equal(t, "10:00", w.EndTime())
}

func TestNotificationFor(t *testing.T) {
	n := NotificationFor(Event{ID: "7", Name: "Retro", Time: "16:00", Location: "Room B"}, "/icon.png")
	assert.Equal(t, "Upcoming: Retro", n.Title)
	assert.Equal(t, "Happening at 16:00 - Room B", n.Body)
	assert.Equal(t, "event-reminder-7", n.Tag)
	assert.Equal(t, "/icon.png", n.Icon)

	n = NotificationFor(Event{ID: "8", Name: "Call", Time: "09:15"}, "")
	assert.Equal(t, "Happening at 09:15", n.Body)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&NetworkError{Op: "fetch", Err: assert.AnError}))
	assert.True(t, IsTransient(&ServerError{StatusCode: 503}))
	assert.False(t, IsTransient(&ServerError{StatusCode: 401}))
	assert.False(t, IsTransient(assert.AnError))
}
