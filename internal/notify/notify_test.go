package notify

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"evently/internal/reminder"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSink(input string, supported bool) (*TerminalSink, *bytes.Buffer) {
	var out bytes.Buffer
	return NewTerminalSink(TerminalConfig{
		In:        bufio.NewReader(strings.NewReader(input)),
		Out:       &out,
		Supported: supported,
		Width:     80,
	}), &out
}

var standup = reminder.NotificationFor(reminder.Event{
	ID: "7", Name: "Standup", Date: "2024-01-01", Time: "10:30", Location: "Room 1",
	Description: "Bring notes",
}, "")

func TestRequestPermissionAnswers(t *testing.T) {
	tests := []struct {
		input string
		want  reminder.PermissionState
	}{
		{"y\n", reminder.PermissionGranted},
		{"YES\n", reminder.PermissionGranted},
		{"n\n", reminder.PermissionDenied},
		{"\n", reminder.PermissionDefault},
		{"maybe\n", reminder.PermissionDefault},
		{"", reminder.PermissionDefault},
		{"y", reminder.PermissionGranted},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			s, out := newSink(tt.input, true)
			got, err := s.RequestPermission(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, s.CurrentPermission())
			assert.Contains(t, out.String(), "Show event reminders")
		})
	}
}

func TestPromptLeavesRestOfInput(t *testing.T) {
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader("y\nr\n"))
	s := NewTerminalSink(TerminalConfig{In: in, Out: &out, Supported: true})

	_, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	line, err := in.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "r\n", line)
}

func TestUnsupportedTerminal(t *testing.T) {
	s, out := newSink("y\n", false)
	assert.False(t, s.IsSupported())
	assert.Equal(t, reminder.PermissionUnsupported, s.CurrentPermission())

	got, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reminder.PermissionUnsupported, got)

	_, err = s.Show(standup)
	assert.ErrorIs(t, err, reminder.ErrUnsupportedCapability)
	assert.Empty(t, out.String())
}

func TestShowRequiresGrant(t *testing.T) {
	s, _ := newSink("", true)
	_, err := s.Show(standup)
	var permErr *reminder.PermissionError
	assert.ErrorAs(t, err, &permErr)
}

func TestShowPrintsBanner(t *testing.T) {
	s, out := newSink("y\n", true)
	_, err := s.RequestPermission(context.Background())
	require.NoError(t, err)
	out.Reset()

	h, err := s.Show(standup)
	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "Upcoming: Standup")
	assert.Contains(t, text, "Happening at 10:30 - Room 1")
	assert.Contains(t, text, "Bring notes")
	assert.Equal(t, []string{"event-reminder-7"}, s.Open())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Empty(t, s.Open())
}

func TestShowReplacesSameTag(t *testing.T) {
	s := NewTerminalSink(TerminalConfig{Out: io.Discard, Supported: true, Permission: reminder.PermissionGranted})

	first, err := s.Show(standup)
	require.NoError(t, err)
	second, err := s.Show(standup)
	require.NoError(t, err)
	assert.Len(t, s.Open(), 1)

	// Closing the replaced banner does not drop its successor.
	require.NoError(t, first.Close())
	assert.Len(t, s.Open(), 1)
	require.NoError(t, second.Close())
	assert.Empty(t, s.Open())
}

func TestRenderFitsWidth(t *testing.T) {
	long := standup
	long.Event.Description = strings.Repeat("word ", 20)
	unbroken := standup
	unbroken.Body = strings.Repeat("x", 50)

	tests := []struct {
		name  string
		width int
		n     reminder.Notification
	}{
		{"body at the limit", 30, standup},
		{"long description", 30, long},
		{"unbroken word", 30, unbroken},
		{"narrow", 24, long},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTerminalSink(TerminalConfig{Out: io.Discard, Supported: true, Width: tt.width})
			for _, line := range strings.Split(s.Render(tt.n), "\n") {
				assert.LessOrEqual(t, len([]rune(stripANSI(line))), tt.width, "line %q", line)
			}
		})
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEsc = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestLogSink(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewLogSink(logrus.NewEntry(logger))

	assert.True(t, s.IsSupported())
	assert.Equal(t, reminder.PermissionGranted, s.CurrentPermission())
	h, err := s.Show(standup)
	require.NoError(t, err)
	assert.NoError(t, h.Close())

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, "Upcoming: Standup: Happening at 10:30 - Room 1", entry.Message)
	assert.Equal(t, "7", entry.Data["event_id"])
}
