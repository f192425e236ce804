package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"evently/internal/profile"
	"evently/internal/reminder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpcomingFromCalendarFile(t *testing.T) {
	dir := t.TempDir()
	soon := time.Now().Add(2 * time.Hour).UTC()
	later := time.Now().Add(48 * time.Hour).UTC()
	cal := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//evently//test//EN",
		"BEGIN:VEVENT",
		"UID:soon@test",
		"DTSTART:" + soon.Format("20060102T150405Z"),
		"SUMMARY:Dentist",
		"LOCATION:Main St",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:later@test",
		"DTSTART:" + later.Format("20060102T150405Z"),
		"SUMMARY:Conference",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	icsPath := filepath.Join(dir, "cal.ics")
	require.NoError(t, os.WriteFile(icsPath, []byte(cal), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"upcoming", "--ics", icsPath, "--profile", filepath.Join(dir, "profile.yaml")})
	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, "Upcoming events (next 24 hours)")
	assert.Contains(t, text, "Dentist @ Main St")
	assert.NotContains(t, text, "Conference")
}

func TestUpcomingRequiresLogin(t *testing.T) {
	dir := t.TempDir()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	upcomingICS = ""
	rootCmd.SetArgs([]string{"upcoming", "--profile", filepath.Join(dir, "profile.yaml")})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, profile.ErrNotLoggedIn)
}

func TestPrinterStatus(t *testing.T) {
	var out bytes.Buffer
	p := &printer{out: &out, plain: true}
	refreshed := time.Date(2024, 1, 1, 9, 5, 0, 0, time.Local)

	p.Status(reminder.Status{
		Events:      []reminder.Event{{ID: "1", Name: "Standup", Date: "2024-01-01", Time: "10:30", Location: "Room 1"}},
		LastRefresh: refreshed,
		LastError:   &reminder.NetworkError{Op: "GET /api/events/upcoming", Err: errors.New("connection refused")},
		Permission:  reminder.PermissionGranted,
	})

	text := out.String()
	assert.Contains(t, text, "refreshed 09:05")
	assert.Contains(t, text, "2024-01-01 10:30  Standup @ Room 1")
	assert.Contains(t, text, "could not refresh: server unreachable (showing events from 09:05)")
	assert.Contains(t, text, "notifications: on")
}

func TestPrinterEmpty(t *testing.T) {
	var out bytes.Buffer
	p := &printer{out: &out, plain: true}
	p.Status(reminder.Status{Permission: reminder.PermissionUnsupported})
	assert.Contains(t, out.String(), "No upcoming events in the next 24 hours.")
	assert.Contains(t, out.String(), "not available in this terminal")
	assert.NotContains(t, out.String(), "could not refresh")
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, "session expired, run remindctl login",
		describeError(&reminder.ServerError{StatusCode: 401, Message: "Invalid token"}))
	assert.Equal(t, "server error: status 500: boom",
		describeError(&reminder.ServerError{StatusCode: 500, Message: "boom"}))
	assert.Equal(t, "poll already in flight", describeError(reminder.ErrPollInFlight))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Empty(t, firstNonEmpty())
}
