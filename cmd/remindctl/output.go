package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"evently/internal/reminder"

	"github.com/charmbracelet/lipgloss/v2"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(220)).Bold(true)
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(196))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(241))
)

// printer serialises output from the engine's goroutines and the input loop.
type printer struct {
	mu    sync.Mutex
	out   io.Writer
	plain bool
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

func (p *printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// Events lists events under a header.
func (p *printer) Events(events []reminder.Event, refreshed time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventsLocked(events, refreshed)
}

func (p *printer) eventsLocked(events []reminder.Event, refreshed time.Time) {
	header := "Upcoming events (next 24 hours)"
	if !refreshed.IsZero() {
		header += " - refreshed " + refreshed.Format("15:04")
	}
	fmt.Fprintln(p.out, p.style(headerStyle, header))
	if len(events) == 0 {
		fmt.Fprintln(p.out, p.style(dimStyle, "  No upcoming events in the next 24 hours."))
		return
	}
	for _, ev := range events {
		line := fmt.Sprintf("  %s %s  %s", ev.Date, ev.Time, ev.Name)
		if ev.Location != "" {
			line += " @ " + ev.Location
		}
		fmt.Fprintln(p.out, line)
	}
}

// Status prints a snapshot after a poll or permission change. A failed poll
// keeps the previous events on screen and says so.
func (p *printer) Status(st reminder.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
	p.eventsLocked(st.Events, st.LastRefresh)
	if st.Stale() {
		msg := "could not refresh: " + describeError(st.LastError)
		if !st.LastRefresh.IsZero() {
			msg += fmt.Sprintf(" (showing events from %s)", st.LastRefresh.Format("15:04"))
		}
		fmt.Fprintln(p.out, p.style(staleStyle, msg))
	}
	fmt.Fprintln(p.out, p.style(dimStyle, "notifications: "+permissionText(st.Permission)))
}

func permissionText(p reminder.PermissionState) string {
	switch p {
	case reminder.PermissionGranted:
		return "on"
	case reminder.PermissionDenied:
		return "blocked for this session"
	case reminder.PermissionDefault:
		return "not decided (p+Enter to choose)"
	default:
		return "not available in this terminal"
	}
}

func describeError(err error) string {
	var srvErr *reminder.ServerError
	if errors.As(err, &srvErr) && srvErr.StatusCode == 401 {
		return "session expired, run remindctl login"
	}
	var netErr *reminder.NetworkError
	if errors.As(err, &netErr) {
		return "server unreachable"
	}
	return strings.TrimPrefix(err.Error(), "reminder: ")
}
