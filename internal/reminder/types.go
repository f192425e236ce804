package reminder

import (
	"context"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type PermissionState string

const (
	PermissionUnsupported PermissionState = "unsupported"
	PermissionDefault     PermissionState = "default"
	PermissionGranted     PermissionState = "granted"
	PermissionDenied      PermissionState = "denied"
)

func (p PermissionState) String() string { return string(p) }

// Event is a read-only view of an upcoming event as returned by a source.
type Event struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// Start combines Date and Time into an instant in loc.
func (e Event) Start(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+e.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %s: bad date/time %q %q: %w", e.ID, e.Date, e.Time, err)
	}
	return t, nil
}

// Notification is what gets handed to a sink for one event.
type Notification struct {
	Title string
	Body  string
	Icon  string
	Tag   string
	Event Event
}

// TagFor is the per-event dedup tag a sink uses to replace an older
// notification for the same event.
func TagFor(id string) string { return "event-reminder-" + id }

// NotificationFor builds the user-facing text for ev.
func NotificationFor(ev Event, icon string) Notification {
	body := "Happening at " + ev.Time
	if ev.Location != "" {
		body += " - " + ev.Location
	}
	return Notification{
		Title: "Upcoming: " + ev.Name,
		Body:  body,
		Icon:  icon,
		Tag:   TagFor(ev.ID),
		Event: ev,
	}
}

// EventSource returns the events of username that fall inside w.
type EventSource interface {
	FetchUpcoming(ctx context.Context, username string, w Window) ([]Event, error)
}

// NotificationSink is the platform notification facility.
type NotificationSink interface {
	IsSupported() bool
	CurrentPermission() PermissionState
	RequestPermission(ctx context.Context) (PermissionState, error)
	Show(n Notification) (NotificationHandle, error)
}

type NotificationHandle interface {
	Close() error
}

// Status is a copy of the engine state suitable for rendering.
type Status struct {
	SessionID   string
	Username    string
	Permission  PermissionState
	Events      []Event
	LastRefresh time.Time
	LastError   error
	Running     bool
}

// Stale reports whether the last poll failed and Events is an older snapshot.
func (s Status) Stale() bool { return s.LastError != nil }
