package reminder

import (
	"time"
)

const DefaultWindow = 24 * time.Hour

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(now time.Time, span time.Duration) Window {
	if span <= 0 {
		span = DefaultWindow
	}
	return Window{Start: now, End: now.Add(span)}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// StartDate and StartTime are minute-granular; formatting drops the seconds
// so a minute-granular source sees a start at or before w.Start.
func (w Window) StartDate() string { return w.Start.Format(DateLayout) }
func (w Window) StartTime() string { return w.Start.Format(TimeLayout) }

// EndDate and EndTime round End up to the next whole minute so the source
// never cuts off the tail of the window. Filter trims the excess.
func (w Window) EndDate() string { return w.roundedEnd().Format(DateLayout) }
func (w Window) EndTime() string { return w.roundedEnd().Format(TimeLayout) }

func (w Window) roundedEnd() time.Time {
	if t := w.End.Truncate(time.Minute); !t.Equal(w.End) {
		return t.Add(time.Minute)
	}
	return w.End
}

func (w Window) String() string {
	return "[" + w.Start.Format(time.RFC3339) + ", " + w.End.Format(time.RFC3339) + ")"
}

// Filter keeps the events starting inside w, in input order. Events whose
// date or time cannot be parsed are returned separately.
func (w Window) Filter(events []Event, loc *time.Location) (in []Event, bad []Event) {
	in = make([]Event, 0, len(events))
	for _, ev := range events {
		start, err := ev.Start(loc)
		if err != nil {
			bad = append(bad, ev)
			continue
		}
		if w.Contains(start) {
			in = append(in, ev)
		}
	}
	return in, bad
}
