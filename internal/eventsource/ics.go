package eventsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"evently/internal/reminder"

	ical "github.com/arran4/golang-ical"
	"github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// maxOccurrences caps how many instances one recurring event may expand to
// inside a single window.
const maxOccurrences = 500

// ICSSource reads events from an iCalendar file or http(s) URL. Recurring
// events are expanded within the requested window.
type ICSSource struct {
	target string
	loc    *time.Location
	http   *http.Client
	log    *logrus.Entry
}

// NewICSSource returns a source for target, a file path or an http(s) URL.
// Event dates and times are rendered in loc, or time.Local when nil.
func NewICSSource(target string, loc *time.Location) *ICSSource {
	if loc == nil {
		loc = time.Local
	}
	return &ICSSource{
		target: target,
		loc:    loc,
		http:   &http.Client{Timeout: defaultTimeout},
		log:    logrus.WithFields(logrus.Fields{"component": "ics-source", "target": target}),
	}
}

// IsRemote reports whether the source is fetched over HTTP.
func (s *ICSSource) IsRemote() bool {
	return strings.HasPrefix(s.target, "http://") || strings.HasPrefix(s.target, "https://")
}

// Path is the file being read, or "" for a remote source.
func (s *ICSSource) Path() string {
	if s.IsRemote() {
		return ""
	}
	return s.target
}

func (s *ICSSource) FetchUpcoming(ctx context.Context, username string, w reminder.Window) ([]reminder.Event, error) {
	body, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	events, err := ParseICS(body, w, s.loc)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"username": username, "events": len(events)}).Debug("read calendar")
	return events, nil
}

func (s *ICSSource) load(ctx context.Context) ([]byte, error) {
	if !s.IsRemote() {
		body, err := os.ReadFile(s.target)
		if err != nil {
			return nil, fmt.Errorf("read calendar: %w", err)
		}
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &reminder.NetworkError{Op: "fetch calendar", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &reminder.ServerError{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &reminder.NetworkError{Op: "fetch calendar", Err: err}
	}
	return body, nil
}

type occurrence struct {
	start time.Time
	event reminder.Event
}

// ParseICS returns the timed events of an iCalendar document that start
// inside w, ordered by start. All-day events are skipped. An occurrence of a
// recurring event gets the id UID/YYYYMMDDTHHMM so it stays stable across
// polls.
func ParseICS(body []byte, w reminder.Window, loc *time.Location) ([]reminder.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty calendar")
	}
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	log := logrus.WithField("component", "ics-source")
	var out []occurrence
	for _, ve := range cal.Events() {
		uid := propValue(ve, ical.ComponentPropertyUniqueId)
		if uid == "" {
			log.Debug("skipping VEVENT without UID")
			continue
		}
		if isAllDay(ve) {
			continue
		}
		// Overrides of single instances are not tracked.
		if ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")) != nil {
			continue
		}
		start, err := ve.GetStartAt()
		if err != nil {
			log.WithError(err).WithField("uid", uid).Warn("skipping VEVENT with bad DTSTART")
			continue
		}
		base := reminder.Event{
			Name:        propValue(ve, ical.ComponentPropertySummary),
			Description: propValue(ve, ical.ComponentPropertyDescription),
			Location:    propValue(ve, ical.ComponentPropertyLocation),
		}

		raw := propValue(ve, ical.ComponentPropertyRrule)
		if raw == "" {
			// Events carry minute precision, so judge the minute they will show.
			at := start.Truncate(time.Minute)
			if w.Contains(at) {
				out = append(out, occurrenceAt(base, uid, at, loc))
			}
			continue
		}
		starts, err := expand(ve, raw, start, w)
		if err != nil {
			log.WithError(err).WithField("uid", uid).Warn("skipping VEVENT with bad RRULE")
			continue
		}
		for _, st := range starts {
			out = append(out, occurrenceAt(base, uid+"/"+st.In(loc).Format("20060102T1504"), st, loc))
		}
	}

	slices.SortStableFunc(out, func(a, b occurrence) int { return a.start.Compare(b.start) })
	events := make([]reminder.Event, len(out))
	for i, o := range out {
		events[i] = o.event
	}
	return events, nil
}

func occurrenceAt(base reminder.Event, id string, start time.Time, loc *time.Location) occurrence {
	ev := base
	ev.ID = id
	local := start.In(loc)
	ev.Date = local.Format(reminder.DateLayout)
	ev.Time = local.Format(reminder.TimeLayout)
	return occurrence{start: start, event: ev}
}

// expand lists the starts of a recurring event inside w, minus EXDATEs.
func expand(ve *ical.VEvent, raw string, start time.Time, w reminder.Window) ([]time.Time, error) {
	r, err := rrule.StrToRRule(raw)
	if err != nil {
		return nil, err
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), start.Location()); err == nil {
				set.ExDate(t)
			}
		}
	}

	var starts []time.Time
	// Occurrences are judged by their minute, which may sit up to a minute
	// before the raw start.
	until := w.End.Add(time.Minute).In(start.Location())
	for _, t := range set.Between(w.Start.In(start.Location()), until, true) {
		t = t.Truncate(time.Minute)
		if !w.Contains(t) {
			continue
		}
		starts = append(starts, t)
		if len(starts) == maxOccurrences {
			break
		}
	}
	return starts, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses the basic DATE-TIME forms used by EXDATE.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
