package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval     = time.Hour
	DefaultDismissAfter = 10 * time.Second
	DefaultIcon         = "/notification-icon.png"
)

type Config struct {
	// Interval between timer-driven polls. cron.Every rounds it to whole
	// seconds with a one second minimum.
	Interval     time.Duration
	Window       time.Duration
	DismissAfter time.Duration
	Icon         string
	Location     *time.Location
	Now          func() time.Time
	Logger       *logrus.Entry

	// OnUpdate receives a fresh Status after every finished poll and after
	// every permission change.
	OnUpdate func(Status)
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.DismissAfter <= 0 {
		c.DismissAfter = DefaultDismissAfter
	}
	if c.Icon == "" {
		c.Icon = DefaultIcon
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

// Engine polls an EventSource for events starting in the next Window and
// turns them into notifications on a NotificationSink.
//
// mu guards everything below it. Fetches and sink calls never run with mu
// held; selecting undispatched events and marking them dispatched always
// happens in a single critical section so the timer path and the permission
// path cannot notify the same event twice.
type Engine struct {
	source EventSource
	sink   NotificationSink
	cfg    Config
	log    *logrus.Entry

	mu          sync.Mutex
	sessionID   string
	username    string
	started     bool
	stopped     bool
	busy        bool
	prompting   bool
	permission  PermissionState
	snapshot    []Event
	dispatched  map[string]struct{}
	lastErr     error
	lastRefresh time.Time

	sched     *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	stopWatch func() bool
}

func New(source EventSource, sink NotificationSink, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		source:     source,
		sink:       sink,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "reminder"),
		permission: PermissionUnsupported,
		dispatched: make(map[string]struct{}),
	}
}

// Start detects the notification capability, polls once synchronously and
// then arms the recurring timer. A failing first poll does not fail Start;
// it is reported through Status like any other poll failure. Cancelling ctx
// stops the engine.
func (e *Engine) Start(ctx context.Context, username string) error {
	if username == "" {
		return ErrEmptyUsername
	}

	permission := PermissionUnsupported
	if e.sink != nil && e.sink.IsSupported() {
		permission = e.sink.CurrentPermission()
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.username = username
	e.sessionID = uuid.NewString()
	e.permission = permission
	e.log = e.log.WithFields(logrus.Fields{"session": e.sessionID, "username": username})
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.stopWatch = context.AfterFunc(ctx, e.Stop)

	cronLog := cron.PrintfLogger(e.log)
	e.sched = cron.New(
		cron.WithLocation(e.cfg.Location),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	e.sched.Schedule(cron.Every(e.cfg.Interval), cron.FuncJob(e.tick))
	log := e.log
	e.mu.Unlock()

	log.WithFields(logrus.Fields{
		"permission": permission,
		"interval":   e.cfg.Interval,
	}).Info("reminder engine started")

	_ = e.Poll(e.ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.stopped {
		e.sched.Start()
	}
	return nil
}

func (e *Engine) tick() {
	_ = e.Poll(e.ctx)
}

// Poll fetches the current window and replaces the snapshot on success.
// On failure the previous snapshot is kept and the error is recorded in
// Status. Only one poll runs at a time; a concurrent call returns
// ErrPollInFlight without fetching.
func (e *Engine) Poll(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.stopped:
		e.mu.Unlock()
		return ErrStopped
	case !e.started:
		e.mu.Unlock()
		return ErrNotStarted
	case e.busy:
		e.mu.Unlock()
		e.log.Debug("poll skipped, previous poll still in flight")
		return ErrPollInFlight
	}
	e.busy = true
	username := e.username
	engineCtx := e.ctx
	w := NewWindow(e.cfg.Now().In(e.cfg.Location), e.cfg.Window)
	e.mu.Unlock()

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(engineCtx, cancel)
	defer stop()

	started := time.Now()
	events, err := e.source.FetchUpcoming(fetchCtx, username, w)

	e.mu.Lock()
	e.busy = false
	if e.stopped {
		e.mu.Unlock()
		e.log.Debug("engine stopped during poll, result discarded")
		return ErrStopped
	}
	if err != nil {
		e.lastErr = err
		status := e.statusLocked()
		e.mu.Unlock()
		e.log.WithError(err).WithField("window", w.String()).Warn("could not refresh upcoming events")
		e.notify(status)
		return err
	}

	upcoming, bad := w.Filter(events, e.cfg.Location)
	e.snapshot = upcoming
	e.lastErr = nil
	e.lastRefresh = w.Start
	var pending []Notification
	if e.permission == PermissionGranted {
		pending = e.claimLocked(upcoming)
	}
	status := e.statusLocked()
	e.mu.Unlock()

	for _, ev := range bad {
		e.log.WithField("event_id", ev.ID).Warn("skipping event with unparseable date or time")
	}
	e.log.WithFields(logrus.Fields{
		"events":   len(upcoming),
		"fetched":  len(events),
		"duration": time.Since(started),
	}).Debug("poll finished")

	e.show(pending)
	e.notify(status)
	return nil
}

// RequestPermission prompts through the sink when the permission state is
// still default. Granted and denied are final for the session and return
// without prompting. A sink error, or an answer other than granted or
// denied, is logged and leaves the state unchanged.
func (e *Engine) RequestPermission(ctx context.Context) (PermissionState, error) {
	e.mu.Lock()
	current := e.permission
	switch {
	case e.stopped:
		e.mu.Unlock()
		return current, ErrStopped
	case !e.started:
		e.mu.Unlock()
		return current, ErrNotStarted
	case current == PermissionUnsupported:
		e.mu.Unlock()
		return current, ErrUnsupportedCapability
	case current != PermissionDefault:
		e.mu.Unlock()
		return current, nil
	case e.prompting:
		e.mu.Unlock()
		return current, ErrPromptPending
	}
	e.prompting = true
	e.mu.Unlock()

	answer, err := e.sink.RequestPermission(ctx)

	e.mu.Lock()
	e.prompting = false
	if err != nil {
		e.mu.Unlock()
		e.log.WithError(err).Warn("notification permission request failed")
		return current, nil
	}
	if e.stopped {
		e.mu.Unlock()
		return current, ErrStopped
	}

	var pending []Notification
	switch answer {
	case PermissionGranted:
		e.permission = PermissionGranted
		for _, ev := range e.snapshot {
			delete(e.dispatched, ev.ID)
		}
		pending = e.claimLocked(e.snapshot)
	case PermissionDenied:
		e.permission = PermissionDenied
	case PermissionUnsupported:
		e.log.Warn("sink reported notifications unsupported while prompting, permission left unchanged")
	}
	result := e.permission
	status := e.statusLocked()
	e.mu.Unlock()

	e.log.WithField("permission", result).Info("notification permission answered")
	e.show(pending)
	e.notify(status)
	return result, nil
}

// DispatchNotifications shows a notification for every event in events that
// has not been notified yet in this session. It is a no-op unless permission
// is granted. It returns the number of notifications shown.
func (e *Engine) DispatchNotifications(events []Event) int {
	e.mu.Lock()
	if e.stopped || e.permission != PermissionGranted {
		e.mu.Unlock()
		return 0
	}
	pending := e.claimLocked(events)
	e.mu.Unlock()
	return e.show(pending)
}

// Stop cancels the timer and any in-flight fetch. It is safe to call more
// than once and from any goroutine.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	sched, cancel, stopWatch := e.sched, e.cancel, e.stopWatch
	log := e.log
	e.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if cancel != nil {
		cancel()
	}
	if sched != nil {
		sched.Stop()
	}
	log.Info("reminder engine stopped")
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	events := make([]Event, len(e.snapshot))
	copy(events, e.snapshot)
	return Status{
		SessionID:   e.sessionID,
		Username:    e.username,
		Permission:  e.permission,
		Events:      events,
		LastRefresh: e.lastRefresh,
		LastError:   e.lastErr,
		Running:     e.started && !e.stopped,
	}
}

// claimLocked marks every not yet dispatched event as dispatched and
// returns the notifications to show for them.
func (e *Engine) claimLocked(events []Event) []Notification {
	var out []Notification
	for _, ev := range events {
		if _, done := e.dispatched[ev.ID]; done {
			continue
		}
		e.dispatched[ev.ID] = struct{}{}
		out = append(out, NotificationFor(ev, e.cfg.Icon))
	}
	return out
}

func (e *Engine) show(pending []Notification) int {
	shown := 0
	for _, n := range pending {
		if e.isStopped() {
			break
		}
		log := e.log.WithField("event_id", n.Event.ID)
		handle, err := e.showOne(n)
		if err != nil {
			e.mu.Lock()
			delete(e.dispatched, n.Event.ID)
			e.mu.Unlock()
			log.WithError(err).Warn("failed to show notification")
			continue
		}
		shown++
		if handle == nil {
			continue
		}
		time.AfterFunc(e.cfg.DismissAfter, func() {
			if err := handle.Close(); err != nil {
				log.WithError(err).Debug("failed to close notification")
			}
		})
	}
	return shown
}

// showOne calls the sink, turning a panic into a PermissionError.
func (e *Engine) showOne(n Notification) (h NotificationHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, &PermissionError{Reason: fmt.Sprintf("show panicked: %v", r)}
		}
	}()
	return e.sink.Show(n)
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *Engine) notify(s Status) {
	if e.cfg.OnUpdate != nil {
		e.cfg.OnUpdate(s)
	}
}
