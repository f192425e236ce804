// Package notify implements reminder.NotificationSink for a terminal session.
package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"evently/internal/reminder"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const defaultWidth = 60

// TerminalConfig describes the terminal a sink draws on.
type TerminalConfig struct {
	// In answers the permission prompt. It is shared with the caller, who
	// must not read from it while a prompt is running.
	In  *bufio.Reader
	Out io.Writer
	// Supported is false when Out is not an interactive terminal.
	Supported bool
	// Permission is the starting state; PermissionDefault when empty.
	Permission reminder.PermissionState
	Width      int
	// Bell rings the terminal bell with every banner.
	Bell bool
}

// DetectTerminal builds a config for stdin/stdout, marking it supported only
// when both are terminals.
func DetectTerminal(in *bufio.Reader, stdin, stdout *os.File) TerminalConfig {
	supported := term.IsTerminal(int(stdin.Fd())) && term.IsTerminal(int(stdout.Fd()))
	width := defaultWidth
	if w, _, err := term.GetSize(int(stdout.Fd())); err == nil && w > 20 && w-4 < width {
		width = w - 4
	}
	return TerminalConfig{
		In:        in,
		Out:       stdout,
		Supported: supported,
		Width:     width,
		Bell:      true,
	}
}

// TerminalSink prints reminders as boxed banners and asks for permission
// with a y/n prompt. Permission only lives as long as the sink.
type TerminalSink struct {
	cfg    TerminalConfig
	banner lipgloss.Style
	title  lipgloss.Style
	log    *logrus.Entry

	mu         sync.Mutex
	permission reminder.PermissionState
	open       map[string]*terminalHandle
}

func NewTerminalSink(cfg TerminalConfig) *TerminalSink {
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Permission == "" {
		cfg.Permission = reminder.PermissionDefault
	}
	return &TerminalSink{
		cfg: cfg,
		banner: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.ANSIColor(212)).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Foreground(lipgloss.ANSIColor(220)).
			Bold(true),
		log:        logrus.WithField("component", "terminal-sink"),
		permission: cfg.Permission,
		open:       make(map[string]*terminalHandle),
	}
}

func (s *TerminalSink) IsSupported() bool {
	return s.cfg.Supported && s.cfg.Out != nil
}

func (s *TerminalSink) CurrentPermission() reminder.PermissionState {
	if !s.IsSupported() {
		return reminder.PermissionUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// RequestPermission asks on the terminal. "y" grants, "n" denies, and an
// empty answer or end of input leaves the decision for later.
func (s *TerminalSink) RequestPermission(ctx context.Context) (reminder.PermissionState, error) {
	if !s.IsSupported() {
		return reminder.PermissionUnsupported, nil
	}
	if err := ctx.Err(); err != nil {
		return s.CurrentPermission(), err
	}
	if s.cfg.In == nil {
		return reminder.PermissionDefault, &reminder.PermissionError{Reason: "no input to answer the prompt"}
	}

	fmt.Fprint(s.cfg.Out, "Show event reminders in this terminal? [y/n, Enter to decide later]: ")
	line, err := s.cfg.In.ReadString('\n')
	if err != nil && err != io.EOF {
		return reminder.PermissionDefault, &reminder.PermissionError{Reason: "reading answer", Err: err}
	}

	state := reminder.PermissionDefault
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		state = reminder.PermissionGranted
	case "n", "no":
		state = reminder.PermissionDenied
	}
	if err == io.EOF {
		fmt.Fprintln(s.cfg.Out)
	}

	s.mu.Lock()
	s.permission = state
	s.mu.Unlock()
	s.log.WithField("permission", state).Debug("permission answered")
	return state, nil
}

// Show prints a banner for n. A banner with the same tag as one still open
// replaces it.
func (s *TerminalSink) Show(n reminder.Notification) (reminder.NotificationHandle, error) {
	if !s.IsSupported() {
		return nil, reminder.ErrUnsupportedCapability
	}
	if p := s.CurrentPermission(); p != reminder.PermissionGranted {
		return nil, &reminder.PermissionError{Reason: "permission is " + p.String()}
	}

	h := &terminalHandle{sink: s, tag: n.Tag}
	s.mu.Lock()
	prev := s.open[n.Tag]
	s.open[n.Tag] = h
	s.mu.Unlock()
	if prev != nil {
		prev.closeQuietly()
	}

	if _, err := fmt.Fprintln(s.cfg.Out, s.Render(n)); err != nil {
		s.forget(h)
		return nil, fmt.Errorf("print notification: %w", err)
	}
	return h, nil
}

// Render formats n as a bordered banner wrapped to the sink width.
func (s *TerminalSink) Render(n reminder.Notification) string {
	inner := s.cfg.Width - 4
	lines := []string{s.title.Render(fit(n.Title, inner))}
	if n.Body != "" {
		lines = append(lines, fit(n.Body, inner))
	}
	if d := strings.TrimSpace(n.Event.Description); d != "" {
		lines = append(lines, "", fit(d, inner))
	}
	out := s.banner.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	if s.cfg.Bell {
		out = "\a" + out
	}
	return out
}

// fit word-wraps text to width and hard-wraps whatever is still too long.
func fit(text string, width int) string {
	return wrap.String(wordwrap.String(text, width), width)
}

func (s *TerminalSink) forget(h *terminalHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open[h.tag] == h {
		delete(s.open, h.tag)
	}
}

// Open returns the tags of banners not yet dismissed.
func (s *TerminalSink) Open() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := make([]string, 0, len(s.open))
	for tag := range s.open {
		tags = append(tags, tag)
	}
	return tags
}

type terminalHandle struct {
	sink *TerminalSink
	tag  string
	once sync.Once
}

// Close dismisses the banner. Printed text cannot be taken back, so this
// only drops it from the open set.
func (h *terminalHandle) Close() error {
	h.closeQuietly()
	return nil
}

func (h *terminalHandle) closeQuietly() {
	h.once.Do(func() {
		h.sink.forget(h)
		h.sink.log.WithField("tag", h.tag).Debug("notification dismissed")
	})
}
