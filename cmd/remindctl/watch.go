package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"evently/internal/eventsource"
	"evently/internal/logging"
	"evently/internal/notify"
	"evently/internal/reminder"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	watchICS      string
	watchInterval time.Duration
	noNotify      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep running and show reminders for upcoming events",
	Long: `watch polls for events starting within the next 24 hours, prints them,
and shows a reminder for each one. Type r and Enter to refresh now, p and
Enter to answer the notification prompt again, q and Enter or Ctrl-C to quit.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchICS, "ics", "", "read events from an iCalendar file or URL instead of the server")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", reminder.DefaultInterval, "time between refreshes")
	watchCmd.Flags().BoolVar(&noNotify, "no-notify", false, "only list events, never show reminders")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	source, ics, err := newSource(watchICS)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdout := cmd.OutOrStdout()
	p := &printer{out: stdout, plain: !isTerminal(stdout)}
	in := bufio.NewReader(cmd.InOrStdin())

	eng := reminder.New(source, newSink(in, stdout), reminder.Config{
		Interval: watchInterval,
		Location: time.Local,
		Logger:   logging.For("remindctl"),
		OnUpdate: p.Status,
	})
	if err := eng.Start(ctx, sessionUser()); err != nil {
		return err
	}
	defer eng.Stop()

	if ics != nil && ics.Path() != "" {
		fw, err := eventsource.NewFileWatcher(ics.Path(), func(string) {
			refresh(ctx, eng, p)
		})
		if err != nil {
			p.Printf("not watching %s for changes: %v\n", ics.Path(), err)
		} else {
			defer fw.Close()
		}
	}

	go readCommands(ctx, eng, in, p, stop)

	<-ctx.Done()
	p.Printf("\nstopping\n")
	return nil
}

// newSink returns the terminal sink when stdout is a terminal, a log sink
// when it is not, and nil when reminders are switched off.
func newSink(in *bufio.Reader, out io.Writer) reminder.NotificationSink {
	if noNotify {
		return nil
	}
	stdout, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(stdout.Fd())) {
		return notify.NewLogSink(logging.For("remindctl"))
	}
	return notify.NewTerminalSink(notify.DetectTerminal(in, os.Stdin, stdout))
}

// readCommands owns stdin: it asks for notification permission first and
// then handles one-letter commands until input ends.
func readCommands(ctx context.Context, eng *reminder.Engine, in *bufio.Reader, p *printer, quit func()) {
	if eng.Status().Permission == reminder.PermissionDefault {
		askPermission(ctx, eng, p)
	}
	for {
		line, err := in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "r":
			refresh(ctx, eng, p)
		case "p":
			askPermission(ctx, eng, p)
		case "q":
			quit()
			return
		}
		if err != nil {
			return
		}
	}
}

func askPermission(ctx context.Context, eng *reminder.Engine, p *printer) {
	_, err := eng.RequestPermission(ctx)
	switch {
	case err == nil, errors.Is(err, reminder.ErrPromptPending), errors.Is(err, reminder.ErrStopped):
	case errors.Is(err, reminder.ErrUnsupportedCapability):
		p.Printf("reminders cannot be shown in this terminal\n")
	default:
		p.Printf("could not ask for permission: %v\n", err)
	}
}

// refresh polls now. Fetch failures reach the screen through OnUpdate.
func refresh(ctx context.Context, eng *reminder.Engine, p *printer) {
	if err := eng.Poll(ctx); errors.Is(err, reminder.ErrPollInFlight) {
		p.Printf("refresh already running\n")
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
