package main

import (
	"context"
	"fmt"
	"time"

	"evently/internal/reminder"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var upcomingICS string

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List the events starting within the next 24 hours",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _, err := newSource(upcomingICS)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		now := time.Now()
		w := reminder.NewWindow(now, reminder.DefaultWindow)
		events, err := source.FetchUpcoming(ctx, sessionUser(), w)
		if err != nil {
			return fmt.Errorf("could not load events: %s", describeError(err))
		}
		in, bad := w.Filter(events, time.Local)
		for _, ev := range bad {
			logrus.WithField("event_id", ev.ID).Warn("skipping event with unreadable date or time")
		}

		p := &printer{out: cmd.OutOrStdout()}
		p.Events(in, now)
		return nil
	},
}

func init() {
	upcomingCmd.Flags().StringVar(&upcomingICS, "ics", "", "read events from an iCalendar file or URL instead of the server")
	rootCmd.AddCommand(upcomingCmd)
}
