package main

import (
	"fmt"
	"os"

	"evently/internal/eventsource"
	"evently/internal/logging"
	"evently/internal/profile"
	"evently/internal/reminder"

	"github.com/spf13/cobra"
)

var (
	profilePath string
	logLevel    string
	prof        *profile.Profile
)

var rootCmd = &cobra.Command{
	Use:   "remindctl",
	Short: "Terminal reminders for upcoming evently events",
	Long: `remindctl signs in to an evently server and shows reminders for the
events starting within the next 24 hours.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(logLevel, "text", os.Stderr)
		if profilePath == "" {
			p, err := profile.DefaultPath()
			if err != nil {
				return fmt.Errorf("locate profile: %w", err)
			}
			profilePath = p
		}
		p, err := profile.Load(profilePath)
		if err != nil {
			return err
		}
		prof = p
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "profile file (default $"+profile.EnvPath+" or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
}

// newSource picks the ICS source when a calendar is given and the server
// otherwise. The ICS source is returned separately so callers can watch it.
func newSource(ics string) (reminder.EventSource, *eventsource.ICSSource, error) {
	if ics == "" {
		ics = prof.ICS
	}
	if ics != "" {
		src := eventsource.NewICSSource(ics, nil)
		return src, src, nil
	}
	if !prof.LoggedIn() {
		return nil, nil, profile.ErrNotLoggedIn
	}
	return eventsource.NewClient(prof.Server, eventsource.WithToken(prof.Token)), nil, nil
}

// sessionUser is the name reminders are fetched for. Calendar files do not
// need a login, so it falls back to $USER.
func sessionUser() string {
	if prof.Username != "" {
		return prof.Username
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
