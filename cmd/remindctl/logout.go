package main

import (
	"context"
	"fmt"
	"time"

	"evently/internal/eventsource"
	"evently/internal/profile"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if prof.Token == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
			return nil
		}
		if prof.Server != "" {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			client := eventsource.NewClient(prof.Server, eventsource.WithToken(prof.Token))
			if err := client.Logout(ctx); err != nil {
				logrus.WithError(err).Debug("server logout failed")
			}
		}
		prof.Token = ""
		if err := profile.Save(profilePath, prof); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
