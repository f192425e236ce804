package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"evently/internal/eventsource"
	"evently/internal/profile"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginServer   string
	loginUsername string
	passwordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to an evently server and store the session",
	RunE:  runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "", "server URL (default from profile, else http://localhost:3000)")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "username (default from profile)")
	loginCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	server := firstNonEmpty(loginServer, prof.Server, "http://localhost:3000")
	username := firstNonEmpty(loginUsername, prof.Username)
	if username == "" {
		return errors.New("--username is required")
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	client := eventsource.NewClient(server)
	token, err := client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	prof.Server = server
	prof.Username = username
	prof.Token = token
	if err := profile.Save(profilePath, prof); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", server, username)
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" && err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return line, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal, use --password-stdin")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
