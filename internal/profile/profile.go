// Package profile stores the remindctl login between runs.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPath overrides the default profile location.
const EnvPath = "REMINDCTL_PROFILE"

var ErrNotLoggedIn = errors.New("not logged in, run remindctl login first")

type Profile struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
	Token    string `yaml:"token,omitempty"`
	// ICS is a calendar file or URL watched instead of the server.
	ICS string `yaml:"ics,omitempty"`
}

// DefaultPath is $REMINDCTL_PROFILE or remindctl.yaml in the user config
// directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "evently", "remindctl.yaml"), nil
}

// Load reads the profile at path. A missing file yields an empty profile.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Profile{}, nil
	}
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	p.normalize()
	return &p, nil
}

func (p *Profile) normalize() {
	p.Server = strings.TrimRight(strings.TrimSpace(p.Server), "/")
	p.Username = strings.TrimSpace(p.Username)
}

// LoggedIn reports whether the profile can talk to a server.
func (p *Profile) LoggedIn() bool {
	return p.Server != "" && p.Username != "" && p.Token != ""
}

// Save writes p atomically with mode 0600, since it holds a token.
func Save(path string, p *Profile) error {
	if path == "" {
		return errors.New("profile path is empty")
	}
	if p == nil {
		return errors.New("profile is nil")
	}
	p.normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".remindctl-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
