package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger. format is "json" or "text".
// An unknown level falls back to info.
func Setup(level, format string, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	logrus.SetOutput(out)

	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
