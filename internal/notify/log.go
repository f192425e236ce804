package notify

import (
	"context"

	"evently/internal/reminder"

	"github.com/sirupsen/logrus"
)

// LogSink writes reminders to a logger. It is always granted and is used
// when no terminal is attached, e.g. when remindctl runs under a service
// manager.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink(log *logrus.Entry) *LogSink {
	if log == nil {
		log = logrus.WithField("component", "log-sink")
	}
	return &LogSink{log: log}
}

func (s *LogSink) IsSupported() bool { return true }

func (s *LogSink) CurrentPermission() reminder.PermissionState {
	return reminder.PermissionGranted
}

func (s *LogSink) RequestPermission(context.Context) (reminder.PermissionState, error) {
	return reminder.PermissionGranted, nil
}

func (s *LogSink) Show(n reminder.Notification) (reminder.NotificationHandle, error) {
	s.log.WithFields(logrus.Fields{
		"tag":      n.Tag,
		"event_id": n.Event.ID,
		"date":     n.Event.Date,
		"time":     n.Event.Time,
	}).Info(n.Title + ": " + n.Body)
	return nopHandle{}, nil
}

type nopHandle struct{}

func (nopHandle) Close() error { return nil }
