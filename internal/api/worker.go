package api

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
)

// RunWorkers runs the periodic server jobs once immediately and then every
// interval until ctx is cancelled.
func RunWorkers(ctx context.Context, db *sql.DB, mailer *Mailer, interval time.Duration) {
	log := logrus.WithField("component", "worker")
	run := func() {
		now := time.Now()
		if _, err := ProcessEventReminders(db, mailer, now); err != nil {
			log.WithError(err).Error("event reminder worker error")
		}
		if n, err := PurgeRefreshTokens(db, now); err != nil {
			log.WithError(err).Error("refresh token purge error")
		} else if n > 0 {
			log.WithField("tokens", n).Debug("purged stale refresh tokens")
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
