package web

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/pilipi-dev/pilipi/internal/session"
)

// refreshTimeout bounds a single scheduled profile refresh
const refreshTimeout = 30 * time.Second

// Refresher re-fetches the profile on a cron schedule so that a session
// expired on the server is noticed (and cleared) without user action.
type Refresher struct {
	cron    *cron.Cron
	manager *session.Manager
	logger  zerolog.Logger
}

// NewRefresher parses schedule (standard 5-field cron or a descriptor such
// as "@every 5m"). An empty schedule disables refreshing.
func NewRefresher(m *session.Manager, schedule string, logger zerolog.Logger) (*Refresher, error) {
	r := &Refresher{
		cron:    cron.New(),
		manager: m,
		logger:  logger,
	}
	if schedule == "" {
		return r, nil
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins running the schedule in the background
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule; the returned context is done once a running
// refresh has finished.
func (r *Refresher) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Refresher) run() {
	if !r.manager.Snapshot().IsAuthenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	res := r.manager.Refresh(ctx)
	if !res.Success {
		r.logger.Info().Str("message", res.Message).Msg("scheduled profile refresh failed")
		return
	}
	r.logger.Debug().Msg("profile refreshed")
}
