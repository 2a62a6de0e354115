package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zfogg/feedsync/pkg/logger"
)

// Refresher re-fetches the first page of a view on a cron schedule so new
// posts show up without discarding pages already loaded
type Refresher struct {
	view    *View
	timeout time.Duration
	cron    *cron.Cron
}

// NewRefresher schedules refreshes of view. schedule accepts standard cron
// expressions and descriptors such as "@every 30s".
func NewRefresher(view *View, schedule string, timeout time.Duration) (*Refresher, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &Refresher{
		view:    view,
		timeout: timeout,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins running the schedule in the background
func (r *Refresher) Start() {
	r.cron.Start()
	logger.Debug("Feed refresher started", "view", r.view.Name())
}

// Stop halts the schedule and waits for a running refresh to finish
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	logger.Debug("Feed refresher stopped", "view", r.view.Name())
}

func (r *Refresher) tick() {
	if !r.view.Alive() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.view.Refresh(ctx); err != nil {
		logger.Warn("Feed refresh failed", "view", r.view.Name(), "error", err)
	}
}
