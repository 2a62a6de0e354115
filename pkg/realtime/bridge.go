package realtime

import (
	"context"
	"time"

	"github.com/zfogg/feedsync/pkg/feed"
	"github.com/zfogg/feedsync/pkg/logger"
)

// Bridge forwards push events to core: new messages nudge the active
// thread's poller, post updates re-fetch cached posts, and deletions drop
// them. It returns a func that detaches the bridge.
func Bridge(c *Client, core *feed.Core, timeout time.Duration) func() {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	unsubs := []func(){
		c.On(EventMessageCreated, func(ev Event) {
			var p MessageCreated
			if err := ev.Decode(&p); err != nil || p.ThreadID == "" {
				logger.Debug("Ignoring message event", "error", err)
				return
			}
			core.Inbox().Nudge(p.ThreadID)
		}),
		c.On(EventPostUpdated, func(ev Event) {
			var p PostChanged
			if err := ev.Decode(&p); err != nil || p.PostID == "" {
				logger.Debug("Ignoring post event", "error", err)
				return
			}
			if _, ok := core.Store().GetByID(p.PostID); !ok {
				return
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				if _, err := core.RefreshPost(ctx, p.PostID); err != nil {
					logger.Warn("Post refresh after push failed", "post_id", p.PostID, "error", err)
				}
			}()
		}),
		c.On(EventPostDeleted, func(ev Event) {
			var p PostChanged
			if err := ev.Decode(&p); err != nil || p.PostID == "" {
				return
			}
			core.Store().Remove(p.PostID)
		}),
	}

	return func() {
		for _, unsubscribe := range unsubs {
			unsubscribe()
		}
	}
}
