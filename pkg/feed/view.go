package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/store"
)

// View is one mounted consumer of the cache, such as the feed list or a
// profile grid. It tracks which posts it loaded, filters snapshots down to
// them, and releases them from the cache when closed.
type View struct {
	name   string
	userID string
	core   *Core

	mu      sync.Mutex
	ids     map[string]struct{}
	page    int
	hasMore bool
	closed  bool
	unsubs  []func()
}

func newView(core *Core, name, userID string) *View {
	return &View{
		name:    name,
		userID:  userID,
		core:    core,
		ids:     make(map[string]struct{}),
		hasMore: true,
	}
}

// Name returns the view's mount name
func (v *View) Name() string {
	return v.name
}

// UserID returns the author filter, empty for the global feed
func (v *View) UserID() string {
	return v.userID
}

// Alive reports whether the view is still mounted
func (v *View) Alive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed
}

// HasMore reports whether the server has pages beyond the last one loaded
func (v *View) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasMore
}

// Page returns the highest page loaded so far
func (v *View) Page() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

func (v *View) holds(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.ids[id]
	return ok
}

func (v *View) filter(snap store.Snapshot) []entity.Post {
	v.mu.Lock()
	defer v.mu.Unlock()
	return lo.Filter(snap.Posts(), func(p entity.Post, _ int) bool {
		_, ok := v.ids[p.ID]
		return ok
	})
}

// Posts returns the view's posts in canonical order
func (v *View) Posts() []entity.Post {
	return v.filter(v.core.store.Snapshot())
}

// Subscribe calls fn with the view's posts after every cache change. It is
// never called after Close.
func (v *View) Subscribe(fn func([]entity.Post)) func() {
	unsubscribe := v.core.store.Subscribe(func(snap store.Snapshot) {
		if !v.Alive() {
			return
		}
		fn(v.filter(snap))
	})

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		unsubscribe()
		return func() {}
	}
	v.unsubs = append(v.unsubs, unsubscribe)
	v.mu.Unlock()
	return unsubscribe
}

// LoadPage fetches one page and merges it into the cache. A failed fetch
// leaves cached data untouched, and a response arriving after Close is
// dropped.
func (v *View) LoadPage(ctx context.Context, page, size int) (bool, error) {
	return v.load(ctx, page, size, true)
}

// LoadMore fetches the page after the last one loaded
func (v *View) LoadMore(ctx context.Context) (bool, error) {
	return v.LoadPage(ctx, v.Page()+1, v.core.opts.PageSize)
}

// Refresh re-fetches the first page without touching paging state, so new
// posts appear on top of what is already loaded
func (v *View) Refresh(ctx context.Context) error {
	_, err := v.load(ctx, 1, v.core.opts.PageSize, false)
	return err
}

func (v *View) load(ctx context.Context, page, size int, track bool) (bool, error) {
	if !v.Alive() {
		return false, fmt.Errorf("view %s is closed", v.name)
	}
	page, size = clampPage(page, size)

	raw, err := v.core.remote.ListPosts(ctx, page, size, v.userID)
	if err != nil {
		logger.Warn("Page load failed", "view", v.name, "page", page, "error", err)
		return v.HasMore(), err
	}
	posts := v.core.norm.Posts(raw.Items)

	// closed is checked inside the transaction so a Close racing this load
	// either releases the merged page or never sees it held
	var hasMore, dropped bool
	var merged []entity.Post
	v.core.store.Update(func(tx *store.Tx) {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.closed {
			dropped = true
			return
		}

		current := make([]entity.Post, 0, len(v.ids))
		for id := range v.ids {
			if p, ok := tx.Get(id); ok {
				current = append(current, p)
			}
		}
		merged, hasMore = MergePage(current, posts, page, size, raw.Total)
		for _, p := range merged {
			if cur, ok := tx.Get(p.ID); !ok || cur != p {
				tx.Upsert(p)
			}
			tx.Hold(v.name, p.ID)
			v.ids[p.ID] = struct{}{}
		}

		if track {
			v.page = max(v.page, page)
			v.hasMore = hasMore
		} else {
			hasMore = v.hasMore
		}
	})
	if dropped {
		logger.Debug("Dropping late page for closed view", "view", v.name, "page", page)
		return false, nil
	}

	logger.Debug("Page merged", "view", v.name, "page", page, "items", len(posts), "held", len(merged), "total", raw.Total, "has_more", hasMore)
	return hasMore, nil
}

func (v *View) adopt(p entity.Post) bool {
	if v.userID != "" && v.userID != p.Author.ID {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	v.ids[p.ID] = struct{}{}
	return true
}

// Close unsubscribes the view's listeners and evicts posts no other view
// holds. It is safe to call more than once.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	unsubs := v.unsubs
	v.unsubs = nil
	v.ids = make(map[string]struct{})
	v.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
	evicted := v.core.store.Release(v.name)
	v.core.unmount(v)
	logger.Debug("View closed", "view", v.name, "evicted", len(evicted))
}
