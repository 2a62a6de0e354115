// Package feed is the client-side consistency layer for posts and comments.
//
// A Core owns one entity cache shared by every mounted View. Page loads merge
// into the cache, mutations go through the Coordinator, and each View sees
// the cache filtered down to the posts it loaded.
package feed

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/bus"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/errors"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/messages"
	"github.com/zfogg/feedsync/pkg/store"
	"github.com/zfogg/feedsync/pkg/validation"
)

// Core is the facade the view layer talks to
type Core struct {
	store  *store.Store
	remote api.Remote
	norm   entity.Normalizer
	opts   Options
	coord  *Coordinator
	inbox  *messages.Inbox

	mu    sync.Mutex
	views map[string]*View
	feed  *View
}

// NewCore creates a core with an empty cache and mounts the global feed view
func NewCore(remote api.Remote, opts Options) *Core {
	opts = opts.withDefaults()
	opts.Messages.ViewerID = opts.ViewerID

	s := store.New()
	viewer := entity.Author{ID: opts.ViewerID, Username: opts.Viewer}
	c := &Core{
		store:  s,
		remote: remote,
		norm:   entity.NewNormalizer(opts.ViewerID),
		opts:   opts,
		coord:  NewCoordinator(s, remote, viewer, opts.ReconcileLikes),
		inbox:  messages.NewInbox(remote, opts.Messages),
		views:  make(map[string]*View),
	}
	c.feed = c.Mount(FeedView, "")
	return c
}

// Store returns the shared entity cache
func (c *Core) Store() *store.Store {
	return c.store
}

// Coordinator returns the mutation coordinator
func (c *Core) Coordinator() *Coordinator {
	return c.coord
}

// Inbox returns the direct message inbox
func (c *Core) Inbox() *messages.Inbox {
	return c.inbox
}

// Feed returns the global feed view
func (c *Core) Feed() *View {
	return c.feed
}

// Events returns the bus of mutation state transitions
func (c *Core) Events() *bus.Bus[MutationEvent] {
	return c.coord.Events()
}

// Subscribe calls fn with every committed cache snapshot
func (c *Core) Subscribe(fn func(store.Snapshot)) func() {
	return c.store.Subscribe(fn)
}

// GetFeedSnapshot returns the feed view's posts in canonical order
func (c *Core) GetFeedSnapshot() []entity.Post {
	return c.feed.Posts()
}

// LoadPage loads one page of the global feed
func (c *Core) LoadPage(ctx context.Context, page, size int) (bool, error) {
	return c.feed.LoadPage(ctx, page, size)
}

// LoadMore loads the feed page after the last one loaded
func (c *Core) LoadMore(ctx context.Context) (bool, error) {
	return c.feed.LoadMore(ctx)
}

// HasMore reports whether the feed has unloaded pages
func (c *Core) HasMore() bool {
	return c.feed.HasMore()
}

// Like marks a post liked by the viewer
func (c *Core) Like(ctx context.Context, postID string) error {
	return c.coord.Like(ctx, postID)
}

// Unlike removes the viewer's like from a post
func (c *Core) Unlike(ctx context.Context, postID string) error {
	return c.coord.Unlike(ctx, postID)
}

// ToggleLike flips the viewer's like on a post
func (c *Core) ToggleLike(ctx context.Context, postID string) error {
	return c.coord.ToggleLike(ctx, postID)
}

// UpdatePost edits a post's caption
func (c *Core) UpdatePost(ctx context.Context, postID, text string) (entity.Post, error) {
	return c.coord.UpdatePost(ctx, postID, text)
}

// DeletePost deletes a post and drops it from the cache
func (c *Core) DeletePost(ctx context.Context, postID string) error {
	return c.coord.DeletePost(ctx, postID)
}

// CreateComment adds a comment, shown as pending until the server confirms it
func (c *Core) CreateComment(ctx context.Context, postID, text string) (entity.Comment, error) {
	return c.coord.CreateComment(ctx, postID, text)
}

// UpdateComment edits one of the viewer's comments
func (c *Core) UpdateComment(ctx context.Context, postID, commentID, text string) (entity.Comment, error) {
	return c.coord.UpdateComment(ctx, postID, commentID, text)
}

// DeleteComment deletes one of the viewer's comments
func (c *Core) DeleteComment(ctx context.Context, postID, commentID string) error {
	return c.coord.DeleteComment(ctx, postID, commentID)
}

// CreatePost publishes a new post and adds it to every mounted view it
// belongs to
func (c *Core) CreatePost(ctx context.Context, imageURL, text string) (entity.Post, error) {
	imageURL, text, err := validation.PostCreate(imageURL, text)
	if err != nil {
		return entity.Post{}, err
	}

	raw, err := c.remote.CreatePost(ctx, api.CreatePostRequest{ImageURL: imageURL, Text: text})
	if err != nil {
		return entity.Post{}, err
	}
	post, err := c.norm.Post(*raw)
	if err != nil {
		return entity.Post{}, err
	}

	views := c.mounted()
	var owners []string
	c.store.Update(func(tx *store.Tx) {
		tx.Upsert(post)
		owners = lo.FilterMap(views, func(v *View, _ int) (string, bool) {
			return v.name, v.adopt(post)
		})
		for _, owner := range owners {
			tx.Hold(owner, post.ID)
		}
	})

	logger.Debug("Post created", "post_id", post.ID, "views", owners)
	return post, nil
}

// RefreshPost re-fetches one post. A post the server no longer has is removed.
func (c *Core) RefreshPost(ctx context.Context, postID string) (entity.Post, error) {
	raw, err := c.remote.GetPost(ctx, postID)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			c.store.Remove(postID)
		}
		return entity.Post{}, err
	}
	post, err := c.norm.Post(*raw)
	if err != nil {
		return entity.Post{}, err
	}
	c.store.Upsert(post)
	return post, nil
}

// LoadComments fetches one page of a post's comments, newest first, and
// reconciles the post's comment counter against what was loaded. A load from
// offset 0 replaces the held list but keeps comments still pending.
func (c *Core) LoadComments(ctx context.Context, postID string, limit, offset int) ([]entity.Comment, error) {
	if limit <= 0 {
		limit = c.opts.CommentLimit
	}
	limit, offset = clampCommentLimit(limit, offset)

	raw, err := c.remote.ListComments(ctx, postID, limit, offset)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			c.store.Remove(postID)
		}
		logger.Warn("Comment load failed", "post_id", postID, "error", err)
		return c.store.Comments(postID), err
	}
	page := c.norm.Comments(raw, postID)
	complete := offset == 0 && len(raw) < limit

	c.store.Update(func(tx *store.Tx) {
		held := len(tx.Comments(postID))
		if offset == 0 {
			pending := lo.Filter(tx.Comments(postID), func(cm entity.Comment, _ int) bool { return cm.Pending })
			tx.SetComments(postID, append(page, pending...))
			held = len(page) + len(pending)
		} else {
			for _, cm := range page {
				tx.PutComment(cm)
			}
		}

		p, ok := tx.Get(postID)
		if !ok {
			return
		}
		count := max(p.CommentsCount, offset+len(page), held)
		if complete {
			count = held
		}
		if count != p.CommentsCount {
			p.CommentsCount = count
			tx.Upsert(p)
		}
	})

	logger.Debug("Comments loaded", "post_id", postID, "offset", offset, "items", len(page), "complete", complete)
	return c.store.Comments(postID), nil
}

// Comments returns the comments held for postID, newest first
func (c *Core) Comments(postID string) []entity.Comment {
	return c.store.Comments(postID)
}

// Mount returns the live view with name, creating it if needed. userID
// restricts the view to one author's posts.
func (c *Core) Mount(name, userID string) *View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[name]; ok && v.Alive() {
		return v
	}
	v := newView(c, name, userID)
	c.views[name] = v
	logger.Debug("View mounted", "view", name, "user_id", userID)
	return v
}

// View returns the live view with name
func (c *Core) View(name string) (*View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[name]
	return v, ok
}

func (c *Core) mounted() []*View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Values(c.views)
}

func (c *Core) unmount(v *View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.views[v.name] == v {
		delete(c.views, v.name)
	}
}

// SelectThread starts polling threadID and stops polling the previous
// thread. An empty id stops polling.
func (c *Core) SelectThread(threadID string) error {
	if threadID == "" {
		c.inbox.Deselect()
		return nil
	}
	_, err := c.inbox.Select(threadID)
	return err
}

// SendMessage sends text to threadID
func (c *Core) SendMessage(ctx context.Context, threadID, text string) (entity.Message, error) {
	return c.inbox.Send(ctx, threadID, text)
}

// Close unmounts every view and stops polling
func (c *Core) Close() {
	for _, v := range c.mounted() {
		v.Close()
	}
	c.inbox.Close()
	logger.Debug("Core closed", "cached_posts", c.store.Snapshot().Len())
}
