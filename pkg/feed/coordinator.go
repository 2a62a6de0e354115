package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/bus"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/errors"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/metrics"
	"github.com/zfogg/feedsync/pkg/store"
	"github.com/zfogg/feedsync/pkg/validation"
)

// MutationKind names a user action that changes cached entities
type MutationKind string

const (
	KindLike          MutationKind = "like"
	KindUnlike        MutationKind = "unlike"
	KindEditPost      MutationKind = "edit_post"
	KindDeletePost    MutationKind = "delete_post"
	KindCreateComment MutationKind = "create_comment"
	KindUpdateComment MutationKind = "update_comment"
	KindDeleteComment MutationKind = "delete_comment"
)

// MutationState is a mutation's position in its lifecycle. Optimistic
// mutations go Idle, Optimistic, then Confirmed or RolledBack. The others go
// straight from Idle to Confirmed or Failed.
type MutationState string

const (
	StateIdle       MutationState = "idle"
	StateOptimistic MutationState = "optimistic"
	StateConfirmed  MutationState = "confirmed"
	StateRolledBack MutationState = "rolled_back"
	StateFailed     MutationState = "failed"
)

// MutationEvent reports a state transition
type MutationEvent struct {
	ID        string
	Kind      MutationKind
	PostID    string
	CommentID string
	State     MutationState
	Err       error
}

// Coordinator applies mutations to the cache and the server
type Coordinator struct {
	store          *store.Store
	remote         api.Remote
	norm           entity.Normalizer
	viewer         entity.Author
	reconcileLikes bool
	events         bus.Bus[MutationEvent]

	mu       sync.Mutex
	inflight map[string]int
}

// NewCoordinator creates a coordinator writing to s
func NewCoordinator(s *store.Store, remote api.Remote, viewer entity.Author, reconcileLikes bool) *Coordinator {
	return &Coordinator{
		store:          s,
		remote:         remote,
		norm:           entity.NewNormalizer(viewer.ID),
		viewer:         viewer,
		reconcileLikes: reconcileLikes,
		inflight:       make(map[string]int),
	}
}

// Events returns the bus of mutation state transitions
func (c *Coordinator) Events() *bus.Bus[MutationEvent] {
	return &c.events
}

func (c *Coordinator) emit(ev MutationEvent) {
	logger.Debug("Mutation", "id", ev.ID, "kind", ev.Kind, "post_id", ev.PostID, "state", ev.State)
	switch ev.State {
	case StateConfirmed, StateRolledBack, StateFailed:
		metrics.RecordMutation(string(ev.Kind), string(ev.State))
	}
	if ev.State == StateRolledBack {
		logger.Warn("Mutation rolled back", "id", ev.ID, "kind", ev.Kind, "post_id", ev.PostID, "error", ev.Err)
	}
	c.events.Publish(ev)
}

func (c *Coordinator) begin(postID string) {
	c.mu.Lock()
	c.inflight[postID]++
	c.mu.Unlock()
}

// end returns how many other mutations on postID are still in flight
func (c *Coordinator) end(postID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[postID]--
	n := c.inflight[postID]
	if n <= 0 {
		delete(c.inflight, postID)
		return 0
	}
	return n
}

// Like marks postID as liked by the viewer
func (c *Coordinator) Like(ctx context.Context, postID string) error {
	return c.setLiked(ctx, postID, true)
}

// Unlike removes the viewer's like from postID
func (c *Coordinator) Unlike(ctx context.Context, postID string) error {
	return c.setLiked(ctx, postID, false)
}

// ToggleLike flips the viewer's like on postID
func (c *Coordinator) ToggleLike(ctx context.Context, postID string) error {
	p, ok := c.store.GetByID(postID)
	if !ok {
		return errors.NotFound("post", postID)
	}
	return c.setLiked(ctx, postID, !p.LikedByMe)
}

func (c *Coordinator) setLiked(ctx context.Context, postID string, target bool) error {
	kind := KindUnlike
	delta := -1
	if target {
		kind = KindLike
		delta = 1
	}

	var before, optimistic entity.Post
	var found, changed bool
	c.store.Update(func(tx *store.Tx) {
		p, ok := tx.Get(postID)
		if !ok {
			return
		}
		found = true
		if p.LikedByMe == target {
			return
		}
		before = p
		optimistic = p
		optimistic.LikedByMe = target
		optimistic.LikesCount = max(0, p.LikesCount+delta)
		tx.Upsert(optimistic)
		changed = true
	})
	if !found {
		return errors.NotFound("post", postID)
	}
	if !changed {
		return nil
	}

	ev := MutationEvent{ID: uuid.NewString(), Kind: kind, PostID: postID}
	ev.State = StateOptimistic
	c.emit(ev)

	c.begin(postID)
	state, err := c.remote.SetLike(ctx, postID, target)
	others := c.end(postID)

	if err != nil {
		c.store.Update(func(tx *store.Tx) {
			cur, ok := tx.Get(postID)
			if !ok {
				return
			}
			if cur == optimistic {
				tx.Upsert(before)
				return
			}
			// a later change landed on top; undo only our delta if it still applies
			if cur.LikedByMe == target {
				cur.LikedByMe = !target
				cur.LikesCount = max(0, cur.LikesCount-delta)
				tx.Upsert(cur)
			}
		})
		if errors.IsKind(err, errors.KindNotFound) {
			c.store.Remove(postID)
		}
		ev.State, ev.Err = StateRolledBack, err
		c.emit(ev)
		return err
	}

	if c.reconcileLikes && others == 0 && state != nil {
		c.store.Update(func(tx *store.Tx) {
			cur, ok := tx.Get(postID)
			if !ok || cur.LikedByMe != state.LikedByMe || cur.LikesCount == state.LikesCount {
				return
			}
			cur.LikesCount = max(0, state.LikesCount)
			tx.Upsert(cur)
		})
	}

	ev.State = StateConfirmed
	c.emit(ev)
	return nil
}

// UpdatePost edits a post's text. Nothing is shown until the server confirms.
func (c *Coordinator) UpdatePost(ctx context.Context, postID, text string) (entity.Post, error) {
	text, err := validation.PostEdit(text)
	if err != nil {
		return entity.Post{}, err
	}
	if p, ok := c.store.GetByID(postID); ok && !p.IsMine {
		return entity.Post{}, errors.Forbidden("only the author can edit this post")
	}

	ev := MutationEvent{ID: uuid.NewString(), Kind: KindEditPost, PostID: postID}

	raw, err := c.remote.UpdatePost(ctx, postID, text)
	if err == nil {
		var post entity.Post
		post, err = c.norm.Post(*raw)
		if err == nil {
			c.store.Upsert(post)
			ev.State = StateConfirmed
			c.emit(ev)
			return post, nil
		}
	}

	if errors.IsKind(err, errors.KindNotFound) {
		c.store.Remove(postID)
	}
	ev.State, ev.Err = StateFailed, err
	c.emit(ev)
	return entity.Post{}, err
}

// DeletePost deletes one of the viewer's posts. A post already gone on the
// server counts as deleted.
func (c *Coordinator) DeletePost(ctx context.Context, postID string) error {
	if p, ok := c.store.GetByID(postID); ok && !p.IsMine {
		return errors.Forbidden("only the author can delete this post")
	}

	ev := MutationEvent{ID: uuid.NewString(), Kind: KindDeletePost, PostID: postID}

	err := c.remote.DeletePost(ctx, postID)
	if err != nil && !errors.IsKind(err, errors.KindNotFound) {
		ev.State, ev.Err = StateFailed, err
		c.emit(ev)
		return err
	}

	c.store.Remove(postID)
	ev.State = StateConfirmed
	c.emit(ev)
	return nil
}

// CreateComment shows a provisional comment immediately and swaps in the
// server's copy once it is confirmed
func (c *Coordinator) CreateComment(ctx context.Context, postID, text string) (entity.Comment, error) {
	text, err := validation.Comment(text)
	if err != nil {
		return entity.Comment{}, err
	}

	provisional := entity.Comment{
		ID:        "tmp_" + uuid.NewString(),
		PostID:    postID,
		Author:    c.viewer,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		IsMine:    true,
		Pending:   true,
	}

	var before, optimistic entity.Post
	var counted bool
	c.store.Update(func(tx *store.Tx) {
		tx.PutComment(provisional)
		if p, ok := tx.Get(postID); ok {
			before = p
			optimistic = p
			optimistic.CommentsCount++
			tx.Upsert(optimistic)
			counted = true
		}
	})

	ev := MutationEvent{ID: uuid.NewString(), Kind: KindCreateComment, PostID: postID, CommentID: provisional.ID}
	ev.State = StateOptimistic
	c.emit(ev)

	raw, err := c.remote.CreateComment(ctx, postID, text)
	var created entity.Comment
	if err == nil {
		created, err = c.norm.Comment(*raw, postID)
	}

	if err != nil {
		c.store.Update(func(tx *store.Tx) {
			tx.RemoveComment(postID, provisional.ID)
			cur, ok := tx.Get(postID)
			if !ok || !counted {
				return
			}
			if cur == optimistic {
				tx.Upsert(before)
				return
			}
			// the post was replaced meanwhile; undo our increment only if it still shows
			if cur.CommentsCount > before.CommentsCount {
				cur.CommentsCount--
				tx.Upsert(cur)
			}
		})
		if errors.IsKind(err, errors.KindNotFound) {
			c.store.Remove(postID)
		}
		ev.State, ev.Err = StateRolledBack, err
		c.emit(ev)
		return entity.Comment{}, err
	}

	c.store.Update(func(tx *store.Tx) {
		tx.ReplaceComment(provisional.ID, created)
	})
	ev.CommentID = created.ID
	ev.State = StateConfirmed
	c.emit(ev)
	return created, nil
}

// UpdateComment edits a comment once the server accepts it
func (c *Coordinator) UpdateComment(ctx context.Context, postID, commentID, text string) (entity.Comment, error) {
	text, err := validation.Comment(text)
	if err != nil {
		return entity.Comment{}, err
	}

	ev := MutationEvent{ID: uuid.NewString(), Kind: KindUpdateComment, PostID: postID, CommentID: commentID}

	raw, err := c.remote.UpdateComment(ctx, postID, commentID, text)
	var updated entity.Comment
	if err == nil {
		updated, err = c.norm.Comment(*raw, postID)
	}
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			c.store.Update(func(tx *store.Tx) { tx.RemoveComment(postID, commentID) })
		}
		ev.State, ev.Err = StateFailed, err
		c.emit(ev)
		return entity.Comment{}, err
	}

	c.store.Update(func(tx *store.Tx) { tx.PutComment(updated) })
	ev.State = StateConfirmed
	c.emit(ev)
	return updated, nil
}

// DeleteComment removes a comment once the server accepts it
func (c *Coordinator) DeleteComment(ctx context.Context, postID, commentID string) error {
	ev := MutationEvent{ID: uuid.NewString(), Kind: KindDeleteComment, PostID: postID, CommentID: commentID}

	err := c.remote.DeleteComment(ctx, postID, commentID)
	gone := errors.IsKind(err, errors.KindNotFound)
	if err != nil && !gone {
		ev.State, ev.Err = StateFailed, err
		c.emit(ev)
		return err
	}

	c.store.Update(func(tx *store.Tx) {
		removed := tx.RemoveComment(postID, commentID)
		if gone && !removed {
			return
		}
		if p, ok := tx.Get(postID); ok && p.CommentsCount > 0 {
			p.CommentsCount--
			tx.Upsert(p)
		}
	})
	ev.State = StateConfirmed
	c.emit(ev)
	return nil
}
