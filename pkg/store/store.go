// Package store holds the process-wide entity cache: posts in canonical
// order plus the comment lists materialized for them.
//
// All writes go through Update, which applies a batch of changes atomically
// and then notifies subscribers once with the resulting Snapshot.
package store

import (
	"slices"
	"sync"

	"github.com/zfogg/feedsync/pkg/bus"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/metrics"
)

// Snapshot is an immutable point-in-time view of the cache. Slices returned
// from it are shared and must not be modified.
type Snapshot struct {
	Version  uint64
	posts    []entity.Post
	index    map[string]int
	comments map[string][]entity.Comment
}

// Posts returns all posts in canonical order
func (s Snapshot) Posts() []entity.Post {
	return s.posts
}

// Len returns the number of cached posts
func (s Snapshot) Len() int {
	return len(s.posts)
}

// Get looks up a post by id
func (s Snapshot) Get(id string) (entity.Post, bool) {
	i, ok := s.index[id]
	if !ok {
		return entity.Post{}, false
	}
	return s.posts[i], true
}

// Comments returns the comments held for postID, newest first
func (s Snapshot) Comments(postID string) []entity.Comment {
	return s.comments[postID]
}

// IDs returns post ids in canonical order
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.posts))
	for i, p := range s.posts {
		ids[i] = p.ID
	}
	return ids
}

// Store is the entity cache
type Store struct {
	mu       sync.Mutex
	posts    map[string]entity.Post
	comments map[string][]entity.Comment
	holders  map[string]map[string]struct{}
	current  Snapshot
	changes  bus.Bus[Snapshot]
}

// New creates an empty cache
func New() *Store {
	s := &Store{
		posts:    make(map[string]entity.Post),
		comments: make(map[string][]entity.Comment),
		holders:  make(map[string]map[string]struct{}),
	}
	s.current = Snapshot{index: map[string]int{}, comments: map[string][]entity.Comment{}}
	return s
}

// Subscribe registers fn for every committed change
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	return s.changes.Subscribe(fn)
}

// Subscribers returns the number of registered listeners
func (s *Store) Subscribers() int {
	return s.changes.Len()
}

// Snapshot returns the current snapshot
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// GetByID looks up a post by id
func (s *Store) GetByID(id string) (entity.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	return p, ok
}

// Comments returns the comments held for postID
func (s *Store) Comments(postID string) []entity.Comment {
	return s.Snapshot().Comments(postID)
}

// Upsert inserts or fully replaces a post
func (s *Store) Upsert(p entity.Post) {
	s.Update(func(tx *Tx) { tx.Upsert(p) })
}

// Remove deletes a post and its comments. Absent ids are ignored.
func (s *Store) Remove(id string) {
	s.Update(func(tx *Tx) { tx.Remove(id) })
}

// Release drops every hold owner has and evicts posts nobody else holds.
// It returns the evicted ids.
func (s *Store) Release(owner string) []string {
	var evicted []string
	s.Update(func(tx *Tx) {
		evicted = tx.release(owner)
	})
	return evicted
}

// Update runs fn as one transaction. fn must only use tx and must not call
// other Store methods. Subscribers are notified once if anything changed.
func (s *Store) Update(fn func(tx *Tx)) {
	s.mu.Lock()
	tx := &Tx{s: s}
	fn(tx)
	if !tx.dirtyPosts && !tx.dirtyComments {
		s.mu.Unlock()
		return
	}
	snap := s.commit(tx)
	metrics.SetCachePosts(snap.Len())
	s.changes.Queue(snap)
	s.mu.Unlock()

	s.changes.Flush()
}

func (s *Store) commit(tx *Tx) Snapshot {
	next := Snapshot{
		Version:  s.current.Version + 1,
		posts:    s.current.posts,
		index:    s.current.index,
		comments: s.current.comments,
	}

	if tx.dirtyPosts {
		posts := make([]entity.Post, 0, len(s.posts))
		for _, p := range s.posts {
			posts = append(posts, p)
		}
		entity.SortPosts(posts)
		index := make(map[string]int, len(posts))
		for i, p := range posts {
			index[p.ID] = i
		}
		next.posts = posts
		next.index = index
	}

	if tx.dirtyComments {
		comments := make(map[string][]entity.Comment, len(s.comments))
		for k, v := range s.comments {
			comments[k] = v
		}
		next.comments = comments
	}

	s.current = next
	return next
}

// Tx is a write transaction on the store
type Tx struct {
	s             *Store
	dirtyPosts    bool
	dirtyComments bool
}

// Get reads a post as seen inside the transaction
func (tx *Tx) Get(id string) (entity.Post, bool) {
	p, ok := tx.s.posts[id]
	return p, ok
}

// Upsert inserts or fully replaces a post
func (tx *Tx) Upsert(p entity.Post) {
	tx.s.posts[p.ID] = p
	tx.dirtyPosts = true
}

// Hold records that owner displays post id
func (tx *Tx) Hold(owner, id string) {
	h, ok := tx.s.holders[id]
	if !ok {
		h = make(map[string]struct{})
		tx.s.holders[id] = h
	}
	h[owner] = struct{}{}
}

// Remove deletes a post, its comments and its holds
func (tx *Tx) Remove(id string) {
	if _, ok := tx.s.posts[id]; ok {
		delete(tx.s.posts, id)
		tx.dirtyPosts = true
	}
	if _, ok := tx.s.comments[id]; ok {
		delete(tx.s.comments, id)
		tx.dirtyComments = true
	}
	delete(tx.s.holders, id)
}

func (tx *Tx) release(owner string) []string {
	var evicted []string
	for id, h := range tx.s.holders {
		if _, ok := h[owner]; !ok {
			continue
		}
		delete(h, owner)
		if len(h) == 0 {
			evicted = append(evicted, id)
		}
	}
	slices.Sort(evicted)
	for _, id := range evicted {
		tx.Remove(id)
	}
	return evicted
}

// Comments returns the comment list held for postID
func (tx *Tx) Comments(postID string) []entity.Comment {
	return tx.s.comments[postID]
}

// SetComments replaces the comment list for postID
func (tx *Tx) SetComments(postID string, comments []entity.Comment) {
	list := slices.Clone(comments)
	slices.SortStableFunc(list, entity.CompareComments)
	tx.s.comments[postID] = list
	tx.dirtyComments = true
}

// PutComment inserts or replaces a comment by id
func (tx *Tx) PutComment(c entity.Comment) {
	list := slices.Clone(tx.s.comments[c.PostID])
	if i := slices.IndexFunc(list, func(x entity.Comment) bool { return x.ID == c.ID }); i >= 0 {
		list[i] = c
	} else {
		list = append(list, c)
	}
	slices.SortStableFunc(list, entity.CompareComments)
	tx.s.comments[c.PostID] = list
	tx.dirtyComments = true
}

// ReplaceComment swaps the comment oldID for c, keeping c's position sorted
func (tx *Tx) ReplaceComment(oldID string, c entity.Comment) {
	tx.RemoveComment(c.PostID, oldID)
	tx.PutComment(c)
}

// RemoveComment deletes a comment and reports whether it was present
func (tx *Tx) RemoveComment(postID, commentID string) bool {
	list := tx.s.comments[postID]
	i := slices.IndexFunc(list, func(x entity.Comment) bool { return x.ID == commentID })
	if i < 0 {
		return false
	}
	next := slices.Clone(list)
	tx.s.comments[postID] = slices.Delete(next, i, i+1)
	tx.dirtyComments = true
	return true
}
