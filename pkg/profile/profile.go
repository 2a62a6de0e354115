// Package profile serves user profiles, search and follows. Profiles fetched
// by id are kept in a short-lived in-memory cache.
package profile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/google/uuid"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/bus"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/errors"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/metrics"
	"github.com/zfogg/feedsync/pkg/validation"
)

const DefaultCacheTTL = time.Minute

// FollowEvent reports a change of the viewer's follow state for a user
type FollowEvent struct {
	ID        string
	UserID    string
	Following bool
	Confirmed bool
	Err       error
}

// Service wraps the user endpoints with caching and optimistic follows
type Service struct {
	remote   api.Remote
	norm     entity.Normalizer
	viewerID string
	ttl      time.Duration

	ristretto *ristretto.Cache
	cache     *marshaler.Marshaler

	mu        sync.Mutex
	me        *entity.User
	following map[string]bool
	changes   bus.Bus[FollowEvent]
}

// NewService creates a service for viewerID. A ttl of zero uses the default.
func NewService(remote api.Remote, viewerID string, ttl time.Duration) (*Service, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}

	manager := cache.New[any](ristretto_store.NewRistretto(rc))
	return &Service{
		remote:    remote,
		norm:      entity.NewNormalizer(viewerID),
		viewerID:  viewerID,
		ttl:       ttl,
		ristretto: rc,
		cache:     marshaler.New(manager),
		following: make(map[string]bool),
	}, nil
}

// NewServiceFromConfig reads the cache TTL from configuration
func NewServiceFromConfig(remote api.Remote, viewerID string) (*Service, error) {
	return NewService(remote, viewerID, config.GetSeconds("profile.cache_ttl"))
}

func userKey(id string) string {
	return "user#" + id
}

func (s *Service) remember(ctx context.Context, u entity.User) {
	err := s.cache.Set(ctx, userKey(u.ID), u,
		store.WithExpiration(s.ttl),
		store.WithCost(1),
		store.WithTags([]string{"users", userKey(u.ID)}),
	)
	if err != nil {
		logger.Debug("Profile not cached", "user_id", u.ID, "error", err)
		return
	}
	s.ristretto.Wait()
}

func (s *Service) forget(ctx context.Context, ids ...string) {
	for _, id := range ids {
		_ = s.cache.Delete(ctx, userKey(id))
	}
	s.ristretto.Wait()
}

// Cached returns a cached profile without touching the network
func (s *Service) Cached(ctx context.Context, userID string) (entity.User, bool) {
	v, err := s.cache.Get(ctx, userKey(userID), new(entity.User))
	if err != nil {
		return entity.User{}, false
	}
	u, ok := v.(*entity.User)
	if !ok || u == nil {
		return entity.User{}, false
	}
	return *u, true
}

// GetUser returns a profile, from the cache when it is fresh
func (s *Service) GetUser(ctx context.Context, userID string) (entity.User, error) {
	if u, ok := s.Cached(ctx, userID); ok {
		logger.Debug("Profile cache hit", "user_id", userID)
		return u, nil
	}

	raw, err := s.remote.GetUser(ctx, userID)
	if err != nil {
		return entity.User{}, err
	}
	u, err := s.norm.User(*raw)
	if err != nil {
		return entity.User{}, err
	}
	s.remember(ctx, u)
	return u, nil
}

// Me fetches the viewer's own profile and refreshes the follow set
func (s *Service) Me(ctx context.Context) (entity.User, error) {
	raw, err := s.remote.GetMe(ctx)
	if err != nil {
		return entity.User{}, err
	}
	u, err := s.norm.User(*raw)
	if err != nil {
		return entity.User{}, err
	}

	s.mu.Lock()
	s.me = &u
	s.following = make(map[string]bool, len(u.FollowingIDs))
	for _, id := range u.FollowingIDs {
		s.following[id] = true
	}
	s.mu.Unlock()

	s.remember(ctx, u)
	return u, nil
}

// ProfileUpdate holds the editable fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name   *string
	Bio    *string
	Avatar *string
}

// UpdateMe patches the viewer's profile
func (s *Service) UpdateMe(ctx context.Context, upd ProfileUpdate) (entity.User, error) {
	name, bio, err := validation.Profile(deref(upd.Name), deref(upd.Bio))
	if err != nil {
		return entity.User{}, err
	}
	req := api.UpdateProfileRequest{}
	if upd.Name != nil {
		req.Name = &name
	}
	if upd.Bio != nil {
		req.Bio = &bio
	}
	if upd.Avatar != nil {
		avatar := entity.NormalizeAvatar(*upd.Avatar)
		req.AvatarURL = &avatar
	}

	raw, err := s.remote.UpdateMe(ctx, req)
	if err != nil {
		return entity.User{}, err
	}
	u, err := s.norm.User(*raw)
	if err != nil {
		return entity.User{}, err
	}

	s.mu.Lock()
	if s.me != nil && len(u.FollowingIDs) == 0 {
		u.FollowingIDs = s.me.FollowingIDs
	}
	s.me = &u
	s.mu.Unlock()

	s.forget(ctx, u.ID)
	return u, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Search finds users by name or username. A blank query returns nothing
// without calling the server.
func (s *Service) Search(ctx context.Context, query string) ([]entity.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []entity.User{}, nil
	}
	raw, err := s.remote.SearchUsers(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.norm.Users(raw), nil
}

// IsFollowing reports the viewer's current follow state for userID,
// including unconfirmed changes
func (s *Service) IsFollowing(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.following[userID]
}

// Subscribe calls fn for every follow state change
func (s *Service) Subscribe(fn func(FollowEvent)) func() {
	return s.changes.Subscribe(fn)
}

// ToggleFollow flips the follow state immediately and confirms it with the
// server. On failure the previous state is restored.
func (s *Service) ToggleFollow(ctx context.Context, userID string) (bool, error) {
	if userID == s.viewerID {
		return false, errors.Validation("userId", "you cannot follow yourself")
	}

	s.mu.Lock()
	before := s.following[userID]
	s.following[userID] = !before
	ev := FollowEvent{ID: uuid.NewString(), UserID: userID, Following: !before}
	s.changes.Queue(ev)
	s.mu.Unlock()
	s.changes.Flush()

	following, err := s.remote.ToggleFollow(ctx, userID)

	s.mu.Lock()
	if err != nil {
		s.following[userID] = before
		ev.Following, ev.Err = before, err
	} else {
		s.following[userID] = following
		ev.Following, ev.Confirmed = following, true
	}
	s.changes.Queue(ev)
	s.mu.Unlock()
	s.changes.Flush()

	if err != nil {
		metrics.RecordMutation("follow", "rolled_back")
		logger.Warn("Follow toggle rolled back", "user_id", userID, "error", err)
		return before, err
	}

	metrics.RecordMutation("follow", "confirmed")
	s.forget(ctx, userID, s.viewerID)
	return following, nil
}

// Close releases the cache
func (s *Service) Close() {
	s.ristretto.Close()
}
