package profile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/errors"
)

func rawUser(id, name string) *entity.RawUser {
	return &entity.RawUser{ID: entity.Str(id), Username: entity.Str(id), Name: entity.Str(name)}
}

func newTestService(t *testing.T, mock *api.MockRemote) *Service {
	t.Helper()
	s, err := NewService(mock, "me", time.Minute)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestGetUserUsesCache(t *testing.T) {
	mock := api.NewMockRemote()
	mock.GetUserFunc = func(ctx context.Context, userID string) (*entity.RawUser, error) {
		return rawUser(userID, "Ann"), nil
	}
	s := newTestService(t, mock)

	u, err := s.GetUser(context.Background(), "ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)

	u, err = s.GetUser(context.Background(), "ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name)
	assert.True(t, mock.AssertCallCount("GetUser", 1))
}

func TestGetUserErrorIsNotCached(t *testing.T) {
	mock := api.NewMockRemote()
	mock.GetUserFunc = func(ctx context.Context, userID string) (*entity.RawUser, error) {
		return nil, errors.NotFound("user", userID)
	}
	s := newTestService(t, mock)

	_, err := s.GetUser(context.Background(), "ghost")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	_, ok := s.Cached(context.Background(), "ghost")
	assert.False(t, ok)
}

func TestMeLoadsFollowSet(t *testing.T) {
	mock := api.NewMockRemote()
	mock.GetMeFunc = func(ctx context.Context) (*entity.RawUser, error) {
		u := rawUser("me", "Me")
		u.FollowingIDs = []string{"ann", "bob"}
		return u, nil
	}
	s := newTestService(t, mock)

	me, err := s.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ann", "bob"}, me.FollowingIDs)
	assert.True(t, s.IsFollowing("ann"))
	assert.False(t, s.IsFollowing("cat"))
}

func TestToggleFollowOptimisticThenConfirmed(t *testing.T) {
	mock := api.NewMockRemote()
	s := newTestService(t, mock)

	var during bool
	mock.ToggleFollowFunc = func(ctx context.Context, userID string) (bool, error) {
		during = s.IsFollowing(userID)
		return true, nil
	}
	var events []FollowEvent
	s.Subscribe(func(ev FollowEvent) { events = append(events, ev) })

	following, err := s.ToggleFollow(context.Background(), "ann")
	require.NoError(t, err)
	assert.True(t, following)
	assert.True(t, during, "follow state flips before the server answers")
	assert.True(t, s.IsFollowing("ann"))

	require.Len(t, events, 2)
	assert.False(t, events[0].Confirmed)
	assert.True(t, events[1].Confirmed)
	assert.Equal(t, events[0].ID, events[1].ID)
}

func TestToggleFollowRollsBack(t *testing.T) {
	mock := api.NewMockRemote()
	mock.ToggleFollowFunc = func(ctx context.Context, userID string) (bool, error) {
		return false, errors.Transient("timeout", nil)
	}
	s := newTestService(t, mock)

	following, err := s.ToggleFollow(context.Background(), "ann")
	assert.Error(t, err)
	assert.False(t, following)
	assert.False(t, s.IsFollowing("ann"))
}

func TestToggleFollowInvalidatesCachedProfile(t *testing.T) {
	mock := api.NewMockRemote()
	followers := 0
	mock.GetUserFunc = func(ctx context.Context, userID string) (*entity.RawUser, error) {
		return rawUser(userID, "Ann"), nil
	}
	mock.ToggleFollowFunc = func(ctx context.Context, userID string) (bool, error) {
		followers++
		return true, nil
	}
	s := newTestService(t, mock)

	_, err := s.GetUser(context.Background(), "ann")
	require.NoError(t, err)
	_, err = s.ToggleFollow(context.Background(), "ann")
	require.NoError(t, err)
	_, err = s.GetUser(context.Background(), "ann")
	require.NoError(t, err)

	assert.Equal(t, 1, followers)
	assert.True(t, mock.AssertCallCount("GetUser", 2))
}

func TestToggleFollowSelfIsRejected(t *testing.T) {
	mock := api.NewMockRemote()
	s := newTestService(t, mock)

	_, err := s.ToggleFollow(context.Background(), "me")
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.True(t, mock.AssertNotCalled("ToggleFollow"))
}

func TestSearchBlankQuery(t *testing.T) {
	mock := api.NewMockRemote()
	s := newTestService(t, mock)

	users, err := s.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.True(t, mock.AssertNotCalled("SearchUsers"))
}

func TestSearchSkipsMalformed(t *testing.T) {
	mock := api.NewMockRemote()
	mock.SearchUsersFunc = func(ctx context.Context, query string) ([]entity.RawUser, error) {
		return []entity.RawUser{*rawUser("ann", "Ann"), {Username: entity.Str("noid")}}, nil
	}
	s := newTestService(t, mock)

	users, err := s.Search(context.Background(), "an")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "ann", users[0].ID)
}

func TestUpdateMeValidatesAndNormalizesAvatar(t *testing.T) {
	mock := api.NewMockRemote()
	var sent api.UpdateProfileRequest
	mock.UpdateMeFunc = func(ctx context.Context, req api.UpdateProfileRequest) (*entity.RawUser, error) {
		sent = req
		u := rawUser("me", *req.Name)
		u.AvatarURL = req.AvatarURL
		return u, nil
	}
	s := newTestService(t, mock)

	long := strings.Repeat("a", 81)
	_, err := s.UpdateMe(context.Background(), ProfileUpdate{Name: &long})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	name := "  New Name "
	avatar := "  https://cdn/a.png "
	u, err := s.UpdateMe(context.Background(), ProfileUpdate{Name: &name, Avatar: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.Name)
	assert.Equal(t, "https://cdn/a.png", u.Avatar)
	assert.Nil(t, sent.Bio, "untouched fields are not sent")
}
