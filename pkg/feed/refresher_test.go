package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/feedsync/pkg/api"
)

func TestRefresherRejectsBadSchedule(t *testing.T) {
	c := newTestCore(t, api.NewMockRemote())
	_, err := NewRefresher(c.Feed(), "every now and then", time.Second)
	assert.Error(t, err)
}

func TestRefresherTickAddsNewPostsOnTop(t *testing.T) {
	mock := api.NewMockRemote()
	mock.ListPostsFunc = pagedPosts(6, func(int) string { return "u1" })
	c := newTestCore(t, mock)
	for page := 1; page <= 2; page++ {
		_, err := c.LoadPage(context.Background(), page, 2)
		require.NoError(t, err)
	}

	mock.ListPostsFunc = pagedPosts(7, func(int) string { return "u1" })
	r, err := NewRefresher(c.Feed(), "@every 1h", time.Second)
	require.NoError(t, err)
	r.tick()

	assert.Equal(t, []string{"p7", "p6", "p5", "p4", "p3"}, postIDs(c.GetFeedSnapshot()))
	assert.Equal(t, 2, c.Feed().Page(), "refresh does not advance paging")
	assert.True(t, c.HasMore())
}

func TestRefresherSkipsClosedView(t *testing.T) {
	mock := api.NewMockRemote()
	c := newTestCore(t, mock)
	v := c.Mount("profile:u1", "u1")
	r, err := NewRefresher(v, "@every 1h", time.Second)
	require.NoError(t, err)

	v.Close()
	r.tick()
	assert.True(t, mock.AssertNotCalled("ListPosts"))
}

func TestRefresherStartStop(t *testing.T) {
	c := newTestCore(t, api.NewMockRemote())
	r, err := NewRefresher(c.Feed(), "@every 1h", time.Second)
	require.NoError(t, err)

	r.Start()
	r.Stop()
}
