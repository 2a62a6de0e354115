package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/feedsync/pkg/client"
	"github.com/zfogg/feedsync/pkg/errors"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

func serve(t *testing.T, status int, body string) (*recorded, func()) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.body = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	client.Configure(srv.URL+"/api", 2*time.Second)
	return rec, srv.Close
}

func TestListPosts(t *testing.T) {
	rec, done := serve(t, 200, `{"items":[{"id":"p1","author":{"id":"u1","username":"ann"},"createdAt":"2024-01-01T00:00:00Z","likesCount":2}],"total":25}`)
	defer done()

	page, err := ListPosts(context.Background(), 2, 10, "u1")
	require.NoError(t, err)

	assert.Equal(t, "GET", rec.method)
	assert.Equal(t, "/api/posts", rec.path)
	assert.Contains(t, rec.query, "page=2")
	assert.Contains(t, rec.query, "limit=10")
	assert.Contains(t, rec.query, "userId=u1")
	assert.Equal(t, 25, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "p1", *page.Items[0].ID)
	assert.Equal(t, 2, *page.Items[0].LikesCount)
	assert.Nil(t, page.Items[0].Text, "absent fields stay nil")
}

func TestSetLikeSendsTargetState(t *testing.T) {
	rec, done := serve(t, 200, `{"likesCount":4,"likedByMe":true}`)
	defer done()

	state, err := SetLike(context.Background(), "p1", true)
	require.NoError(t, err)

	assert.Equal(t, "POST", rec.method)
	assert.Equal(t, "/api/posts/p1/like", rec.path)
	assert.JSONEq(t, `{"liked":true}`, rec.body)
	assert.Equal(t, 4, state.LikesCount)
	assert.True(t, state.LikedByMe)
}

func TestCommentRoutes(t *testing.T) {
	rec, done := serve(t, 200, `{"id":"c1","postId":"p1","author":{"id":"u1"},"text":"edited"}`)
	defer done()

	c, err := UpdateComment(context.Background(), "p1", "c1", "edited")
	require.NoError(t, err)
	assert.Equal(t, "PATCH", rec.method)
	assert.Equal(t, "/api/posts/p1/comments/c1", rec.path)
	assert.Equal(t, "edited", *c.Text)
}

func TestDeletePostNoContent(t *testing.T) {
	rec, done := serve(t, 204, ``)
	defer done()

	require.NoError(t, DeletePost(context.Background(), "p9"))
	assert.Equal(t, "DELETE", rec.method)
	assert.Equal(t, "/api/posts/p9", rec.path)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   errors.Kind
	}{
		{400, errors.KindValidation},
		{403, errors.KindForbidden},
		{404, errors.KindNotFound},
		{500, errors.KindTransient},
	}

	for _, tt := range tests {
		_, done := serve(t, tt.status, `{"message":"server said no"}`)
		_, err := GetPost(context.Background(), "p1")
		done()

		require.Error(t, err)
		assert.True(t, errors.IsKind(err, tt.kind), "status %d", tt.status)
		assert.Contains(t, err.Error(), "server said no")
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	_, done := serve(t, 200, `{}`)
	done()

	_, err := ListThreads(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestChatsAndUsers(t *testing.T) {
	rec, done := serve(t, 201, `{"id":"t1","participant":{"id":"u2","username":"bob"},"lastMessage":""}`)
	defer done()

	th, err := OpenThread(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "/api/chats", rec.path)
	assert.JSONEq(t, `{"userId":"u2"}`, rec.body)
	assert.Equal(t, "t1", *th.ID)

	rec2, done2 := serve(t, 200, `{"following":true}`)
	defer done2()
	following, err := ToggleFollow(context.Background(), "u2")
	require.NoError(t, err)
	assert.True(t, following)
	assert.Equal(t, "/api/users/u2/follow", rec2.path)
}

func TestMockRemoteRecordsCalls(t *testing.T) {
	m := NewMockRemote()
	_, _ = m.ListPosts(context.Background(), 1, 10, "")
	_ = m.DeletePost(context.Background(), "p1")

	assert.True(t, m.AssertCalled("ListPosts"))
	assert.True(t, m.AssertCallCount("DeletePost", 1))
	assert.True(t, m.AssertNotCalled("SetLike"))
	assert.Equal(t, []interface{}{"p1"}, m.GetCallsForMethod("DeletePost")[0].Args)

	m.Reset()
	assert.Empty(t, m.GetCalls())
}
