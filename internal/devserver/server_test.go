package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/realtime"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := New(Config{BcryptCost: bcrypt.MinCost}, zap.NewNop())
	t.Cleanup(s.hub.Close)
	return s
}

func request(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func signup(t *testing.T, s *Server, username string) (token, id string) {
	t.Helper()
	rec := request(t, s, http.MethodPost, "/api/auth/signup", "", api.SignupRequest{
		Email:    username + "@example.com",
		Username: username,
		Name:     strings.ToUpper(username[:1]) + username[1:],
		Password: "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[api.AuthResponse](t, rec)
	return resp.Token, *resp.User.ID
}

func createPost(t *testing.T, s *Server, token, text string) entity.RawPost {
	t.Helper()
	rec := request(t, s, http.MethodPost, "/api/posts", token, api.CreatePostRequest{
		ImageURL: "https://img.example.com/" + text + ".jpg",
		Text:     text,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[entity.RawPost](t, rec)
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t)
	token, id := signup(t, s, "alice")
	assert.NotEmpty(t, token)
	assert.True(t, validID(id))

	rec := request(t, s, http.MethodPost, "/api/auth/signup", "", api.SignupRequest{
		Email: "ALICE@example.com", Username: "other", Password: "x",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = request(t, s, http.MethodPost, "/api/auth/signup", "", api.SignupRequest{Username: "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decode[api.ErrorResponse](t, rec).Message)

	tests := []struct {
		name       string
		req        api.LoginRequest
		wantStatus int
	}{
		{"username", api.LoginRequest{Identifier: "alice", Password: "hunter22"}, http.StatusOK},
		{"email field", api.LoginRequest{Email: "alice@example.com", Password: "hunter22"}, http.StatusOK},
		{"case-insensitive", api.LoginRequest{Identifier: "Alice", Password: "hunter22"}, http.StatusOK},
		{"wrong password", api.LoginRequest{Identifier: "alice", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", api.LoginRequest{Identifier: "mallory", Password: "hunter22"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(t, s, http.MethodPost, "/api/auth/login", "", tt.req)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				resp := decode[api.AuthResponse](t, rec)
				assert.Equal(t, id, *resp.User.ID)
				assert.Equal(t, "alice@example.com", *resp.User.Email)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	token, id := signup(t, s, "alice")

	assert.Equal(t, http.StatusUnauthorized, request(t, s, http.MethodGet, "/api/posts", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, s, http.MethodGet, "/api/posts", "garbage", nil).Code)
	assert.Equal(t, http.StatusOK, request(t, s, http.MethodGet, "/api/posts", token, nil).Code)
	assert.Equal(t, http.StatusOK, request(t, s, http.MethodGet, "/api/posts?token="+token, "", nil).Code)

	other := New(Config{JWTSecret: []byte("another-secret"), BcryptCost: bcrypt.MinCost}, zap.NewNop())
	forged, err := other.issueToken(id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(t, s, http.MethodGet, "/api/posts", forged, nil).Code)

	s.docs.mu.Lock()
	delete(s.docs.users, id)
	s.docs.mu.Unlock()
	assert.Equal(t, http.StatusUnauthorized, request(t, s, http.MethodGet, "/api/posts", token, nil).Code)
}

func TestListPostsPaging(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := signup(t, s, "alice")
	bob, _ := signup(t, s, "bob")

	for i := 0; i < 12; i++ {
		createPost(t, s, alice, fmt.Sprintf("a%02d", i))
	}
	createPost(t, s, bob, "b00")

	page := decode[entity.RawPage](t, request(t, s, http.MethodGet, "/api/posts", alice, nil))
	assert.Equal(t, 13, page.Total)
	require.Len(t, page.Items, 10)
	assert.Equal(t, "b00", *page.Items[0].Text, "newest first")

	page = decode[entity.RawPage](t, request(t, s, http.MethodGet, "/api/posts?page=2", alice, nil))
	assert.Len(t, page.Items, 3)

	page = decode[entity.RawPage](t, request(t, s, http.MethodGet, "/api/posts?page=0&limit=500", alice, nil))
	assert.Len(t, page.Items, 13, "limit is capped, page floors at 1")

	page = decode[entity.RawPage](t, request(t, s, http.MethodGet, "/api/posts?limit=5&userId="+aliceID, alice, nil))
	assert.Equal(t, 12, page.Total)
	assert.Len(t, page.Items, 5)
	for _, p := range page.Items {
		assert.Equal(t, aliceID, *p.Author.ID)
	}

	rec := request(t, s, http.MethodGet, "/api/posts?userId=nope", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePostValidation(t *testing.T) {
	s := newTestServer(t)
	token, _ := signup(t, s, "alice")

	rec := request(t, s, http.MethodPost, "/api/posts", token, api.CreatePostRequest{Text: "no image"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(t, s, http.MethodPost, "/api/posts", token, api.CreatePostRequest{
		ImageURL: "https://img.example.com/x.jpg",
		Text:     strings.Repeat("x", 1201),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostOwnership(t *testing.T) {
	s := newTestServer(t)
	alice, _ := signup(t, s, "alice")
	bob, _ := signup(t, s, "bob")
	post := createPost(t, s, alice, "mine")
	path := "/api/posts/" + *post.ID

	rec := request(t, s, http.MethodPatch, path, bob, api.TextRequest{Text: "hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, request(t, s, http.MethodDelete, path, bob, nil).Code)

	rec = request(t, s, http.MethodPatch, path, alice, api.TextRequest{Text: "edited"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", *decode[entity.RawPost](t, rec).Text)

	assert.Equal(t, http.StatusNoContent, request(t, s, http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodGet, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodGet, "/api/posts/not-an-id", alice, nil).Code)
}

func TestLikeIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	alice, _ := signup(t, s, "alice")
	bob, _ := signup(t, s, "bob")
	post := createPost(t, s, alice, "likeable")
	path := "/api/posts/" + *post.ID + "/like"

	like := func(token string, liked bool) entity.RawLikeState {
		rec := request(t, s, http.MethodPost, path, token, api.LikeRequest{Liked: liked})
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[entity.RawLikeState](t, rec)
	}

	assert.Equal(t, entity.RawLikeState{LikesCount: 1, LikedByMe: true}, like(alice, true))
	assert.Equal(t, entity.RawLikeState{LikesCount: 1, LikedByMe: true}, like(alice, true))
	assert.Equal(t, entity.RawLikeState{LikesCount: 2, LikedByMe: true}, like(bob, true))
	assert.Equal(t, entity.RawLikeState{LikesCount: 1, LikedByMe: false}, like(alice, false))
	assert.Equal(t, entity.RawLikeState{LikesCount: 1, LikedByMe: false}, like(alice, false))

	got := decode[entity.RawPost](t, request(t, s, http.MethodGet, "/api/posts/"+*post.ID, bob, nil))
	assert.True(t, *got.LikedByMe)
	assert.Equal(t, 1, *got.LikesCount)
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	alice, _ := signup(t, s, "alice")
	bob, _ := signup(t, s, "bob")
	post := createPost(t, s, alice, "discuss")
	base := "/api/posts/" + *post.ID + "/comments"

	var ids []string
	for i := 0; i < 5; i++ {
		rec := request(t, s, http.MethodPost, base, bob, api.TextRequest{Text: fmt.Sprintf("c%d", i)})
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, *decode[entity.RawComment](t, rec).ID)
	}

	list := decode[[]entity.RawComment](t, request(t, s, http.MethodGet, base, alice, nil))
	require.Len(t, list, 3)
	assert.Equal(t, "c4", *list[0].Text, "newest first")

	list = decode[[]entity.RawComment](t, request(t, s, http.MethodGet, base+"?limit=2&offset=3", alice, nil))
	require.Len(t, list, 2)
	assert.Equal(t, "c1", *list[0].Text)

	list = decode[[]entity.RawComment](t, request(t, s, http.MethodGet, base+"?limit=999", alice, nil))
	assert.Len(t, list, 5)

	got := decode[entity.RawPost](t, request(t, s, http.MethodGet, "/api/posts/"+*post.ID, alice, nil))
	assert.Equal(t, 5, *got.CommentsCount)

	rec := request(t, s, http.MethodPatch, base+"/"+ids[0], alice, api.TextRequest{Text: "rewritten"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "only the comment author may edit")

	rec = request(t, s, http.MethodPatch, base+"/"+ids[0], bob, api.TextRequest{Text: "rewritten"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rewritten", *decode[entity.RawComment](t, rec).Text)

	assert.Equal(t, http.StatusNoContent, request(t, s, http.MethodDelete, base+"/"+ids[1], alice, nil).Code, "post author may delete")
	assert.Equal(t, http.StatusNoContent, request(t, s, http.MethodDelete, base+"/"+ids[2], bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodDelete, base+"/"+ids[2], bob, nil).Code)

	carol, _ := signup(t, s, "carol")
	assert.Equal(t, http.StatusForbidden, request(t, s, http.MethodDelete, base+"/"+ids[3], carol, nil).Code)

	rec = request(t, s, http.MethodPost, base, bob, api.TextRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChats(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := signup(t, s, "alice")
	bob, bobID := signup(t, s, "bob")
	carol, _ := signup(t, s, "carol")

	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodPost, "/api/chats", alice, api.OpenThreadRequest{}).Code)
	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodPost, "/api/chats", alice, api.OpenThreadRequest{UserID: aliceID}).Code)
	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodPost, "/api/chats", alice, api.OpenThreadRequest{UserID: newID()}).Code)

	rec := request(t, s, http.MethodPost, "/api/chats", alice, api.OpenThreadRequest{UserID: bobID})
	require.Equal(t, http.StatusCreated, rec.Code)
	thread := decode[entity.RawThread](t, rec)
	assert.Equal(t, bobID, *thread.Participant.ID)

	again := decode[entity.RawThread](t, request(t, s, http.MethodPost, "/api/chats", bob, api.OpenThreadRequest{UserID: aliceID}))
	assert.Equal(t, *thread.ID, *again.ID, "an existing chat is reused from either side")
	assert.Equal(t, aliceID, *again.Participant.ID)

	msgs := "/api/chats/" + *thread.ID + "/messages"
	rec = request(t, s, http.MethodPost, msgs, alice, api.TextRequest{Text: "hi bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	sent := decode[entity.RawMessage](t, rec)
	assert.Equal(t, aliceID, *sent.SenderID)
	assert.Equal(t, *thread.ID, *sent.ThreadID)

	rec = request(t, s, http.MethodPost, msgs, bob, api.TextRequest{Text: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing text", decode[api.ErrorResponse](t, rec).Message)

	request(t, s, http.MethodPost, msgs, bob, api.TextRequest{Text: "hey alice"})
	list := decode[[]entity.RawMessage](t, request(t, s, http.MethodGet, msgs, bob, nil))
	require.Len(t, list, 2)
	assert.Equal(t, "hi bob", *list[0].Text, "oldest first")

	assert.Equal(t, http.StatusForbidden, request(t, s, http.MethodGet, msgs, carol, nil).Code)
	assert.Equal(t, http.StatusForbidden, request(t, s, http.MethodPost, msgs, carol, api.TextRequest{Text: "hi"}).Code)

	threads := decode[[]entity.RawThread](t, request(t, s, http.MethodGet, "/api/chats", alice, nil))
	require.Len(t, threads, 1)
	assert.Equal(t, "hey alice", *threads[0].LastMessage)
	assert.Empty(t, decode[[]entity.RawThread](t, request(t, s, http.MethodGet, "/api/chats", carol, nil)))
}

func TestUsers(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := signup(t, s, "alice")
	_, bobID := signup(t, s, "bob")
	signup(t, s, "alfred")

	me := decode[entity.RawUser](t, request(t, s, http.MethodGet, "/api/users/me", alice, nil))
	assert.Equal(t, aliceID, *me.ID)
	assert.Equal(t, "alice@example.com", *me.Email)

	bio := "hello there"
	rec := request(t, s, http.MethodPatch, "/api/users/me", alice, api.UpdateProfileRequest{Bio: &bio})
	require.Equal(t, http.StatusOK, rec.Code)
	me = decode[entity.RawUser](t, rec)
	assert.Equal(t, "hello there", *me.Bio)
	assert.Equal(t, "Alice", *me.Name, "fields left out are unchanged")

	long := strings.Repeat("x", 81)
	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodPatch, "/api/users/me", alice, api.UpdateProfileRequest{Name: &long}).Code)

	found := decode[[]entity.RawUser](t, request(t, s, http.MethodGet, "/api/users/search?q=AL", alice, nil))
	require.Len(t, found, 2)
	assert.Equal(t, "alfred", *found[0].Username)
	assert.Nil(t, found[0].Email, "public view hides email")
	assert.Empty(t, decode[[]entity.RawUser](t, request(t, s, http.MethodGet, "/api/users/search?q=", alice, nil)))

	bob := decode[entity.RawUser](t, request(t, s, http.MethodGet, "/api/users/"+bobID, alice, nil))
	assert.Equal(t, "bob", *bob.Username)
	assert.Equal(t, http.StatusNotFound, request(t, s, http.MethodGet, "/api/users/"+newID(), alice, nil).Code)

	follow := func() bool {
		rec := request(t, s, http.MethodPost, "/api/users/"+bobID+"/follow", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return decode[api.FollowResponse](t, rec).Following
	}
	assert.True(t, follow())
	me = decode[entity.RawUser](t, request(t, s, http.MethodGet, "/api/users/me", alice, nil))
	assert.Equal(t, []string{bobID}, me.FollowingIDs)
	assert.False(t, follow())

	assert.Equal(t, http.StatusBadRequest, request(t, s, http.MethodPost, "/api/users/"+aliceID+"/follow", alice, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := request(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	request(t, s, http.MethodGet, "/api/posts", "", nil)
	rec = request(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feedsync_")
}

func dialHub(t *testing.T, ts *httptest.Server, s *Server, token string) *websocket.Conn {
	t.Helper()
	before := s.Hub().Connections()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return s.Hub().Connections() > before }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) realtime.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := realtime.ParseEvent(data)
	require.NoError(t, err)
	return ev
}

func TestWebsocketPushesEvents(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	alice, _ := signup(t, s, "alice")
	bob, bobID := signup(t, s, "bob")
	bobConn := dialHub(t, ts, s, bob)

	heartbeat, err := realtime.NewEvent(realtime.EventHeartbeat, nil)
	require.NoError(t, err)
	data, err := heartbeat.Encode()
	require.NoError(t, err)
	require.NoError(t, bobConn.WriteMessage(websocket.TextMessage, data))
	assert.Equal(t, realtime.EventPong, readEvent(t, bobConn).Type)

	thread := decode[entity.RawThread](t, request(t, s, http.MethodPost, "/api/chats", alice, api.OpenThreadRequest{UserID: bobID}))
	sent := decode[entity.RawMessage](t, request(t, s, http.MethodPost, "/api/chats/"+*thread.ID+"/messages", alice, api.TextRequest{Text: "ping"}))

	ev := readEvent(t, bobConn)
	require.Equal(t, realtime.EventMessageCreated, ev.Type)
	var payload realtime.MessageCreated
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, realtime.MessageCreated{ThreadID: *thread.ID, MessageID: *sent.ID}, payload)

	post := createPost(t, s, alice, "broadcast")
	request(t, s, http.MethodDelete, "/api/posts/"+*post.ID, alice, nil)
	ev = readEvent(t, bobConn)
	require.Equal(t, realtime.EventPostDeleted, ev.Type)
	var changed realtime.PostChanged
	require.NoError(t, ev.Decode(&changed))
	assert.Equal(t, *post.ID, changed.PostID)
}

func TestWebsocketRequiresToken(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	token, _ := signup(t, s, "alice")
	conn := dialHub(t, ts, s, token)

	s.Hub().Close()
	assert.Equal(t, 0, s.Hub().Connections())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
