package devserver

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/realtime"
	"github.com/zfogg/feedsync/pkg/validation"
	"go.uber.org/zap"
)

const (
	defaultPageSize     = 10
	maxPageSize         = 30
	defaultCommentLimit = 3
	maxCommentLimit     = 50
)

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, api.ErrorResponse{Message: message})
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// pathID reads an ObjectID path parameter, answering 400 when malformed
func pathID(c *gin.Context, key string) (string, bool) {
	id := c.Param(key)
	if !validID(id) {
		abort(c, http.StatusBadRequest, "Invalid id")
		return "", false
	}
	return id, true
}

func (s *Server) publish(ev realtime.EventType, payload any, userIDs ...string) {
	e, err := realtime.NewEvent(ev, payload)
	if err != nil {
		s.log.Error("Failed to build event", zap.String("type", string(ev)), zap.Error(err))
		return
	}
	if len(userIDs) == 0 {
		s.hub.Broadcast(e)
		return
	}
	s.hub.SendToUser(e, userIDs...)
}

func (s *Server) listPosts(c *gin.Context) {
	page := max(1, intQuery(c, "page", 1))
	limit := intQuery(c, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	authorID := c.Query("userId")
	if authorID != "" && !validID(authorID) {
		abort(c, http.StatusBadRequest, "Invalid userId")
		return
	}

	me := viewer(c)
	s.docs.mu.RLock()
	posts, total := s.docs.postsPage(page, limit, authorID)
	items := lo.Map(posts, func(p *postDoc, _ int) entity.RawPost { return s.docs.renderPost(p, me) })
	s.docs.mu.RUnlock()

	c.JSON(http.StatusOK, entity.RawPage{Items: items, Total: total})
}

func (s *Server) getPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s.docs.mu.RLock()
	defer s.docs.mu.RUnlock()
	p, found := s.docs.posts[id]
	if !found {
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	c.JSON(http.StatusOK, s.docs.renderPost(p, viewer(c)))
}

func (s *Server) createPost(c *gin.Context) {
	var req api.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	imageURL, text, err := validation.PostCreate(req.ImageURL, req.Text)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	me := viewer(c)
	s.docs.mu.Lock()
	p := &postDoc{
		ID:        newID(),
		AuthorID:  me,
		ImageURL:  imageURL,
		Text:      text,
		CreatedAt: s.docs.now(),
		Likes:     make(map[string]bool),
	}
	s.docs.posts[p.ID] = p
	out := s.docs.renderPost(p, me)
	s.docs.mu.Unlock()

	s.log.Info("Post created", zap.String("post_id", p.ID), zap.String("user_id", me))
	c.JSON(http.StatusCreated, out)
}

// ownedPost looks up a post for a mutation by its author. The caller holds
// the write lock.
func (s *Server) ownedPost(c *gin.Context, id string) (*postDoc, bool) {
	p, ok := s.docs.posts[id]
	if !ok {
		abort(c, http.StatusNotFound, "Post not found")
		return nil, false
	}
	if p.AuthorID != viewer(c) {
		abort(c, http.StatusForbidden, "Not allowed")
		return nil, false
	}
	return p, true
}

func (s *Server) updatePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req api.TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	text, err := validation.PostEdit(req.Text)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	s.docs.mu.Lock()
	p, ok := s.ownedPost(c, id)
	if !ok {
		s.docs.mu.Unlock()
		return
	}
	p.Text = text
	out := s.docs.renderPost(p, viewer(c))
	s.docs.mu.Unlock()

	s.publish(realtime.EventPostUpdated, realtime.PostChanged{PostID: id})
	c.JSON(http.StatusOK, out)
}

func (s *Server) deletePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s.docs.mu.Lock()
	if _, ok := s.ownedPost(c, id); !ok {
		s.docs.mu.Unlock()
		return
	}
	delete(s.docs.posts, id)
	delete(s.docs.comments, id)
	s.docs.mu.Unlock()

	s.log.Info("Post deleted", zap.String("post_id", id), zap.String("user_id", viewer(c)))
	s.publish(realtime.EventPostDeleted, realtime.PostChanged{PostID: id})
	c.Status(http.StatusNoContent)
}

func (s *Server) likePost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req api.LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	me := viewer(c)
	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	p, found := s.docs.posts[id]
	if !found {
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	if req.Liked {
		p.Likes[me] = true
	} else {
		delete(p.Likes, me)
	}
	c.JSON(http.StatusOK, entity.RawLikeState{LikesCount: len(p.Likes), LikedByMe: p.Likes[me]})
}

func (s *Server) listComments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit := intQuery(c, "limit", defaultCommentLimit)
	if limit <= 0 {
		limit = defaultCommentLimit
	}
	limit = min(limit, maxCommentLimit)
	offset := max(0, intQuery(c, "offset", 0))

	s.docs.mu.RLock()
	defer s.docs.mu.RUnlock()
	if _, found := s.docs.posts[id]; !found {
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	page := s.docs.commentsPage(id, limit, offset)
	c.JSON(http.StatusOK, lo.Map(page, func(cm *commentDoc, _ int) entity.RawComment { return s.docs.renderComment(cm) }))
}

func (s *Server) createComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req api.TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	text, err := validation.Comment(req.Text)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	s.docs.mu.Lock()
	if _, found := s.docs.posts[id]; !found {
		s.docs.mu.Unlock()
		abort(c, http.StatusNotFound, "Post not found")
		return
	}
	cm := &commentDoc{ID: newID(), PostID: id, AuthorID: viewer(c), Text: text, CreatedAt: s.docs.now()}
	s.docs.comments[id] = append(s.docs.comments[id], cm)
	out := s.docs.renderComment(cm)
	s.docs.mu.Unlock()

	s.publish(realtime.EventPostUpdated, realtime.PostChanged{PostID: id})
	c.JSON(http.StatusCreated, out)
}

// commentFor finds a comment for a mutation. The caller holds the write lock.
func (s *Server) commentFor(c *gin.Context, postID, commentID string) (*commentDoc, int, bool) {
	if _, found := s.docs.posts[postID]; !found {
		abort(c, http.StatusNotFound, "Post not found")
		return nil, -1, false
	}
	cm, i := s.docs.findComment(postID, commentID)
	if cm == nil {
		abort(c, http.StatusNotFound, "Comment not found")
		return nil, -1, false
	}
	return cm, i, true
}

func (s *Server) updateComment(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req api.TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	text, err := validation.Comment(req.Text)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	cm, _, ok := s.commentFor(c, postID, c.Param("commentId"))
	if !ok {
		return
	}
	if cm.AuthorID != viewer(c) {
		abort(c, http.StatusForbidden, "Not allowed")
		return
	}
	cm.Text = text
	c.JSON(http.StatusOK, s.docs.renderComment(cm))
}

// deleteComment lets the comment's author or the post's author remove it
func (s *Server) deleteComment(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}
	me := viewer(c)

	s.docs.mu.Lock()
	cm, i, ok := s.commentFor(c, postID, c.Param("commentId"))
	if !ok {
		s.docs.mu.Unlock()
		return
	}
	if cm.AuthorID != me && s.docs.posts[postID].AuthorID != me {
		s.docs.mu.Unlock()
		abort(c, http.StatusForbidden, "Not allowed")
		return
	}
	s.docs.comments[postID] = slices.Delete(s.docs.comments[postID], i, i+1)
	s.docs.mu.Unlock()

	s.publish(realtime.EventPostUpdated, realtime.PostChanged{PostID: postID})
	c.Status(http.StatusNoContent)
}
