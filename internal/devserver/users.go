package devserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/validation"
)

const maxSearchResults = 20

func (s *Server) getMe(c *gin.Context) {
	s.docs.mu.RLock()
	defer s.docs.mu.RUnlock()
	u, ok := s.docs.users[viewer(c)]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, renderUser(u, true))
}

func (s *Server) updateMe(c *gin.Context) {
	var req api.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	name, bio, err := validation.Profile(lo.FromPtr(req.Name), lo.FromPtr(req.Bio))
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}

	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	u, ok := s.docs.users[viewer(c)]
	if !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	if req.Name != nil {
		u.Name = name
	}
	if req.Bio != nil {
		u.Bio = bio
	}
	if req.AvatarURL != nil {
		u.Avatar = strings.TrimSpace(*req.AvatarURL)
	}
	c.JSON(http.StatusOK, renderUser(u, true))
}

func (s *Server) searchUsers(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, []entity.RawUser{})
		return
	}
	s.docs.mu.RLock()
	defer s.docs.mu.RUnlock()
	users := lo.Map(s.docs.searchUsers(q, maxSearchResults), func(u *userDoc, _ int) entity.RawUser {
		return renderUser(u, false)
	})
	c.JSON(http.StatusOK, users)
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s.docs.mu.RLock()
	defer s.docs.mu.RUnlock()
	u, found := s.docs.users[id]
	if !found {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, renderUser(u, false))
}

// toggleFollow flips whether the viewer follows :id
func (s *Server) toggleFollow(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	me := viewer(c)
	if id == me {
		abort(c, http.StatusBadRequest, "Cannot follow yourself")
		return
	}

	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	if _, found := s.docs.users[id]; !found {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	u := s.docs.users[me]
	if u.Following[id] {
		delete(u.Following, id)
	} else {
		u.Following[id] = true
	}
	c.JSON(http.StatusOK, api.FollowResponse{Following: u.Following[id]})
}
