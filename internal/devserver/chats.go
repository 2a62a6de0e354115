package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/realtime"
	"github.com/zfogg/feedsync/pkg/validation"
)

func (s *Server) listChats(c *gin.Context) {
	me := viewer(c)
	s.docs.mu.RLock()
	defer s.docs.mu.RUnlock()
	threads := lo.Map(s.docs.chatsFor(me), func(ch *chatDoc, _ int) entity.RawThread {
		return s.docs.renderThread(ch, me)
	})
	c.JSON(http.StatusOK, threads)
}

// openChat returns the chat between the viewer and userId, creating it if
// needed
func (s *Server) openChat(c *gin.Context) {
	var req api.OpenThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		abort(c, http.StatusBadRequest, "Missing userId")
		return
	}
	me := viewer(c)
	if req.UserID == me {
		abort(c, http.StatusBadRequest, "Cannot chat with yourself")
		return
	}
	if !validID(req.UserID) {
		abort(c, http.StatusBadRequest, "Invalid userId")
		return
	}

	s.docs.mu.Lock()
	defer s.docs.mu.Unlock()
	if _, ok := s.docs.users[req.UserID]; !ok {
		abort(c, http.StatusNotFound, "User not found")
		return
	}
	chat := s.docs.chatBetween(me, req.UserID)
	if chat == nil {
		chat = &chatDoc{ID: newID(), Participants: [2]string{me, req.UserID}, UpdatedAt: s.docs.now()}
		s.docs.chats[chat.ID] = chat
	}
	c.JSON(http.StatusCreated, s.docs.renderThread(chat, me))
}

// participantChat looks up a chat the viewer belongs to. The caller holds
// the lock.
func (s *Server) participantChat(c *gin.Context) (*chatDoc, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	chat, found := s.docs.chats[id]
	if !found {
		abort(c, http.StatusNotFound, "Chat not found")
		return nil, false
	}
	if !chat.has(viewer(c)) {
		abort(c, http.StatusForbidden, "Forbidden")
		return nil, false
	}
	return chat, true
}

func (s *Server) listMessages(c *gin.Context) {
	s.docs.mu.RLock()
	defer s.docs.mu.RUnlock()
	chat, ok := s.participantChat(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, lo.Map(s.docs.messages[chat.ID], func(m *messageDoc, _ int) entity.RawMessage {
		return renderMessage(m)
	}))
}

func (s *Server) sendMessage(c *gin.Context) {
	var req api.TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	text, err := validation.Message(req.Text)
	if err != nil {
		abort(c, http.StatusBadRequest, "Missing text")
		return
	}

	me := viewer(c)
	s.docs.mu.Lock()
	chat, ok := s.participantChat(c)
	if !ok {
		s.docs.mu.Unlock()
		return
	}
	now := s.docs.now()
	m := &messageDoc{ID: newID(), ChatID: chat.ID, SenderID: me, Text: text, CreatedAt: now}
	s.docs.messages[chat.ID] = append(s.docs.messages[chat.ID], m)
	chat.UpdatedAt = now
	participants := chat.Participants
	s.docs.mu.Unlock()

	s.publish(realtime.EventMessageCreated, realtime.MessageCreated{ThreadID: chat.ID, MessageID: m.ID}, participants[:]...)
	c.JSON(http.StatusCreated, renderMessage(m))
}
