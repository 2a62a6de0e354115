package entity

import (
	"regexp"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/errors"
	"github.com/zfogg/feedsync/pkg/logger"
)

var bareBase64 = regexp.MustCompile(`^[A-Za-z0-9+/=\s]+$`)

// Normalizer turns raw server records into canonical entities for one
// viewer. Viewer-relative fields are always recomputed here and never taken
// from the server.
type Normalizer struct {
	ViewerID string
}

// NewNormalizer creates a normalizer for viewerID
func NewNormalizer(viewerID string) Normalizer {
	return Normalizer{ViewerID: viewerID}
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func parseTime(p *string) time.Time {
	if p == nil || *p == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, *p)
	if err != nil {
		return time.Time{}
	}
	return t
}

// NormalizeAvatar turns bare base64 payloads into data URLs and trims
// everything else
func NormalizeAvatar(val string) string {
	s := strings.TrimSpace(val)
	if s == "" || strings.HasPrefix(s, "data:image/") {
		return s
	}
	if len(s) > 200 && bareBase64.MatchString(s) {
		compact := strings.Join(strings.Fields(s), "")
		return "data:image/jpeg;base64," + compact
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	v, _ := lo.Coalesce(vals...)
	return v
}

func (n Normalizer) author(raw *RawUser, kind string) (Author, error) {
	if raw == nil || deref(raw.ID) == "" {
		return Author{}, errors.MalformedRecord(kind, "author.id")
	}
	avatar := firstNonEmpty(deref(raw.AvatarURL), deref(raw.Avatar))
	return Author{
		ID:       *raw.ID,
		Username: deref(raw.Username),
		Name:     deref(raw.Name),
		Avatar:   NormalizeAvatar(avatar),
	}, nil
}

func (n Normalizer) isMine(authorID string) bool {
	return n.ViewerID != "" && authorID == n.ViewerID
}

// Post normalizes a single post record
func (n Normalizer) Post(raw RawPost) (Post, error) {
	id := deref(raw.ID)
	if id == "" {
		return Post{}, errors.MalformedRecord("post", "id")
	}
	author, err := n.author(raw.Author, "post")
	if err != nil {
		return Post{}, err
	}

	return Post{
		ID:            id,
		Author:        author,
		ImageURL:      deref(raw.ImageURL),
		Text:          deref(raw.Text),
		CreatedAt:     parseTime(raw.CreatedAt),
		LikesCount:    max(0, deref(raw.LikesCount)),
		LikedByMe:     deref(raw.LikedByMe),
		CommentsCount: max(0, deref(raw.CommentsCount)),
		IsMine:        n.isMine(author.ID),
	}, nil
}

// Posts normalizes a batch, skipping malformed records
func (n Normalizer) Posts(raws []RawPost) []Post {
	return lo.FilterMap(raws, func(raw RawPost, i int) (Post, bool) {
		p, err := n.Post(raw)
		if err != nil {
			logger.Warn("Skipping post record", "index", i, "error", err)
			return Post{}, false
		}
		return p, true
	})
}

// Comment normalizes a comment. postID is used when the record omits it.
func (n Normalizer) Comment(raw RawComment, postID string) (Comment, error) {
	id := deref(raw.ID)
	if id == "" {
		return Comment{}, errors.MalformedRecord("comment", "id")
	}
	author, err := n.author(raw.Author, "comment")
	if err != nil {
		return Comment{}, err
	}
	if p := deref(raw.PostID); p != "" {
		postID = p
	}

	return Comment{
		ID:        id,
		PostID:    postID,
		Author:    author,
		Text:      deref(raw.Text),
		CreatedAt: parseTime(raw.CreatedAt),
		IsMine:    n.isMine(author.ID),
	}, nil
}

// Comments normalizes a batch, skipping malformed records
func (n Normalizer) Comments(raws []RawComment, postID string) []Comment {
	return lo.FilterMap(raws, func(raw RawComment, i int) (Comment, bool) {
		c, err := n.Comment(raw, postID)
		if err != nil {
			logger.Warn("Skipping comment record", "post_id", postID, "index", i, "error", err)
			return Comment{}, false
		}
		return c, true
	})
}

// Thread normalizes a thread record
func (n Normalizer) Thread(raw RawThread) (Thread, error) {
	id := deref(raw.ID)
	if id == "" {
		return Thread{}, errors.MalformedRecord("thread", "id")
	}
	var participant Author
	if raw.Participant != nil {
		participant = Author{
			ID:       deref(raw.Participant.ID),
			Username: deref(raw.Participant.Username),
			Name:     deref(raw.Participant.Name),
			Avatar:   NormalizeAvatar(firstNonEmpty(deref(raw.Participant.AvatarURL), deref(raw.Participant.Avatar))),
		}
	}
	return Thread{ID: id, Participant: participant, LastMessage: deref(raw.LastMessage)}, nil
}

// Threads normalizes a batch, skipping malformed records
func (n Normalizer) Threads(raws []RawThread) []Thread {
	return lo.FilterMap(raws, func(raw RawThread, i int) (Thread, bool) {
		t, err := n.Thread(raw)
		if err != nil {
			logger.Warn("Skipping thread record", "index", i, "error", err)
			return Thread{}, false
		}
		return t, true
	})
}

// Message normalizes a message. threadID is used when the record omits it.
func (n Normalizer) Message(raw RawMessage, threadID string) (Message, error) {
	id := deref(raw.ID)
	if id == "" {
		return Message{}, errors.MalformedRecord("message", "id")
	}
	if t := deref(raw.ThreadID); t != "" {
		threadID = t
	}
	return Message{
		ID:        id,
		ThreadID:  threadID,
		Text:      deref(raw.Text),
		CreatedAt: parseTime(raw.CreatedAt),
		SenderID:  deref(raw.SenderID),
	}, nil
}

// Messages normalizes a batch, skipping malformed records
func (n Normalizer) Messages(raws []RawMessage, threadID string) []Message {
	return lo.FilterMap(raws, func(raw RawMessage, i int) (Message, bool) {
		m, err := n.Message(raw, threadID)
		if err != nil {
			logger.Warn("Skipping message record", "thread_id", threadID, "index", i, "error", err)
			return Message{}, false
		}
		return m, true
	})
}

// User normalizes a profile record
func (n Normalizer) User(raw RawUser) (User, error) {
	id := deref(raw.ID)
	if id == "" {
		return User{}, errors.MalformedRecord("user", "id")
	}
	return User{
		ID:           id,
		Email:        deref(raw.Email),
		Username:     deref(raw.Username),
		Name:         deref(raw.Name),
		Bio:          deref(raw.Bio),
		Avatar:       NormalizeAvatar(firstNonEmpty(deref(raw.AvatarURL), deref(raw.Avatar))),
		FollowingIDs: raw.FollowingIDs,
	}, nil
}

// Users normalizes a batch, skipping malformed records
func (n Normalizer) Users(raws []RawUser) []User {
	return lo.FilterMap(raws, func(raw RawUser, i int) (User, bool) {
		u, err := n.User(raw)
		if err != nil {
			logger.Warn("Skipping user record", "index", i, "error", err)
			return User{}, false
		}
		return u, true
	})
}
