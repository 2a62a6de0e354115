package devserver

import (
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/entity"
)

// Documents are rendered into the same wire records the client decodes.
// Callers hold documents.mu.

func timestamp(t time.Time) *string {
	return entity.Str(t.UTC().Format(time.RFC3339Nano))
}

func renderUser(u *userDoc, private bool) entity.RawUser {
	out := entity.RawUser{
		ID:       entity.Str(u.ID),
		Username: entity.Str(u.Username),
		Name:     entity.Str(u.Name),
		Bio:      entity.Str(u.Bio),
		Avatar:   entity.Str(u.Avatar),
	}
	if private {
		out.Email = entity.Str(u.Email)
		following := lo.Keys(u.Following)
		slices.Sort(following)
		out.FollowingIDs = following
	}
	return out
}

func (d *documents) renderAuthor(id string) *entity.RawUser {
	u, ok := d.users[id]
	if !ok {
		return &entity.RawUser{ID: entity.Str(id), Username: entity.Str("unknown")}
	}
	return &entity.RawUser{
		ID:       entity.Str(u.ID),
		Username: entity.Str(u.Username),
		Name:     entity.Str(u.Name),
		Avatar:   entity.Str(u.Avatar),
	}
}

func (d *documents) renderPost(p *postDoc, viewerID string) entity.RawPost {
	return entity.RawPost{
		ID:            entity.Str(p.ID),
		Author:        d.renderAuthor(p.AuthorID),
		ImageURL:      entity.Str(p.ImageURL),
		Text:          entity.Str(p.Text),
		CreatedAt:     timestamp(p.CreatedAt),
		LikesCount:    entity.Int(len(p.Likes)),
		LikedByMe:     entity.Bool(p.Likes[viewerID]),
		CommentsCount: entity.Int(len(d.comments[p.ID])),
	}
}

func (d *documents) renderComment(c *commentDoc) entity.RawComment {
	return entity.RawComment{
		ID:        entity.Str(c.ID),
		PostID:    entity.Str(c.PostID),
		Author:    d.renderAuthor(c.AuthorID),
		Text:      entity.Str(c.Text),
		CreatedAt: timestamp(c.CreatedAt),
	}
}

func (d *documents) renderThread(c *chatDoc, viewerID string) entity.RawThread {
	return entity.RawThread{
		ID:          entity.Str(c.ID),
		Participant: d.renderAuthor(c.other(viewerID)),
		LastMessage: entity.Str(d.lastMessage(c.ID)),
	}
}

func renderMessage(m *messageDoc) entity.RawMessage {
	return entity.RawMessage{
		ID:        entity.Str(m.ID),
		ThreadID:  entity.Str(m.ChatID),
		Text:      entity.Str(m.Text),
		CreatedAt: timestamp(m.CreatedAt),
		SenderID:  entity.Str(m.SenderID),
	}
}
