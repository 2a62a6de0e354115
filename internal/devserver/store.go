package devserver

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userDoc struct {
	ID           string
	Email        string
	Username     string
	Name         string
	Bio          string
	Avatar       string
	PasswordHash []byte
	Following    map[string]bool
	CreatedAt    time.Time
}

type postDoc struct {
	ID        string
	AuthorID  string
	ImageURL  string
	Text      string
	CreatedAt time.Time
	Likes     map[string]bool
}

type commentDoc struct {
	ID        string
	PostID    string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

type chatDoc struct {
	ID           string
	Participants [2]string
	UpdatedAt    time.Time
}

type messageDoc struct {
	ID        string
	ChatID    string
	SenderID  string
	Text      string
	CreatedAt time.Time
}

// documents is the in-memory database. Identifiers are 24-hex ObjectIDs so
// clients see the same shape as a Mongo-backed server.
type documents struct {
	mu       sync.RWMutex
	users    map[string]*userDoc
	posts    map[string]*postDoc
	comments map[string][]*commentDoc
	chats    map[string]*chatDoc
	messages map[string][]*messageDoc
	now      func() time.Time
}

func newDocuments() *documents {
	return &documents{
		users:    make(map[string]*userDoc),
		posts:    make(map[string]*postDoc),
		comments: make(map[string][]*commentDoc),
		chats:    make(map[string]*chatDoc),
		messages: make(map[string][]*messageDoc),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func validID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (d *documents) userByLogin(identifier string) *userDoc {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	for _, u := range d.users {
		if strings.ToLower(u.Email) == identifier || strings.ToLower(u.Username) == identifier {
			return u
		}
	}
	return nil
}

func (d *documents) userExists(email, username string) bool {
	return d.userByLogin(email) != nil || d.userByLogin(username) != nil
}

// postsPage returns one page of posts, newest first, and the total count
func (d *documents) postsPage(page, limit int, authorID string) ([]*postDoc, int) {
	all := make([]*postDoc, 0, len(d.posts))
	for _, p := range d.posts {
		if authorID == "" || p.AuthorID == authorID {
			all = append(all, p)
		}
	}
	slices.SortFunc(all, func(a, b *postDoc) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	start := (page - 1) * limit
	if start >= len(all) {
		return nil, len(all)
	}
	return all[start:min(start+limit, len(all))], len(all)
}

// commentsPage returns comments on postID newest first
func (d *documents) commentsPage(postID string, limit, offset int) []*commentDoc {
	list := slices.Clone(d.comments[postID])
	slices.SortFunc(list, func(a, b *commentDoc) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if offset >= len(list) {
		return nil
	}
	return list[offset:min(offset+limit, len(list))]
}

func (d *documents) findComment(postID, commentID string) (*commentDoc, int) {
	i := slices.IndexFunc(d.comments[postID], func(c *commentDoc) bool { return c.ID == commentID })
	if i < 0 {
		return nil, -1
	}
	return d.comments[postID][i], i
}

func (d *documents) chatBetween(a, b string) *chatDoc {
	for _, c := range d.chats {
		if (c.Participants[0] == a && c.Participants[1] == b) || (c.Participants[0] == b && c.Participants[1] == a) {
			return c
		}
	}
	return nil
}

func (c *chatDoc) has(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

func (c *chatDoc) other(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

func (d *documents) chatsFor(userID string) []*chatDoc {
	var out []*chatDoc
	for _, c := range d.chats {
		if c.has(userID) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *chatDoc) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (d *documents) lastMessage(chatID string) string {
	msgs := d.messages[chatID]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

func (d *documents) searchUsers(q string, limit int) []*userDoc {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []*userDoc
	for _, u := range d.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Name), q) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b *userDoc) int { return cmp.Compare(a.Username, b.Username) })
	return out[:min(limit, len(out))]
}
