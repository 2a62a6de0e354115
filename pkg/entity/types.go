package entity

import "time"

// Author is the public preview of a user attached to posts, comments and threads
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Post is the canonical post entity. It is comparable, so a cached value can
// be checked for equality against an earlier copy.
type Post struct {
	ID            string    `json:"id"`
	Author        Author    `json:"author"`
	ImageURL      string    `json:"imageUrl"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"createdAt"`
	LikesCount    int       `json:"likesCount"`
	LikedByMe     bool      `json:"likedByMe"`
	CommentsCount int       `json:"commentsCount"`
	IsMine        bool      `json:"isMine"`
}

// Comment belongs to exactly one post
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	IsMine    bool      `json:"isMine"`
	// Pending marks a provisional comment that the server has not confirmed yet
	Pending bool `json:"pending,omitempty"`
}

// Thread is a direct-message conversation with one other user
type Thread struct {
	ID          string `json:"id"`
	Participant Author `json:"participant"`
	LastMessage string `json:"lastMessage"`
}

// MessageStatus is a local-only tag for messages the server has not confirmed
type MessageStatus string

const (
	StatusConfirmed MessageStatus = ""
	StatusSending   MessageStatus = "sending"
	StatusFailed    MessageStatus = "failed"
)

// Message is a single direct message
type Message struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"threadId"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"createdAt"`
	SenderID  string        `json:"senderId"`
	Status    MessageStatus `json:"status,omitempty"`
}

// IsLocal reports whether the message exists only on this client
func (m Message) IsLocal() bool {
	return m.Status != StatusConfirmed
}

// User is a full profile
type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email,omitempty"`
	Username     string   `json:"username"`
	Name         string   `json:"name,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Avatar       string   `json:"avatar,omitempty"`
	FollowingIDs []string `json:"followingIds,omitempty"`
}

// Preview returns the author preview for u
func (u User) Preview() Author {
	return Author{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar}
}
