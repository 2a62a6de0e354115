package entity

// Raw records mirror the server's JSON. Every field is a pointer so that a
// partial record can be told apart from one carrying zero values.

type RawUser struct {
	ID           *string  `json:"id"`
	Email        *string  `json:"email,omitempty"`
	Username     *string  `json:"username,omitempty"`
	Name         *string  `json:"name,omitempty"`
	Bio          *string  `json:"bio,omitempty"`
	AvatarURL    *string  `json:"avatarUrl,omitempty"`
	Avatar       *string  `json:"avatar,omitempty"`
	FollowingIDs []string `json:"followingIds,omitempty"`
}

type RawPost struct {
	ID            *string  `json:"id"`
	Author        *RawUser `json:"author"`
	ImageURL      *string  `json:"imageUrl,omitempty"`
	Text          *string  `json:"text,omitempty"`
	CreatedAt     *string  `json:"createdAt,omitempty"`
	LikesCount    *int     `json:"likesCount,omitempty"`
	LikedByMe     *bool    `json:"likedByMe,omitempty"`
	CommentsCount *int     `json:"commentsCount,omitempty"`
}

type RawComment struct {
	ID        *string  `json:"id"`
	PostID    *string  `json:"postId,omitempty"`
	Author    *RawUser `json:"author"`
	Text      *string  `json:"text,omitempty"`
	CreatedAt *string  `json:"createdAt,omitempty"`
}

type RawThread struct {
	ID          *string  `json:"id"`
	Participant *RawUser `json:"participant"`
	LastMessage *string  `json:"lastMessage,omitempty"`
}

type RawMessage struct {
	ID        *string `json:"id"`
	ThreadID  *string `json:"threadId,omitempty"`
	Text      *string `json:"text,omitempty"`
	CreatedAt *string `json:"createdAt,omitempty"`
	SenderID  *string `json:"senderId,omitempty"`
}

// RawPage is one page of the post listing
type RawPage struct {
	Items []RawPost `json:"items"`
	Total int       `json:"total"`
}

// RawLikeState is the like endpoint's response
type RawLikeState struct {
	LikesCount int  `json:"likesCount"`
	LikedByMe  bool `json:"likedByMe"`
}

// Str is a helper for building raw records in code and tests
func Str(s string) *string { return &s }

// Int is a helper for building raw records in code and tests
func Int(i int) *int { return &i }

// Bool is a helper for building raw records in code and tests
func Bool(b bool) *bool { return &b }
