package api

import "github.com/zfogg/feedsync/pkg/entity"

// LoginRequest accepts either an email or a username as identifier
type LoginRequest struct {
	Identifier string `json:"identifier,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
}

// SignupRequest registers a new account
type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and signup
type AuthResponse struct {
	Token string         `json:"token"`
	User  entity.RawUser `json:"user"`
}

// CreatePostRequest is the body of POST /posts
type CreatePostRequest struct {
	ImageURL string `json:"imageUrl"`
	Text     string `json:"text"`
}

// TextRequest carries a text body for edits, comments and messages
type TextRequest struct {
	Text string `json:"text"`
}

// LikeRequest sets the like state idempotently
type LikeRequest struct {
	Liked bool `json:"liked"`
}

// OpenThreadRequest finds or creates a thread with a user
type OpenThreadRequest struct {
	UserID string `json:"userId"`
}

// UpdateProfileRequest patches the viewer's profile. Nil fields are left alone.
type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// FollowResponse is the follow toggle's result
type FollowResponse struct {
	Following bool `json:"following"`
}
