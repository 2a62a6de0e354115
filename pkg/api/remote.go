package api

import (
	"context"

	"github.com/zfogg/feedsync/pkg/entity"
)

// Remote is the server surface the sync core depends on. HTTPRemote talks to
// the real API; MockRemote is used in tests.
type Remote interface {
	ListPosts(ctx context.Context, page, limit int, userID string) (*entity.RawPage, error)
	GetPost(ctx context.Context, postID string) (*entity.RawPost, error)
	CreatePost(ctx context.Context, req CreatePostRequest) (*entity.RawPost, error)
	UpdatePost(ctx context.Context, postID, text string) (*entity.RawPost, error)
	DeletePost(ctx context.Context, postID string) error
	SetLike(ctx context.Context, postID string, liked bool) (*entity.RawLikeState, error)

	ListComments(ctx context.Context, postID string, limit, offset int) ([]entity.RawComment, error)
	CreateComment(ctx context.Context, postID, text string) (*entity.RawComment, error)
	UpdateComment(ctx context.Context, postID, commentID, text string) (*entity.RawComment, error)
	DeleteComment(ctx context.Context, postID, commentID string) error

	ListThreads(ctx context.Context) ([]entity.RawThread, error)
	OpenThread(ctx context.Context, userID string) (*entity.RawThread, error)
	ListMessages(ctx context.Context, threadID string) ([]entity.RawMessage, error)
	SendMessage(ctx context.Context, threadID, text string) (*entity.RawMessage, error)

	GetMe(ctx context.Context) (*entity.RawUser, error)
	UpdateMe(ctx context.Context, req UpdateProfileRequest) (*entity.RawUser, error)
	SearchUsers(ctx context.Context, query string) ([]entity.RawUser, error)
	GetUser(ctx context.Context, userID string) (*entity.RawUser, error)
	ToggleFollow(ctx context.Context, userID string) (bool, error)
}

// HTTPRemote implements Remote with the package-level endpoint functions
type HTTPRemote struct{}

// NewHTTPRemote creates a Remote backed by the shared HTTP client
func NewHTTPRemote() *HTTPRemote {
	return &HTTPRemote{}
}

var _ Remote = (*HTTPRemote)(nil)

func (HTTPRemote) ListPosts(ctx context.Context, page, limit int, userID string) (*entity.RawPage, error) {
	return ListPosts(ctx, page, limit, userID)
}

func (HTTPRemote) GetPost(ctx context.Context, postID string) (*entity.RawPost, error) {
	return GetPost(ctx, postID)
}

func (HTTPRemote) CreatePost(ctx context.Context, req CreatePostRequest) (*entity.RawPost, error) {
	return CreatePost(ctx, req)
}

func (HTTPRemote) UpdatePost(ctx context.Context, postID, text string) (*entity.RawPost, error) {
	return UpdatePost(ctx, postID, text)
}

func (HTTPRemote) DeletePost(ctx context.Context, postID string) error {
	return DeletePost(ctx, postID)
}

func (HTTPRemote) SetLike(ctx context.Context, postID string, liked bool) (*entity.RawLikeState, error) {
	return SetLike(ctx, postID, liked)
}

func (HTTPRemote) ListComments(ctx context.Context, postID string, limit, offset int) ([]entity.RawComment, error) {
	return ListComments(ctx, postID, limit, offset)
}

func (HTTPRemote) CreateComment(ctx context.Context, postID, text string) (*entity.RawComment, error) {
	return CreateComment(ctx, postID, text)
}

func (HTTPRemote) UpdateComment(ctx context.Context, postID, commentID, text string) (*entity.RawComment, error) {
	return UpdateComment(ctx, postID, commentID, text)
}

func (HTTPRemote) DeleteComment(ctx context.Context, postID, commentID string) error {
	return DeleteComment(ctx, postID, commentID)
}

func (HTTPRemote) ListThreads(ctx context.Context) ([]entity.RawThread, error) {
	return ListThreads(ctx)
}

func (HTTPRemote) OpenThread(ctx context.Context, userID string) (*entity.RawThread, error) {
	return OpenThread(ctx, userID)
}

func (HTTPRemote) ListMessages(ctx context.Context, threadID string) ([]entity.RawMessage, error) {
	return ListMessages(ctx, threadID)
}

func (HTTPRemote) SendMessage(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
	return SendMessage(ctx, threadID, text)
}

func (HTTPRemote) GetMe(ctx context.Context) (*entity.RawUser, error) {
	return GetMe(ctx)
}

func (HTTPRemote) UpdateMe(ctx context.Context, req UpdateProfileRequest) (*entity.RawUser, error) {
	return UpdateMe(ctx, req)
}

func (HTTPRemote) SearchUsers(ctx context.Context, query string) ([]entity.RawUser, error) {
	return SearchUsers(ctx, query)
}

func (HTTPRemote) GetUser(ctx context.Context, userID string) (*entity.RawUser, error) {
	return GetUser(ctx, userID)
}

func (HTTPRemote) ToggleFollow(ctx context.Context, userID string) (bool, error) {
	return ToggleFollow(ctx, userID)
}
