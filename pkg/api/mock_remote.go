package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/zfogg/feedsync/pkg/entity"
)

// MockCall records a method call for assertion
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockRemote is a Remote for tests. Set the XxxFunc fields to customize a
// method; unset methods return DefaultError or an empty success.
type MockRemote struct {
	mu sync.Mutex

	// Call tracking
	Calls []MockCall

	ListPostsFunc     func(ctx context.Context, page, limit int, userID string) (*entity.RawPage, error)
	GetPostFunc       func(ctx context.Context, postID string) (*entity.RawPost, error)
	CreatePostFunc    func(ctx context.Context, req CreatePostRequest) (*entity.RawPost, error)
	UpdatePostFunc    func(ctx context.Context, postID, text string) (*entity.RawPost, error)
	DeletePostFunc    func(ctx context.Context, postID string) error
	SetLikeFunc       func(ctx context.Context, postID string, liked bool) (*entity.RawLikeState, error)
	ListCommentsFunc  func(ctx context.Context, postID string, limit, offset int) ([]entity.RawComment, error)
	CreateCommentFunc func(ctx context.Context, postID, text string) (*entity.RawComment, error)
	UpdateCommentFunc func(ctx context.Context, postID, commentID, text string) (*entity.RawComment, error)
	DeleteCommentFunc func(ctx context.Context, postID, commentID string) error
	ListThreadsFunc   func(ctx context.Context) ([]entity.RawThread, error)
	OpenThreadFunc    func(ctx context.Context, userID string) (*entity.RawThread, error)
	ListMessagesFunc  func(ctx context.Context, threadID string) ([]entity.RawMessage, error)
	SendMessageFunc   func(ctx context.Context, threadID, text string) (*entity.RawMessage, error)
	GetMeFunc         func(ctx context.Context) (*entity.RawUser, error)
	UpdateMeFunc      func(ctx context.Context, req UpdateProfileRequest) (*entity.RawUser, error)
	SearchUsersFunc   func(ctx context.Context, query string) ([]entity.RawUser, error)
	GetUserFunc       func(ctx context.Context, userID string) (*entity.RawUser, error)
	ToggleFollowFunc  func(ctx context.Context, userID string) (bool, error)

	// Default responses for simple cases
	DefaultError error
}

var _ Remote = (*MockRemote)(nil)

// NewMockRemote creates a new mock with no overrides
func NewMockRemote() *MockRemote {
	return &MockRemote{
		Calls: make([]MockCall, 0),
	}
}

func (m *MockRemote) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCalls returns all recorded calls (thread-safe)
func (m *MockRemote) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// GetCallsForMethod returns calls for a specific method
func (m *MockRemote) GetCallsForMethod(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []MockCall
	for _, call := range m.Calls {
		if call.Method == method {
			result = append(result, call)
		}
	}
	return result
}

// Reset clears all recorded calls
func (m *MockRemote) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]MockCall, 0)
}

// AssertCalled checks if a method was called at least once
func (m *MockRemote) AssertCalled(method string) bool {
	return len(m.GetCallsForMethod(method)) > 0
}

// AssertNotCalled checks if a method was never called
func (m *MockRemote) AssertNotCalled(method string) bool {
	return len(m.GetCallsForMethod(method)) == 0
}

// AssertCallCount checks if a method was called exactly n times
func (m *MockRemote) AssertCallCount(method string, count int) bool {
	return len(m.GetCallsForMethod(method)) == count
}

// ============================================================================
// Posts
// ============================================================================

func (m *MockRemote) ListPosts(ctx context.Context, page, limit int, userID string) (*entity.RawPage, error) {
	m.recordCall("ListPosts", page, limit, userID)
	if m.ListPostsFunc != nil {
		return m.ListPostsFunc(ctx, page, limit, userID)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return &entity.RawPage{Items: []entity.RawPost{}}, nil
}

func (m *MockRemote) GetPost(ctx context.Context, postID string) (*entity.RawPost, error) {
	m.recordCall("GetPost", postID)
	if m.GetPostFunc != nil {
		return m.GetPostFunc(ctx, postID)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: GetPost not configured")
}

func (m *MockRemote) CreatePost(ctx context.Context, req CreatePostRequest) (*entity.RawPost, error) {
	m.recordCall("CreatePost", req)
	if m.CreatePostFunc != nil {
		return m.CreatePostFunc(ctx, req)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: CreatePost not configured")
}

func (m *MockRemote) UpdatePost(ctx context.Context, postID, text string) (*entity.RawPost, error) {
	m.recordCall("UpdatePost", postID, text)
	if m.UpdatePostFunc != nil {
		return m.UpdatePostFunc(ctx, postID, text)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: UpdatePost not configured")
}

func (m *MockRemote) DeletePost(ctx context.Context, postID string) error {
	m.recordCall("DeletePost", postID)
	if m.DeletePostFunc != nil {
		return m.DeletePostFunc(ctx, postID)
	}
	return m.DefaultError
}

func (m *MockRemote) SetLike(ctx context.Context, postID string, liked bool) (*entity.RawLikeState, error) {
	m.recordCall("SetLike", postID, liked)
	if m.SetLikeFunc != nil {
		return m.SetLikeFunc(ctx, postID, liked)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, nil
}

// ============================================================================
// Comments
// ============================================================================

func (m *MockRemote) ListComments(ctx context.Context, postID string, limit, offset int) ([]entity.RawComment, error) {
	m.recordCall("ListComments", postID, limit, offset)
	if m.ListCommentsFunc != nil {
		return m.ListCommentsFunc(ctx, postID, limit, offset)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return []entity.RawComment{}, nil
}

func (m *MockRemote) CreateComment(ctx context.Context, postID, text string) (*entity.RawComment, error) {
	m.recordCall("CreateComment", postID, text)
	if m.CreateCommentFunc != nil {
		return m.CreateCommentFunc(ctx, postID, text)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: CreateComment not configured")
}

func (m *MockRemote) UpdateComment(ctx context.Context, postID, commentID, text string) (*entity.RawComment, error) {
	m.recordCall("UpdateComment", postID, commentID, text)
	if m.UpdateCommentFunc != nil {
		return m.UpdateCommentFunc(ctx, postID, commentID, text)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: UpdateComment not configured")
}

func (m *MockRemote) DeleteComment(ctx context.Context, postID, commentID string) error {
	m.recordCall("DeleteComment", postID, commentID)
	if m.DeleteCommentFunc != nil {
		return m.DeleteCommentFunc(ctx, postID, commentID)
	}
	return m.DefaultError
}

// ============================================================================
// Chats
// ============================================================================

func (m *MockRemote) ListThreads(ctx context.Context) ([]entity.RawThread, error) {
	m.recordCall("ListThreads")
	if m.ListThreadsFunc != nil {
		return m.ListThreadsFunc(ctx)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return []entity.RawThread{}, nil
}

func (m *MockRemote) OpenThread(ctx context.Context, userID string) (*entity.RawThread, error) {
	m.recordCall("OpenThread", userID)
	if m.OpenThreadFunc != nil {
		return m.OpenThreadFunc(ctx, userID)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: OpenThread not configured")
}

func (m *MockRemote) ListMessages(ctx context.Context, threadID string) ([]entity.RawMessage, error) {
	m.recordCall("ListMessages", threadID)
	if m.ListMessagesFunc != nil {
		return m.ListMessagesFunc(ctx, threadID)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return []entity.RawMessage{}, nil
}

func (m *MockRemote) SendMessage(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
	m.recordCall("SendMessage", threadID, text)
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, threadID, text)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: SendMessage not configured")
}

// ============================================================================
// Users
// ============================================================================

func (m *MockRemote) GetMe(ctx context.Context) (*entity.RawUser, error) {
	m.recordCall("GetMe")
	if m.GetMeFunc != nil {
		return m.GetMeFunc(ctx)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: GetMe not configured")
}

func (m *MockRemote) UpdateMe(ctx context.Context, req UpdateProfileRequest) (*entity.RawUser, error) {
	m.recordCall("UpdateMe", req)
	if m.UpdateMeFunc != nil {
		return m.UpdateMeFunc(ctx, req)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: UpdateMe not configured")
}

func (m *MockRemote) SearchUsers(ctx context.Context, query string) ([]entity.RawUser, error) {
	m.recordCall("SearchUsers", query)
	if m.SearchUsersFunc != nil {
		return m.SearchUsersFunc(ctx, query)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return []entity.RawUser{}, nil
}

func (m *MockRemote) GetUser(ctx context.Context, userID string) (*entity.RawUser, error) {
	m.recordCall("GetUser", userID)
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, userID)
	}
	if m.DefaultError != nil {
		return nil, m.DefaultError
	}
	return nil, fmt.Errorf("mock: GetUser not configured")
}

func (m *MockRemote) ToggleFollow(ctx context.Context, userID string) (bool, error) {
	m.recordCall("ToggleFollow", userID)
	if m.ToggleFollowFunc != nil {
		return m.ToggleFollowFunc(ctx, userID)
	}
	return false, m.DefaultError
}
