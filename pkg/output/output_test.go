package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/entity"
)

func capture(t *testing.T, format string) *bytes.Buffer {
	t.Helper()
	color.NoColor = true
	buf := &bytes.Buffer{}
	prev := Out
	Out = buf
	config.Set("output.format", format)
	t.Cleanup(func() {
		Out = prev
		config.Set("output.format", "text")
	})
	return buf
}

func samplePost() entity.Post {
	return entity.Post{
		ID:            "p1",
		Author:        entity.Author{ID: "u1", Username: "ann", Name: "Ann"},
		Text:          "hello world",
		CreatedAt:     time.Now().Add(-2 * time.Hour),
		LikesCount:    3,
		LikedByMe:     true,
		CommentsCount: 1,
	}
}

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		format  string
		isValid bool
	}{
		{"json", true},
		{"text", true},
		{"table", true},
		{"invalid", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.isValid, ValidateOutputFormat(tt.format), tt.format)
	}
}

func TestPrintPostsText(t *testing.T) {
	buf := capture(t, "text")
	require.NoError(t, PrintPosts([]entity.Post{samplePost()}))

	out := buf.String()
	assert.Contains(t, out, "Ann (@ann)")
	assert.Contains(t, out, "2h ago")
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "♥ 3")
}

func TestPrintPostsJSON(t *testing.T) {
	buf := capture(t, "json")
	require.NoError(t, PrintPosts([]entity.Post{samplePost()}))

	var decoded []entity.Post
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "p1", decoded[0].ID)
	assert.Equal(t, 3, decoded[0].LikesCount)
}

func TestPrintPostsTable(t *testing.T) {
	buf := capture(t, "table")
	require.NoError(t, PrintPosts([]entity.Post{samplePost()}))

	out := buf.String()
	assert.Contains(t, out, "LIKES")
	assert.Contains(t, out, "@ann")
}

func TestPrintMessagesMarksStatus(t *testing.T) {
	buf := capture(t, "text")
	msgs := []entity.Message{
		{ID: "m1", Text: "hi", SenderID: "u2", CreatedAt: time.Now()},
		{ID: "tmp_1", Text: "yo", SenderID: "me", CreatedAt: time.Now(), Status: entity.StatusFailed},
	}
	require.NoError(t, PrintMessages(msgs, "me"))

	out := buf.String()
	assert.Contains(t, out, "them")
	assert.Contains(t, out, "you")
	assert.Contains(t, out, "failed, retry with id tmp_1")
}

func TestEmptyListsPrintPlaceholder(t *testing.T) {
	buf := capture(t, "text")
	require.NoError(t, PrintPosts(nil))
	require.NoError(t, PrintComments(nil))
	require.NoError(t, PrintThreads(nil))
	require.NoError(t, PrintUsers(nil))

	out := buf.String()
	assert.Contains(t, out, "No posts yet.")
	assert.Contains(t, out, "No comments.")
	assert.Contains(t, out, "No conversations yet.")
	assert.Contains(t, out, "No users found.")
}

func TestAgo(t *testing.T) {
	assert.Equal(t, "-", Ago(time.Time{}))
	assert.Equal(t, "just now", Ago(time.Now()))
	assert.Equal(t, "5m ago", Ago(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3d ago", Ago(time.Now().Add(-73*time.Hour)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "a b", truncate("a\nb", 10))
}
