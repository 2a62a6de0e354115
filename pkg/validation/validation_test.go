package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/feedsync/pkg/errors"
)

func TestPostEdit(t *testing.T) {
	text, err := PostEdit("  new caption  ")
	require.NoError(t, err)
	assert.Equal(t, "new caption", text)

	_, err = PostEdit("   ")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	var syncErr *errors.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "text", syncErr.Field)

	_, err = PostEdit(strings.Repeat("a", MaxPostText+1))
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestLengthsCountCodePoints(t *testing.T) {
	// 500 two-byte runes is 1000 bytes but still within the comment limit
	ok := strings.Repeat("é", MaxCommentText)
	_, err := Comment(ok)
	assert.NoError(t, err)

	_, err = Comment(ok + "é")
	assert.Error(t, err)
}

func TestPostCreate(t *testing.T) {
	img, text, err := PostCreate(" https://img/1.jpg ", "")
	require.NoError(t, err)
	assert.Equal(t, "https://img/1.jpg", img)
	assert.Equal(t, "", text)

	_, _, err = PostCreate("", "caption")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imageUrl")
}

func TestMessageAndProfile(t *testing.T) {
	_, err := Message("\n\t")
	assert.Error(t, err)

	msg, err := Message(" hi ")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg)

	_, _, err = Profile(strings.Repeat("n", MaxProfileName+1), "")
	assert.Error(t, err)

	name, bio, err := Profile("Ann", " likes cats ")
	require.NoError(t, err)
	assert.Equal(t, "Ann", name)
	assert.Equal(t, "likes cats", bio)
}
