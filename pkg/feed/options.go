package feed

import (
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/messages"
)

const (
	DefaultPageSize     = 10
	MaxPageSize         = 30
	DefaultCommentLimit = 3
	MaxCommentLimit     = 50

	// FeedView is the name of the view Core mounts for the global feed
	FeedView = "feed"
)

// Options configures a Core. Zero values are replaced with defaults.
type Options struct {
	ViewerID       string
	Viewer         string
	PageSize       int
	CommentLimit   int
	ReconcileLikes bool
	Messages       messages.Options
}

// OptionsFromConfig reads Options from the loaded configuration
func OptionsFromConfig(viewerID, viewerName string) Options {
	return Options{
		ViewerID:       viewerID,
		Viewer:         viewerName,
		PageSize:       config.GetInt("feed.page_size"),
		CommentLimit:   config.GetInt("comments.page_size"),
		ReconcileLikes: config.GetBool("mutations.reconcile_likes"),
		Messages:       messages.OptionsFromConfig(),
	}
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	o.PageSize = min(o.PageSize, MaxPageSize)
	if o.CommentLimit <= 0 {
		o.CommentLimit = DefaultCommentLimit
	}
	return o
}
