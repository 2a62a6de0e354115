package entity

import (
	"slices"
	"strings"
)

// ComparePosts orders posts newest first, ties broken by id descending
func ComparePosts(a, b Post) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

// SortPosts sorts posts into canonical order in place
func SortPosts(posts []Post) {
	slices.SortFunc(posts, ComparePosts)
}

// CompareComments orders comments newest first, like the server does
func CompareComments(a, b Comment) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

// CompareMessages orders messages oldest first
func CompareMessages(a, b Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortMessages sorts messages oldest first in place
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, CompareMessages)
}
