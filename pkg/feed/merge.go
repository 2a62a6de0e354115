package feed

import (
	"github.com/samber/lo"
	"github.com/zfogg/feedsync/pkg/entity"
)

// MergePage folds one fetched page into an existing ordered list. Items are
// unioned by id with the page winning on conflict, then sorted canonically.
// hasMore is derived from the server-reported total, never from the merged
// length, because the merged list may already hold items from other pages or
// other views. Merging the same page twice gives the same result. A View
// writes the merged list back to the cache as the set of posts it holds.
func MergePage(existing, page []entity.Post, requestedPage, pageSize, total int) ([]entity.Post, bool) {
	byID := lo.KeyBy(existing, func(p entity.Post) string { return p.ID })
	for _, p := range page {
		byID[p.ID] = p
	}

	merged := lo.Values(byID)
	entity.SortPosts(merged)

	return merged, requestedPage*pageSize < total
}

// clampPage applies the server's paging bounds
func clampPage(page, size int) (int, int) {
	return max(1, page), min(MaxPageSize, max(1, size))
}

// clampCommentLimit applies the server's comment paging bounds
func clampCommentLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultCommentLimit
	}
	return min(MaxCommentLimit, limit), max(0, offset)
}
