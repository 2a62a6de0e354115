package api

import (
	"context"
	"strconv"

	"github.com/zfogg/feedsync/pkg/client"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/logger"
)

// ListPosts fetches one page of posts, optionally restricted to one author
func ListPosts(ctx context.Context, page, limit int, userID string) (*entity.RawPage, error) {
	logger.Debug("Listing posts", "page", page, "limit", limit, "user_id", userID)

	params := map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	}
	if userID != "" {
		params["userId"] = userID
	}

	var out entity.RawPage
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("/posts")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetPost fetches a single post
func GetPost(ctx context.Context, postID string) (*entity.RawPost, error) {
	logger.Debug("Fetching post", "post_id", postID)

	var out entity.RawPost
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", postID).
		SetResult(&out).
		Get("/posts/{id}")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// CreatePost publishes a new post
func CreatePost(ctx context.Context, req CreatePostRequest) (*entity.RawPost, error) {
	logger.Debug("Creating post")

	var out entity.RawPost
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/posts")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdatePost replaces a post's text
func UpdatePost(ctx context.Context, postID, text string) (*entity.RawPost, error) {
	logger.Debug("Updating post", "post_id", postID)

	var out entity.RawPost
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", postID).
		SetBody(TextRequest{Text: text}).
		SetResult(&out).
		Patch("/posts/{id}")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeletePost deletes a post and its comments
func DeletePost(ctx context.Context, postID string) error {
	logger.Debug("Deleting post", "post_id", postID)

	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", postID).
		Delete("/posts/{id}")

	return CheckResponse(resp, err)
}

// SetLike sets the viewer's like on a post. The call is idempotent.
func SetLike(ctx context.Context, postID string, liked bool) (*entity.RawLikeState, error) {
	logger.Debug("Setting like", "post_id", postID, "liked", liked)

	var out entity.RawLikeState
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", postID).
		SetBody(LikeRequest{Liked: liked}).
		SetResult(&out).
		Post("/posts/{id}/like")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}
