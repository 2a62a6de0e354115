package api

import (
	"context"
	"strconv"

	"github.com/zfogg/feedsync/pkg/client"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/logger"
)

// ListComments fetches comments on a post, newest first
func ListComments(ctx context.Context, postID string, limit, offset int) ([]entity.RawComment, error) {
	logger.Debug("Listing comments", "post_id", postID, "limit", limit, "offset", offset)

	var out []entity.RawComment
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", postID).
		SetQueryParams(map[string]string{
			"limit":  strconv.Itoa(limit),
			"offset": strconv.Itoa(offset),
		}).
		SetResult(&out).
		Get("/posts/{id}/comments")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return out, nil
}

// CreateComment adds a comment to a post
func CreateComment(ctx context.Context, postID, text string) (*entity.RawComment, error) {
	logger.Debug("Creating comment", "post_id", postID)

	var out entity.RawComment
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", postID).
		SetBody(TextRequest{Text: text}).
		SetResult(&out).
		Post("/posts/{id}/comments")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateComment replaces a comment's text
func UpdateComment(ctx context.Context, postID, commentID, text string) (*entity.RawComment, error) {
	logger.Debug("Updating comment", "post_id", postID, "comment_id", commentID)

	var out entity.RawComment
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParams(map[string]string{"id": postID, "commentId": commentID}).
		SetBody(TextRequest{Text: text}).
		SetResult(&out).
		Patch("/posts/{id}/comments/{commentId}")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteComment removes a comment
func DeleteComment(ctx context.Context, postID, commentID string) error {
	logger.Debug("Deleting comment", "post_id", postID, "comment_id", commentID)

	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParams(map[string]string{"id": postID, "commentId": commentID}).
		Delete("/posts/{id}/comments/{commentId}")

	return CheckResponse(resp, err)
}
