package api

import (
	"context"

	"github.com/zfogg/feedsync/pkg/client"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/logger"
)

// GetMe returns the viewer's profile including followingIds
func GetMe(ctx context.Context) (*entity.RawUser, error) {
	logger.Debug("Fetching own profile")

	var out entity.RawUser
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetResult(&out).
		Get("/users/me")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateMe patches the viewer's profile
func UpdateMe(ctx context.Context, req UpdateProfileRequest) (*entity.RawUser, error) {
	logger.Debug("Updating own profile")

	var out entity.RawUser
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Patch("/users/me")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// SearchUsers finds users by username or name
func SearchUsers(ctx context.Context, query string) ([]entity.RawUser, error) {
	logger.Debug("Searching users", "query", query)

	var out []entity.RawUser
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetResult(&out).
		Get("/users/search")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return out, nil
}

// GetUser fetches a public profile
func GetUser(ctx context.Context, userID string) (*entity.RawUser, error) {
	logger.Debug("Fetching user", "user_id", userID)

	var out entity.RawUser
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", userID).
		SetResult(&out).
		Get("/users/{id}")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// ToggleFollow flips the viewer's follow of userID and returns the new state
func ToggleFollow(ctx context.Context, userID string) (bool, error) {
	logger.Debug("Toggling follow", "user_id", userID)

	var out FollowResponse
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", userID).
		SetResult(&out).
		Post("/users/{id}/follow")

	if err := CheckResponse(resp, err); err != nil {
		return false, err
	}

	return out.Following, nil
}
