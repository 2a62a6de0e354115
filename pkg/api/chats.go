package api

import (
	"context"

	"github.com/zfogg/feedsync/pkg/client"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/logger"
)

// ListThreads returns the viewer's conversations
func ListThreads(ctx context.Context) ([]entity.RawThread, error) {
	logger.Debug("Listing threads")

	var out []entity.RawThread
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetResult(&out).
		Get("/chats")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return out, nil
}

// OpenThread returns the thread with userID, creating it if needed
func OpenThread(ctx context.Context, userID string) (*entity.RawThread, error) {
	logger.Debug("Opening thread", "user_id", userID)

	var out entity.RawThread
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetBody(OpenThreadRequest{UserID: userID}).
		SetResult(&out).
		Post("/chats")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}

// ListMessages returns a thread's full history, oldest first
func ListMessages(ctx context.Context, threadID string) ([]entity.RawMessage, error) {
	logger.Debug("Listing messages", "thread_id", threadID)

	var out []entity.RawMessage
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", threadID).
		SetResult(&out).
		Get("/chats/{id}/messages")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return out, nil
}

// SendMessage posts a message to a thread
func SendMessage(ctx context.Context, threadID, text string) (*entity.RawMessage, error) {
	logger.Debug("Sending message", "thread_id", threadID)

	var out entity.RawMessage
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetPathParam("id", threadID).
		SetBody(TextRequest{Text: text}).
		SetResult(&out).
		Post("/chats/{id}/messages")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}
