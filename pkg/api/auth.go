package api

import (
	"context"

	"github.com/zfogg/feedsync/pkg/client"
	"github.com/zfogg/feedsync/pkg/logger"
)

// Login authenticates with an email or username and password
func Login(ctx context.Context, identifier, password string) (*AuthResponse, error) {
	logger.Debug("Attempting login", "identifier", identifier)

	var out AuthResponse
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetBody(LoginRequest{Identifier: identifier, Email: identifier, Password: password}).
		SetResult(&out).
		Post("/auth/login")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	logger.Debug("Login successful")
	return &out, nil
}

// Signup registers an account and returns its token
func Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	logger.Debug("Signing up", "username", req.Username)

	var out AuthResponse
	resp, err := client.GetClient().
		R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/auth/signup")

	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	return &out, nil
}
