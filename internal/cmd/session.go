package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/pkg/api"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/credentials"
	"github.com/zfogg/feedsync/pkg/errors"
	"github.com/zfogg/feedsync/pkg/feed"
	"github.com/zfogg/feedsync/pkg/profile"
)

// session is the sync core for one command invocation
type session struct {
	creds    *credentials.Credentials
	core     *feed.Core
	profiles *profile.Service
}

// openSession requires a valid login and builds the core around it
func openSession() (*session, error) {
	creds, err := credentials.Load()
	if err != nil {
		return nil, err
	}
	if !creds.IsValid() {
		return nil, errors.Unauthorized()
	}

	remote := api.NewHTTPRemote()
	viewerID := creds.Viewer()
	profiles, err := profile.NewServiceFromConfig(remote, viewerID)
	if err != nil {
		return nil, err
	}

	return &session{
		creds:    creds,
		core:     feed.NewCore(remote, feed.OptionsFromConfig(viewerID, creds.Username)),
		profiles: profiles,
	}, nil
}

func (s *session) Close() {
	s.core.Close()
	s.profiles.Close()
}

// withSession opens a session for the duration of fn
func withSession(fn func(ctx context.Context, s *session) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := requestContext(cmd.Context())
		defer cancel()
		return fn(ctx, s)
	}
}

// requestContext bounds a one-shot command by api.timeout
func requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	timeout := config.GetSeconds("api.timeout")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

// interruptContext is cancelled on Ctrl-C, for long running commands
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
