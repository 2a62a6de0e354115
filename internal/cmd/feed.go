package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/feed"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/output"
	"github.com/zfogg/feedsync/pkg/realtime"
)

var (
	feedPage     int
	feedPages    int
	feedPageSize int
	feedUser     string
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Browse the post feed",
}

var feedListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show one page of the feed",
	RunE: withSession(func(ctx context.Context, s *session) error {
		view := feedView(s)
		hasMore, err := view.LoadPage(ctx, feedPage, pageSize())
		if err != nil {
			return err
		}
		if err := output.PrintPosts(view.Posts()); err != nil {
			return err
		}
		if hasMore && output.GetOutputFormat() != output.FormatJSON {
			output.PrintInfo("More posts available: --page %d", view.Page()+1)
		}
		return nil
	}),
}

var feedMoreCmd = &cobra.Command{
	Use:   "all",
	Short: "Load pages until the feed is exhausted or --pages is reached",
	RunE: withSession(func(ctx context.Context, s *session) error {
		view := feedView(s)
		for i := 0; i < feedPages; i++ {
			hasMore, err := view.LoadMore(ctx)
			if err != nil {
				return err
			}
			if !hasMore {
				break
			}
		}
		return output.PrintPosts(view.Posts())
	}),
}

var feedWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the feed, printing new posts as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := interruptContext(cmd.Context())
		defer cancel()

		view := feedView(s)
		loadCtx, loadCancel := requestContext(ctx)
		_, err = view.LoadPage(loadCtx, 1, pageSize())
		loadCancel()
		if err != nil {
			return err
		}

		posts := view.Posts()
		if err := output.PrintPosts(posts); err != nil {
			return err
		}
		var mu sync.Mutex
		seen := lo.SliceToMap(posts, func(p entity.Post) (string, struct{}) { return p.ID, struct{}{} })

		fresh := make(chan []entity.Post, 8)
		unsubscribe := view.Subscribe(func(posts []entity.Post) {
			mu.Lock()
			defer mu.Unlock()
			added := lo.Filter(posts, func(p entity.Post, _ int) bool {
				_, ok := seen[p.ID]
				return !ok
			})
			if len(added) == 0 {
				return
			}
			for _, p := range added {
				seen[p.ID] = struct{}{}
			}
			select {
			case fresh <- added:
			default:
				logger.Debug("Dropping feed update, printer is behind", "posts", len(added))
			}
		})
		defer unsubscribe()

		schedule := config.GetString("feed.refresh_schedule")
		if schedule != "" {
			r, err := feed.NewRefresher(view, schedule, config.GetSeconds("api.timeout"))
			if err != nil {
				return err
			}
			r.Start()
			defer r.Stop()
		}

		if config.GetBool("realtime.enabled") {
			rt := realtime.NewClient(realtime.ConfigFromConfig())
			if err := rt.Connect(s.creds.AccessToken); err != nil {
				output.PrintWarning("Realtime unavailable: %v", err)
			} else {
				detach := realtime.Bridge(rt, s.core, 10*time.Second)
				defer rt.Disconnect()
				defer detach()
			}
		}

		output.PrintInfo("Watching the feed, Ctrl-C to stop")
		for {
			select {
			case <-ctx.Done():
				return nil
			case added := <-fresh:
				if err := output.PrintPosts(added); err != nil {
					return err
				}
			}
		}
	},
}

func feedView(s *session) *feed.View {
	if feedUser == "" {
		return s.core.Feed()
	}
	return s.core.Mount("profile:"+feedUser, feedUser)
}

func pageSize() int {
	if feedPageSize > 0 {
		return feedPageSize
	}
	return config.GetInt("feed.page_size")
}

func init() {
	feedCmd.PersistentFlags().IntVar(&feedPageSize, "size", 0, "Posts per page (default: feed.page_size)")
	feedCmd.PersistentFlags().StringVar(&feedUser, "user", "", "Only show posts by this user id")
	feedListCmd.Flags().IntVar(&feedPage, "page", 1, "Page number")
	feedMoreCmd.Flags().IntVar(&feedPages, "pages", 5, "Maximum pages to load")

	feedCmd.AddCommand(feedListCmd)
	feedCmd.AddCommand(feedMoreCmd)
	feedCmd.AddCommand(feedWatchCmd)
}
