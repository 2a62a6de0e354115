package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/pkg/logger"
	"github.com/zfogg/feedsync/pkg/output"
	"github.com/zfogg/feedsync/pkg/profile"
)

var (
	profileName   string
	profileBio    string
	profileAvatar string
	profilePosts  bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile and follow commands",
}

var profileMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show your profile",
	RunE: withSession(func(ctx context.Context, s *session) error {
		me, err := s.profiles.Me(ctx)
		if err != nil {
			return err
		}
		return output.PrintUser(me, false)
	}),
}

var profileShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's profile",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		if _, err := s.profiles.Me(ctx); err != nil {
			logger.Debug("Follow state unavailable", "error", err)
		}
		user, err := s.profiles.GetUser(ctx, args[0])
		if err != nil {
			return err
		}
		if err := output.PrintUser(user, s.profiles.IsFollowing(user.ID)); err != nil {
			return err
		}
		if !profilePosts {
			return nil
		}

		view := s.core.Mount("profile:"+user.ID, user.ID)
		defer view.Close()
		if _, err := view.LoadPage(ctx, 1, pageSize()); err != nil {
			return err
		}
		return output.PrintPosts(view.Posts())
	}),
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update your name, bio or avatar",
	RunE: func(cmd *cobra.Command, args []string) error {
		var upd profile.ProfileUpdate
		if cmd.Flags().Changed("name") {
			upd.Name = &profileName
		}
		if cmd.Flags().Changed("bio") {
			upd.Bio = &profileBio
		}
		if cmd.Flags().Changed("avatar") {
			upd.Avatar = &profileAvatar
		}
		if upd.Name == nil && upd.Bio == nil && upd.Avatar == nil {
			return cmd.Usage()
		}

		return withSession(func(ctx context.Context, s *session) error {
			me, err := s.profiles.UpdateMe(ctx, upd)
			if err != nil {
				return err
			}
			output.PrintSuccess("Profile updated")
			return output.PrintUser(me, false)
		})(cmd, args)
	},
}

var profileSearchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Search users by name or username",
	Args:  cobra.MinimumNArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		users, err := s.profiles.Search(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return output.PrintUsers(users)
	}),
}

var profileFollowCmd = &cobra.Command{
	Use:   "follow <user-id>",
	Short: "Follow or unfollow a user",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		if _, err := s.profiles.Me(ctx); err != nil {
			return err
		}
		following, err := s.profiles.ToggleFollow(ctx, args[0])
		if err != nil {
			return err
		}
		if following {
			output.PrintSuccess("Now following %s", args[0])
		} else {
			output.PrintSuccess("Unfollowed %s", args[0])
		}
		return nil
	}),
}

func init() {
	profileShowCmd.Flags().BoolVar(&profilePosts, "posts", false, "Also list the user's posts")
	profileUpdateCmd.Flags().StringVar(&profileName, "name", "", "Display name")
	profileUpdateCmd.Flags().StringVar(&profileBio, "bio", "", "Bio")
	profileUpdateCmd.Flags().StringVar(&profileAvatar, "avatar", "", "Avatar URL or base64 image")

	profileCmd.AddCommand(profileMeCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileUpdateCmd)
	profileCmd.AddCommand(profileSearchCmd)
	profileCmd.AddCommand(profileFollowCmd)
}
