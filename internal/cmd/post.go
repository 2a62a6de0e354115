package cmd

import (
	"context"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/output"
	"github.com/zfogg/feedsync/pkg/prompter"
)

var (
	postImage    string
	postText     string
	postComments int
	postYes      bool
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post management commands",
	Long:  "Create, view, edit, like and delete posts",
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Share a new post",
	RunE: withSession(func(ctx context.Context, s *session) error {
		text := postText
		if text == "" {
			var err error
			if text, err = prompter.Default().Multiline("Caption:"); err != nil {
				return err
			}
		}
		post, err := s.core.CreatePost(ctx, postImage, text)
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.PrintJSON(post)
		}
		output.PrintSuccess("Posted %s", post.ID)
		return nil
	}),
}

var postShowCmd = &cobra.Command{
	Use:   "show <post-id>",
	Short: "Show a post with its latest comments",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		post, err := s.core.RefreshPost(ctx, args[0])
		if err != nil {
			return err
		}
		comments, err := s.core.LoadComments(ctx, post.ID, postComments, 0)
		if err != nil {
			return err
		}
		if p, ok := s.core.Store().GetByID(post.ID); ok {
			post = p
		}
		return output.PrintPost(post, comments)
	}),
}

var postEditCmd = &cobra.Command{
	Use:   "edit <post-id>",
	Short: "Edit the caption of your post",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		current, err := s.core.RefreshPost(ctx, args[0])
		if err != nil {
			return err
		}
		text := postText
		if text == "" {
			output.PrintInfo("Current caption: %s", current.Text)
			if text, err = prompter.Default().Multiline("New caption:"); err != nil {
				return err
			}
		}
		updated, err := s.core.UpdatePost(ctx, current.ID, text)
		if err != nil {
			return err
		}
		return printMutatedPost(updated, "Post updated")
	}),
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Delete your post",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		if _, err := s.core.RefreshPost(ctx, args[0]); err != nil {
			return err
		}
		if !postYes {
			ok, err := prompter.Default().Confirm("Delete post " + args[0] + "?")
			if err != nil || !ok {
				return err
			}
		}
		if err := s.core.DeletePost(ctx, args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Post deleted")
		return nil
	}),
}

var postLikeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like a post",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		return setLike(ctx, s, args[0], true)
	}),
}

var postUnlikeCmd = &cobra.Command{
	Use:   "unlike <post-id>",
	Short: "Remove your like from a post",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		return setLike(ctx, s, args[0], false)
	}),
}

func setLike(ctx context.Context, s *session, postID string, liked bool) error {
	if _, err := s.core.RefreshPost(ctx, postID); err != nil {
		return err
	}
	var err error
	if liked {
		err = s.core.Like(ctx, postID)
	} else {
		err = s.core.Unlike(ctx, postID)
	}
	if err != nil {
		return err
	}
	post, _ := s.core.Store().GetByID(postID)
	return printMutatedPost(post, lo.Ternary(liked, "Liked", "Unliked"))
}

func printMutatedPost(p entity.Post, msg string) error {
	if output.GetOutputFormat() == output.FormatJSON {
		return output.PrintJSON(p)
	}
	output.PrintSuccess("%s (%d likes)", msg, p.LikesCount)
	return nil
}

// withArgs is withSession for commands that take positional arguments
func withArgs(fn func(ctx context.Context, s *session, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			return fn(ctx, s, args)
		})(cmd, args)
	}
}

func init() {
	postCreateCmd.Flags().StringVar(&postImage, "image", "", "Image URL (required)")
	postCreateCmd.Flags().StringVar(&postText, "text", "", "Caption (prompted when empty)")
	postEditCmd.Flags().StringVar(&postText, "text", "", "New caption (prompted when empty)")
	postShowCmd.Flags().IntVar(&postComments, "comments", 0, "Number of comments to show (default: comments.page_size)")
	postDeleteCmd.Flags().BoolVarP(&postYes, "yes", "y", false, "Skip confirmation")

	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postEditCmd)
	postCmd.AddCommand(postDeleteCmd)
	postCmd.AddCommand(postLikeCmd)
	postCmd.AddCommand(postUnlikeCmd)
}
