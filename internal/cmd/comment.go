package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/pkg/output"
)

var (
	commentLimit  int
	commentOffset int
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Comment commands",
	Long:  "List, add, edit and delete comments on posts",
}

var commentListCmd = &cobra.Command{
	Use:   "list <post-id>",
	Short: "List comments on a post, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		comments, err := s.core.LoadComments(ctx, args[0], commentLimit, commentOffset)
		if err != nil {
			return err
		}
		return output.PrintComments(comments)
	}),
}

var commentAddCmd = &cobra.Command{
	Use:   "add <post-id> <text>...",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		if _, err := s.core.RefreshPost(ctx, args[0]); err != nil {
			return err
		}
		c, err := s.core.CreateComment(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.PrintJSON(c)
		}
		output.PrintSuccess("Comment added %s", c.ID)
		return nil
	}),
}

var commentEditCmd = &cobra.Command{
	Use:   "edit <post-id> <comment-id> <text>...",
	Short: "Edit your comment",
	Args:  cobra.MinimumNArgs(3),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		c, err := s.core.UpdateComment(ctx, args[0], args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.PrintJSON(c)
		}
		output.PrintSuccess("Comment updated")
		return nil
	}),
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <post-id> <comment-id>",
	Short: "Delete your comment",
	Args:  cobra.ExactArgs(2),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		if err := s.core.DeleteComment(ctx, args[0], args[1]); err != nil {
			return err
		}
		output.PrintSuccess("Comment deleted")
		return nil
	}),
}

func init() {
	commentListCmd.Flags().IntVar(&commentLimit, "limit", 0, "Comments per page (default: comments.page_size, max 50)")
	commentListCmd.Flags().IntVar(&commentOffset, "offset", 0, "Number of newest comments to skip")

	commentCmd.AddCommand(commentListCmd)
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentEditCmd)
	commentCmd.AddCommand(commentDeleteCmd)
}
