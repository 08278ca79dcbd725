package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/circle/cli/pkg/formatter"
	"github.com/zfogg/circle/cli/pkg/output"
	"github.com/zfogg/circle/cli/pkg/service"
)

var (
	postImage string
	postYes   bool
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post management commands",
	Long:  "Create, view, react to and delete posts",
}

var postCreateCmd = &cobra.Command{
	Use:   "create [text]",
	Short: "Publish a post",
	Long: `Publish a post. Text is read interactively when omitted.
--image accepts a file path, a data URI or raw base64.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}

		content := strings.Join(args, " ")
		if content == "" && postImage == "" {
			if content, err = prompt.Multiline("Post", 50); err != nil {
				return err
			}
		}

		post, err := svc.Posts.Create(cmd.Context(), content, postImage)
		if err != nil {
			return err
		}
		output.PrintSuccess("Posted %s", post.ID)
		return nil
	},
}

var postShowCmd = &cobra.Command{
	Use:   "show <post-id>",
	Short: "Show a post with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		detail, err := svc.Posts.Show(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return formatter.PrintPost(detail.Post, detail.Comments)
	},
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Delete one of your posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if !postYes {
			ok, err := prompt.Confirm("Delete post " + args[0] + "?")
			if err != nil || !ok {
				return err
			}
		}
		if err := svc.Posts.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Post deleted")
		return nil
	},
}

var postSavedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List your saved posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		posts, err := svc.Posts.Saved(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintList("Saved posts", formatter.PostTable(posts))
	},
}

// reactionCmd builds the like/unlike/save/unsave commands, which differ
// only in the service call and the message.
func reactionCmd(use, short, done string, act func(*service.PostService, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <post-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := signedIn(cmd)
			if err != nil {
				return err
			}
			if err := act(svc.Posts, cmd.Context(), args[0]); err != nil {
				return err
			}
			output.PrintSuccess(done)
			return nil
		},
	}
}

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Comment on posts",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <post-id> <text>",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		c, err := svc.Posts.AddComment(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		output.PrintSuccess("Comment %s added", c.ID)
		return nil
	},
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <comment-id>",
	Short: "Delete one of your comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if err := svc.Posts.DeleteComment(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Comment deleted")
		return nil
	},
}

func init() {
	postCreateCmd.Flags().StringVar(&postImage, "image", "", "Attach an image")
	postDeleteCmd.Flags().BoolVarP(&postYes, "yes", "y", false, "Skip confirmation")

	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postDeleteCmd)
	postCmd.AddCommand(postSavedCmd)
	postCmd.AddCommand(reactionCmd("like", "Like a post", "Liked", (*service.PostService).Like))
	postCmd.AddCommand(reactionCmd("unlike", "Remove your like", "Like removed", (*service.PostService).Unlike))
	postCmd.AddCommand(reactionCmd("save", "Bookmark a post", "Saved", (*service.PostService).Save))
	postCmd.AddCommand(reactionCmd("unsave", "Remove a bookmark", "Bookmark removed", (*service.PostService).Unsave))

	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentDeleteCmd)
}
