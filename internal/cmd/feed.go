package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/zfogg/circle/cli/pkg/formatter"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/output"
	"github.com/zfogg/circle/cli/pkg/poll"
)

var (
	feedPage    int
	feedWatch   bool
	feedRefresh bool
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "View your home feed",
	Long:  "Posts by you and your connections, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}

		render := func(posts []models.Post) error {
			return output.PrintList("Home feed", formatter.PostTable(posts))
		}

		if feedWatch {
			return watch(cmd, func(ctx context.Context, l poll.Listener[[]models.Post]) (*poll.Handle, error) {
				return svc.Feed.Watch(ctx, l)
			}, render)
		}

		var posts []models.Post
		if feedRefresh && feedPage == 0 {
			posts, err = svc.Feed.Refresh(cmd.Context())
		} else {
			posts, err = svc.Feed.Home(cmd.Context(), feedPage)
		}
		if err != nil {
			return err
		}
		return render(posts)
	},
}

func init() {
	feedCmd.Flags().IntVar(&feedPage, "page", 0, "Page number (0 is the newest)")
	feedCmd.Flags().BoolVarP(&feedWatch, "watch", "w", false, "Keep the feed open and refresh it periodically")
	feedCmd.Flags().BoolVar(&feedRefresh, "refresh", false, "Bypass the cache")
}
