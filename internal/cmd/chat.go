package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zfogg/circle/cli/pkg/formatter"
	"github.com/zfogg/circle/cli/pkg/models"
	"github.com/zfogg/circle/cli/pkg/output"
	"github.com/zfogg/circle/cli/pkg/poll"
)

var (
	chatWatch bool
	chatYes   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Direct messages",
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your chat rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		rooms, err := svc.Chat.Rooms(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintList("Chats", formatter.RoomTable(rooms))
	},
}

var chatOpenCmd = &cobra.Command{
	Use:   "open <user-id>",
	Short: "Open or create a one-to-one chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		id, err := svc.Chat.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		output.PrintSuccess("Chat %s", id)
		return nil
	},
}

var chatViewCmd = &cobra.Command{
	Use:   "view <conversation-id>",
	Short: "Show a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		me := session.UserID()
		render := func(conv *models.Conversation) error {
			return formatter.PrintConversation(conv, me)
		}

		if chatWatch {
			return watch(cmd, func(ctx context.Context, l poll.Listener[*models.Conversation]) (*poll.Handle, error) {
				return svc.Chat.Watch(ctx, args[0], l)
			}, render)
		}

		conv, err := svc.Chat.Conversation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(conv)
	},
}

var chatSendCmd = &cobra.Command{
	Use:   "send <conversation-id> <message>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if _, err := svc.Chat.Send(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		output.PrintSuccess("Sent")
		return nil
	},
}

var chatDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if !chatYes {
			ok, err := prompt.Confirm("Delete conversation " + args[0] + "?")
			if err != nil || !ok {
				return err
			}
		}
		if err := svc.Chat.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Conversation deleted")
		return nil
	},
}

func init() {
	chatViewCmd.Flags().BoolVarP(&chatWatch, "watch", "w", false, "Keep the conversation open and poll for new messages")
	chatDeleteCmd.Flags().BoolVarP(&chatYes, "yes", "y", false, "Skip confirmation")

	chatCmd.AddCommand(chatListCmd)
	chatCmd.AddCommand(chatOpenCmd)
	chatCmd.AddCommand(chatViewCmd)
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatDeleteCmd)
}
