package cmd

import (
	"github.com/spf13/cobra"
	"github.com/zfogg/circle/cli/pkg/formatter"
	"github.com/zfogg/circle/cli/pkg/output"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Manage connections",
	Long:  "Send, answer and list connection requests",
}

var connectRequestCmd = &cobra.Command{
	Use:   "request <user-id>",
	Short: "Ask someone to connect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		req, err := svc.Connections.Request(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		output.PrintSuccess("Request %s sent", req.ID)
		return nil
	},
}

var connectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		conns, err := svc.Connections.List(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintList("Connections", formatter.ConnectionTable(conns))
	},
}

var connectIncomingCmd = &cobra.Command{
	Use:   "incoming",
	Short: "List pending requests sent to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		reqs, err := svc.Connections.Incoming(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintList("Incoming requests", formatter.RequestTable(reqs, true))
	},
}

var connectOutgoingCmd = &cobra.Command{
	Use:   "outgoing",
	Short: "List pending requests you sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		reqs, err := svc.Connections.Outgoing(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintList("Outgoing requests", formatter.RequestTable(reqs, false))
	},
}

var connectAcceptCmd = &cobra.Command{
	Use:   "accept <request-id>",
	Short: "Accept a connection request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if err := svc.Connections.Accept(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Connected")
		return nil
	},
}

var connectDeclineCmd = &cobra.Command{
	Use:   "decline <request-id>",
	Short: "Decline a connection request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if err := svc.Connections.Decline(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Request declined")
		return nil
	},
}

var connectRemoveCmd = &cobra.Command{
	Use:   "remove <user-id>",
	Short: "Remove a connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := signedIn(cmd)
		if err != nil {
			return err
		}
		if err := svc.Connections.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.PrintSuccess("Connection removed")
		return nil
	},
}

func init() {
	connectCmd.AddCommand(connectRequestCmd)
	connectCmd.AddCommand(connectListCmd)
	connectCmd.AddCommand(connectIncomingCmd)
	connectCmd.AddCommand(connectOutgoingCmd)
	connectCmd.AddCommand(connectAcceptCmd)
	connectCmd.AddCommand(connectDeclineCmd)
	connectCmd.AddCommand(connectRemoveCmd)
}
