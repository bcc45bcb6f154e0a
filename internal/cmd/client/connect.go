package client

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewConnectCommand constructs the `connect` command.
func NewConnectCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a connection and print its id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			token, _ := cmd.Flags().GetString("token")
			var resp map[string]string
			if err := postJSON(baseURL, "/v1/connect",
				map[string]string{"userId": userID, "token": token}, &resp); err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
		},
	}
	cmd.Flags().String("user-id", "", "User id (trusted mode)")
	cmd.Flags().String("token", "", "JWT bearer token")
	return cmd
}

// NewSubscribeCommand constructs the `subscribe` command.
func NewSubscribeCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe a connection to event types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			connID, _ := cmd.Flags().GetString("connection-id")
			types, _ := cmd.Flags().GetStringArray("type")
			chans, _ := cmd.Flags().GetStringArray("channel")
			kvs, _ := cmd.Flags().GetStringArray("filter")
			expr, _ := cmd.Flags().GetString("filter-expr")
			filters, err := parseKVFilters(kvs)
			if err != nil {
				return err
			}
			var resp map[string]any
			if err := postJSON(baseURL, "/v1/subscribe", map[string]any{
				"connectionId": connID,
				"eventTypes":   types,
				"channels":     chans,
				"filters":      filters,
				"filterExpr":   expr,
			}, &resp); err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
		},
	}
	cmd.Flags().String("connection-id", "", "Connection id from `connect`")
	cmd.Flags().StringArray("type", nil, "Event type (repeatable)")
	cmd.Flags().StringArray("channel", []string{"livePush"}, "Delivery channel (repeatable)")
	cmd.Flags().StringArray("filter", nil, "Exact-match payload filter key=value (repeatable)")
	cmd.Flags().String("filter-expr", "", "CEL filter expression")
	return cmd
}

// NewUnsubscribeCommand constructs the `unsubscribe` command.
func NewUnsubscribeCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unsubscribe",
		Short: "Remove event types or channels from a connection's subscriptions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			connID, _ := cmd.Flags().GetString("connection-id")
			types, _ := cmd.Flags().GetStringArray("type")
			chans, _ := cmd.Flags().GetStringArray("channel")
			return postJSON(baseURL, "/v1/unsubscribe", map[string]any{
				"connectionId": connID,
				"eventTypes":   types,
				"channels":     chans,
			}, nil)
		},
	}
	cmd.Flags().String("connection-id", "", "Connection id from `connect`")
	cmd.Flags().StringArray("type", nil, "Event type to remove (repeatable)")
	cmd.Flags().StringArray("channel", nil, "Channel to remove (repeatable)")
	return cmd
}
