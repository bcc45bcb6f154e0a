package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewPublishCommand constructs the `publish` command.
func NewPublishCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			typ, _ := cmd.Flags().GetString("type")
			origin, _ := cmd.Flags().GetString("origin")
			target, _ := cmd.Flags().GetString("target")
			data, _ := cmd.Flags().GetString("data")
			priority, _ := cmd.Flags().GetString("priority")
			chans, _ := cmd.Flags().GetStringArray("channel")
			ttl, _ := cmd.Flags().GetInt("ttl")

			var payload map[string]any
			if data != "" {
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("invalid --data: %w", err)
				}
			}
			body := map[string]any{
				"type":         typ,
				"originUserId": origin,
				"targetUserId": target,
				"payload":      payload,
				"ttlSeconds":   ttl,
			}
			if priority != "" {
				body["priority"] = priority
			}
			if len(chans) > 0 {
				body["channels"] = chans
			}
			var resp map[string]string
			if err := postJSON(baseURL, "/v1/events/publish", body, &resp); err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
		},
	}
	cmd.Flags().String("type", "", "Event type")
	cmd.Flags().String("origin", "", "Originating user id")
	cmd.Flags().String("target", "", "Target user id (optional)")
	cmd.Flags().String("data", "", "Event payload as a JSON object")
	cmd.Flags().String("priority", "", "Priority: low|medium|high|urgent (default medium)")
	cmd.Flags().StringArray("channel", nil, "Delivery channel (repeatable, default livePush)")
	cmd.Flags().Int("ttl", 0, "Event TTL in seconds (default 3600)")
	return cmd
}

// NewEventsCommand constructs the `events` command group.
func NewEventsCommand(baseURL BaseURLFunc) *cobra.Command {
	eventsCmd := &cobra.Command{Use: "events", Short: "Event lookups"}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch one event by id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			var resp map[string]any
			if err := getJSON(baseURL, "/v1/events/get?id="+id, &resp); err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
		},
	}
	getCmd.Flags().String("id", "", "Event id")
	eventsCmd.AddCommand(getCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's recent events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			var resp map[string]any
			if err := getJSON(baseURL, "/v1/users/events?userId="+userID, &resp); err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
		},
	}
	historyCmd.Flags().String("user-id", "", "User id")
	eventsCmd.AddCommand(historyCmd)

	return eventsCmd
}
