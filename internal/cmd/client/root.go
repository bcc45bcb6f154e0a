package client

import (
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// Commands returns every client command group, ready to hang off the
// process root.
func Commands(baseURL BaseURLFunc) []*cobra.Command {
	return []*cobra.Command{
		NewConnectCommand(baseURL),
		NewSubscribeCommand(baseURL),
		NewUnsubscribeCommand(baseURL),
		NewPublishCommand(baseURL),
		NewEventsCommand(baseURL),
		NewStreamCommand(baseURL),
	}
}
