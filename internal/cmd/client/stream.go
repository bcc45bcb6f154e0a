package client

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// NewStreamCommand constructs the `stream` command group.
func NewStreamCommand(baseURL BaseURLFunc) *cobra.Command {
	streamCmd := &cobra.Command{Use: "stream", Short: "Stream operations"}
	streamCmd.AddCommand(newStreamTailCommand(baseURL))
	return streamCmd
}

// newStreamTailCommand constructs the `stream tail` subcommand. It attaches
// to the SSE stream for a connection and prints each event's data line.
func newStreamTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail matched events for a connection over SSE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			connID, _ := cmd.Flags().GetString("connection-id")
			limit, _ := cmd.Flags().GetInt("limit")
			if connID == "" {
				return fmt.Errorf("--connection-id is required")
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
				baseURL()+"/v1/stream?connectionId="+connID, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %s", resp.Status)
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			received := 0
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				fmt.Fprintln(out, strings.TrimPrefix(line, "data: "))
				received++
				if limit > 0 && received >= limit {
					return nil
				}
			}
			return scanner.Err()
		},
	}
	tailCmd.Flags().String("connection-id", "", "Connection id from `connect`")
	tailCmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	return tailCmd
}
