// Package client provides the `chitlaq` command-line client.
//
// The CLI talks to the engine's HTTP endpoints to perform common operations
// from a terminal. It is primarily intended for developers and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it defaults
// to http://127.0.0.1:8580 and can be overridden with CHITLAQ_HTTP.
//
// Usage
//
//	chitlaq connect --user-id u1
//
//	chitlaq subscribe \
//	    --connection-id CONN \
//	    --type post_created --type comment_added \
//	    --channel livePush --channel streamPush \
//	    --filter topic=go
//
//	chitlaq publish \
//	    --type post_created --origin u2 \
//	    --data '{"postId":"p1","topic":"go"}' \
//	    --priority high --ttl 600
//
//	# Tail matched events over SSE
//	chitlaq stream tail --connection-id CONN
//
//	chitlaq events get --id EVENT_ID
//	chitlaq events history --user-id u1
//
// Notes
//
//   - subscribe accepts repeated --filter key=value flags for exact-match
//     payload filters and a single --filter-expr with a CEL expression.
//   - publish defaults priority to medium, channels to livePush, and TTL to
//     one hour when the flags are omitted.
package client
