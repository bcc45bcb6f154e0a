// Package httpserver exposes the engine over HTTP: connection lifecycle,
// subscribe/unsubscribe, event publish and lookup, a Server-Sent Events
// stream per connection, and a health endpoint.
package httpserver
