// Package api provides the scribe HTTP API: session management and
// streaming chat over server-sent events.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
