package singleinstance

// This file defines the API for single-instance ownership and action delegation.

import (
	"context"
)

// Server owns the TCP endpoint and answers action requests.
type Server interface {
	// Start listens on the first port of the configured range; a busy port
	// means another resident owns it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess acknowledges the request with an optional message.
	RespondSuccess(text string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Request asks the resident to run one action, e.g. "explain".
type Request struct {
	Action string
}

// Client delegates actions to a resident server.
type Client interface {
	// Trigger scans the port range, performs the handshake and sends action.
	// If no resident is found, returns delegated=false, err=nil.
	Trigger(ctx context.Context, action string) (delegated bool, reply string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
