// Package transport defines the interface for pluggable job intake transports.
//
// Each transport (HTTP, NATS) accepts room jobs and hands them to the
// dispatcher through a Handler. The dispatcher doesn't care how jobs arrive.
package transport

import (
	"context"

	"github.com/nadzzz/carvoice/internal/message"
)

// Handler starts a session for a job and returns its summary.
// The dispatcher provides this handler to each transport.
type Handler func(ctx context.Context, job message.Job) (*message.StartResult, error)

// Transport is the interface that every intake adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "http", "nats").
	Name() string

	// Listen starts accepting jobs and dispatches them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport.
	Close() error
}
