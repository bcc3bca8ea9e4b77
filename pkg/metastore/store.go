// Package metastore tracks the shared state the hub needs beyond a
// single process: which media server carries a given live stream,
// which media server currently has the lowest load, and the playback
// tokens minted for clients. Deployments with Redis share this state
// across hub instances; the in-memory store serves single-node setups
// and tests.
package metastore

import (
	"context"
	"errors"
	"time"
)

// Common lookup failures.
var (
	// ErrNoServer indicates no media server is registered.
	ErrNoServer = errors.New("metastore: no media server available")

	// ErrNotLive indicates the requested channel has no live stream.
	ErrNotLive = errors.New("metastore: channel is not live")
)

// ServerAddr locates a media (RTSP) server.
type ServerAddr struct {
	Host string
	Port int
}

// Store provides the hub's shared metadata operations.
type Store interface {
	// SetDeviceName records the human-readable name and tag for a
	// registered device serial.
	SetDeviceName(ctx context.Context, serial, name, tag string) error

	// LiveServer returns the media server already carrying the
	// stream for serial/channel, or ErrNotLive.
	LiveServer(ctx context.Context, serial, channel string) (ServerAddr, error)

	// BestServer returns the least-loaded media server, or
	// ErrNoServer when none is registered.
	BestServer(ctx context.Context) (ServerAddr, error)

	// MintStreamToken creates a playback token valid for ttl.
	MintStreamToken(ctx context.Context, ttl time.Duration) (string, error)

	// Close releases store resources.
	Close() error
}
