// Package node talks to the network node that serves program source and
// state roots and accepts transactions.
package node

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the node does not know the requested item.
	ErrNotFound = errors.New("node: not found")

	// ErrUnavailable wraps transport failures and unexpected responses.
	ErrUnavailable = errors.New("node: unavailable")
)

// Client is the subset of the node API the bindings use.
type Client interface {
	// StateRoot returns the latest global state root.
	StateRoot(ctx context.Context) (string, error)
	// Program returns the source of a deployed program.
	Program(ctx context.Context, id string) (string, error)
	// Broadcast submits an encoded transaction and returns its ID.
	Broadcast(ctx context.Context, tx []byte) (string, error)
}

// Paths of the node REST API, relative to the base URL.
const (
	PathStateRoot = "/latest/stateRoot"
	PathProgram   = "/program/"
	PathBroadcast = "/transaction/broadcast"
)
