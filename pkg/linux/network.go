package linux

import "context"

// Network is the port-forwarding capability of a backend.
type Network interface {
	// IsRemoteNetwork is constant for a backend.
	IsRemoteNetwork() bool
	// ReverseForwardTCP asks the host to listen on host:port and tunnel
	// accepted connections back. It returns the port actually bound, which
	// differs from port when port is 0.
	ReverseForwardTCP(ctx context.Context, host string, port uint32) (uint32, error)
}

// Linux bundles every capability a backend provides.
type Linux interface {
	Filesystem
	Executor
	Network
	Close() error
}
