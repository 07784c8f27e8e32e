package redis

import "errors"

var (
	// ErrInvalidConfig is returned by Connect when the connection
	// config fails validation.
	ErrInvalidConfig = errors.New("invalid connection config")

	// ErrInvalidCommand is returned when a command has no arguments or
	// a scan command fails its shape check.
	ErrInvalidCommand = errors.New("command is not valid")

	// ErrNotConnected is returned when a command is issued on a
	// disconnected connection and auto-connect is off.
	ErrNotConnected = errors.New("connection is not established")

	// ErrNotCluster is returned by cluster-wide operations when the
	// server is not in cluster mode.
	ErrNotCluster = errors.New("connection is not in cluster mode")

	// ErrAuthFailed is returned when the server rejects AUTH or does
	// not answer PING with PONG.
	ErrAuthFailed = errors.New("redis server requires password or password is not valid")

	// ErrTimeout is returned when a future does not complete within
	// its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled is returned when a pending future is canceled, e.g.
	// by Disconnect or owner cancellation.
	ErrCanceled = errors.New("command canceled")

	// ErrSSHConfig is returned when the SSH tunnel is requested but
	// the SSH settings are incomplete.
	ErrSSHConfig = errors.New("incomplete ssh tunnel config")
)
