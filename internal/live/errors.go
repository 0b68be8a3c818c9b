package live

import (
	"errors"
	"fmt"
)

var (
	// ErrDisconnected is returned by Connect when Disconnect lands before the
	// session finished opening
	ErrDisconnected = errors.New("session disconnected")

	// ErrAlreadyConnected is returned by Connect while a session is active
	ErrAlreadyConnected = errors.New("session already connected")
)

// MediaAccessError reports a capture or playback device that could not be opened
type MediaAccessError struct {
	Device string
	Err    error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Device, e.Err)
}

func (e *MediaAccessError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a handshake or transport failure
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ToolCallError reports a malformed tool call payload
type ToolCallError struct {
	Name   string
	Reason string
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("tool call %q: %s", e.Name, e.Reason)
}
