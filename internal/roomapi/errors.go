package roomapi

import "fmt"

const (
	// DefaultCreateErrorMessage is used when a failed create response has no body.
	DefaultCreateErrorMessage = "Failed to create room"
	// DestroyErrorMessage is the only message a failed destroy ever reports.
	DestroyErrorMessage = "Failed to destroy room"
)

// RoomCreationError is returned when the server answers create with a non-2xx
// status. Message is the response body as sent, or DefaultCreateErrorMessage
// when the body is empty.
type RoomCreationError struct {
	StatusCode int
	Message    string
}

func (e *RoomCreationError) Error() string {
	return e.Message
}

// RoomDestructionError is returned for every failed destroy, including network
// failures. The server's detail is intentionally not part of the message.
type RoomDestructionError struct {
	StatusCode int
	Err        error
}

func (e *RoomDestructionError) Error() string {
	return DestroyErrorMessage
}

func (e *RoomDestructionError) Unwrap() error {
	return e.Err
}

// TransportError means no HTTP response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError reports an unexpected status on endpoints without a dedicated error type.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

// DecodeError means a successful response body could not be understood.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
