package core

import "errors"

// Error codes sent by the server in realtime error frames.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "rate_limited"
)

var (
	// ErrNoSession is returned before any network call when no token is stored.
	ErrNoSession = errors.New("no active session")
	// ErrUnauthorized matches 401 responses; the user has to log in again.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrEmptyMessage is returned when a send is attempted with blank content.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrNotLive is returned when a chat surface is not in the live state.
	ErrNotLive = errors.New("chat surface is not live")
	// ErrClosed is returned by operations on a closed channel or surface.
	ErrClosed = errors.New("closed")
)

// ServerError wraps a code and human-readable message received from the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}
