package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrIndexNotFound     = errors.New("db: index not found")
	ErrDimensionMismatch = errors.New("db: vector dimension mismatch")
	ErrAuth              = errors.New("db: authentication failed")
	// ErrBusy covers LOADING, BUSY and TRYAGAIN replies; the command may succeed later.
	ErrBusy = errors.New("db: server busy")
	// ErrMalformedReply signals a reply that does not have the expected shape.
	ErrMalformedReply = errors.New("db: malformed reply")
	// ErrServerReply tags any other error reply from the server. The command
	// reached the server and was rejected, so repeating it will not help.
	ErrServerReply = errors.New("db: server error reply")
)

// Op constants map to Valkey/Redis command names for error context.
const (
	OpIndexInfo = "FT.INFO"
	OpSearch    = "FT.SEARCH"
	OpPing      = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
