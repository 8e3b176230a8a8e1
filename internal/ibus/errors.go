package ibus

import "errors"

// Error kinds for bus discovery and the initial query. Callers match with
// errors.Is; the wrapped message carries the specifics.
var (
	// ErrMissingEnv means a required environment variable is not set.
	ErrMissingEnv = errors.New("required environment variable not set")

	// ErrIO means a discovery-related file could not be opened or read.
	ErrIO = errors.New("i/o error")

	// ErrMalformedInput means an input did not match its expected shape.
	ErrMalformedInput = errors.New("malformed input")

	// ErrConnection means the bus could not be reached or the connection
	// dropped.
	ErrConnection = errors.New("bus connection error")

	// ErrQuery means the bus was reachable but the property query failed.
	ErrQuery = errors.New("bus query error")
)
