package userstore

import "errors"

var (
	// ErrCountUnavailable wraps every failure to read a count from the store.
	ErrCountUnavailable = errors.New("user count unavailable")
	// ErrInvalidTable is returned for an empty or malformed table name.
	ErrInvalidTable = errors.New("invalid table name")
	ErrNilClient    = errors.New("nil store client")
)
