package authfront

import "errors"

var (
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrServerStarted is returned when Start is called on a running Server.
	ErrServerStarted = errors.New("server already started")
)
