package render

import (
	"errors"
	"fmt"
)

// ErrUninitialized is returned when the renderer is used before Setup has
// sized the appearance embedding table.
var ErrUninitialized = errors.New("appearance model not set up")

// ConfigError reports an invalid configuration value. It is a programming
// or configuration mistake, never a transient fault; callers should abort.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ShapeError reports disagreeing tensor dimensions between inputs that must
// describe the same point set.
type ShapeError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: %s: expected %d, got %d", e.What, e.Expected, e.Actual)
}
