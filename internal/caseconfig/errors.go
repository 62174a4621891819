package caseconfig

import (
	"errors"
	"fmt"
)

// Scope tells the sweep driver how far a configuration failure reaches.
type Scope int

const (
	// ScopeSweep marks a defect in the template or the sweep setup. It aborts
	// the whole sweep. This is the zero value.
	ScopeSweep Scope = iota
	// ScopePoint marks a failure that only concerns one parameter point, such
	// as an override expression that cannot be evaluated for that point.
	ScopePoint
)

func (s Scope) String() string {
	switch s {
	case ScopeSweep:
		return "sweep"
	case ScopePoint:
		return "point"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

var (
	// ErrPathNotFound is returned when a key path does not exist in the template.
	ErrPathNotFound = errors.New("key path does not exist in template")
	// ErrNotContainer is returned when a path walks through a scalar.
	ErrNotContainer = errors.New("value is not a mapping or sequence")
)

// ConfigurationError reports an override that cannot be applied.
type ConfigurationError struct {
	Scope Scope
	Path  KeyPath
	Err   error
}

func (e *ConfigurationError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("configuration error (%s): %v", e.Scope, e.Err)
	}
	return fmt.Sprintf("configuration error (%s) at %s: %v", e.Scope, e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsPointScoped reports whether err is a ConfigurationError confined to one point.
func IsPointScoped(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr) && cfgErr.Scope == ScopePoint
}
