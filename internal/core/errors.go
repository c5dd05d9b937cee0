package core

import "errors"

// IsTerminal reports whether err, or any error it wraps, declares itself terminal:
// retrying will not help.
func IsTerminal(err error) bool {
	var t interface{ Terminal() bool }
	return errors.As(err, &t) && t.Terminal()
}
