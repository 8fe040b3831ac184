package domain

// Callback wraps a notification function so it can be stored in subscriber sets.
// Two callbacks are the same subscriber only if they are the same pointer.
type Callback struct {
	fn func()
}

// NewCallback creates a subscriber handle for fn.
func NewCallback(fn func()) *Callback {
	return &Callback{fn: fn}
}

// Fire invokes the wrapped function.
func (c *Callback) Fire() {
	if c != nil && c.fn != nil {
		c.fn()
	}
}
