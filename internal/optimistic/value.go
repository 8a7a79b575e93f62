// Package optimistic tracks a value shown to the user ahead of server confirmation.
package optimistic

// State tells where the displayed value came from.
type State int

const (
	// Confirmed values came from the server and have no pending local change.
	Confirmed State = iota
	// Optimistic values include a local change the server has not acknowledged.
	Optimistic
	// Reconciled values replaced an optimistic value with the server's answer.
	Reconciled
)

func (s State) String() string {
	switch s {
	case Optimistic:
		return "optimistic"
	case Reconciled:
		return "reconciled"
	default:
		return "confirmed"
	}
}

// Value is an immutable reducer over a displayed quantity.
// The server value always wins on the next Confirm or Refresh.
type Value[T any] struct {
	shown  T
	server T
	state  State
}

// New creates a confirmed Value holding the server's value.
func New[T any](server T) Value[T] {
	return Value[T]{shown: server, server: server, state: Confirmed}
}

// Get returns the value to display.
func (v Value[T]) Get() T {
	return v.shown
}

// Server returns the last value the server reported.
func (v Value[T]) Server() T {
	return v.server
}

// State returns where the displayed value came from.
func (v Value[T]) State() State {
	return v.state
}

// Pending reports whether a local change awaits confirmation.
func (v Value[T]) Pending() bool {
	return v.state == Optimistic
}

// Apply returns a Value showing fn applied to the displayed value, ahead of the server.
func (v Value[T]) Apply(fn func(T) T) Value[T] {
	v.shown = fn(v.shown)
	v.state = Optimistic
	return v
}

// Confirm returns a Value showing the server's answer to a pending change.
func (v Value[T]) Confirm(server T) Value[T] {
	next := Value[T]{shown: server, server: server, state: Confirmed}
	if v.state == Optimistic {
		next.state = Reconciled
	}
	return next
}

// Rollback drops a pending change, showing the last server value again.
func (v Value[T]) Rollback() Value[T] {
	return Value[T]{shown: v.server, server: v.server, state: Confirmed}
}

// Refresh returns a Value holding a freshly fetched server value. Any pending
// local change is discarded.
func (v Value[T]) Refresh(server T) Value[T] {
	return v.Confirm(server)
}
