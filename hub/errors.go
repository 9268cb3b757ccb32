package hub

// Typed error taxonomy surfaced across the hub's boundary (spec §6.4).
// No stack traces cross the interface; each carries only the context a
// caller needs to tell discriminants apart.

// TimeoutError is returned by Request when no reply arrives in time.
type TimeoutError struct{ CorrelationID string }

func (e *TimeoutError) Error() string { return "request timeout: " + e.CorrelationID }

// LockTimeoutError is returned by AcquireLock when the wait exceeds its deadline.
type LockTimeoutError struct{ Resource, Holder string }

func (e *LockTimeoutError) Error() string {
	return "lock timeout: " + e.Holder + " on " + e.Resource
}

// UndeliverableError reports a message that could not be delivered.
type UndeliverableError struct{ Reason string }

func (e *UndeliverableError) Error() string { return "undeliverable: " + e.Reason }

// HubDestroyedError is returned to any caller with pending work when
// Destroy is invoked.
type HubDestroyedError struct{}

func (e *HubDestroyedError) Error() string { return "hub destroyed" }

// CollectorTimeoutError is returned by WaitForCollector past its deadline.
type CollectorTimeoutError struct{ CollectorID string }

func (e *CollectorTimeoutError) Error() string { return "collector timeout: " + e.CollectorID }

// ProtocolError reports a reply with no matching waiter, or other
// wire-level inconsistency; observed only through events, never thrown.
type ProtocolError struct{ Reason string }

func (e *ProtocolError) Error() string { return "protocol error: " + e.Reason }
