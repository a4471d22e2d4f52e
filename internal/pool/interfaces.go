package pool

// Recorder receives pool lifecycle events for the operator audit trail.
// Implementations must not block; failures are theirs to swallow.
type Recorder interface {
	Record(event string, slot int, detail string)
}
