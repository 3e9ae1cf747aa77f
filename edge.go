package canbutton

// EdgeSource is the bridge between an edge-triggered input callback and
// the dispatcher. It remembers at most one pending edge: triggers landing
// while one is already pending are coalesced. Trigger is safe to call from
// any goroutine, the dispatcher is the only consumer.
type EdgeSource struct {
	c chan struct{}
}

func NewEdgeSource() *EdgeSource {
	return &EdgeSource{c: make(chan struct{}, 1)}
}

// Trigger marks an edge as pending. Saturating: a no-op while an edge is
// already pending.
func (e *EdgeSource) Trigger() {
	select {
	case e.c <- struct{}{}:
	default:
	}
}

// C returns the wait channel, a receive is the atomic claim of the
// pending edge.
func (e *EdgeSource) C() <-chan struct{} {
	return e.c
}
