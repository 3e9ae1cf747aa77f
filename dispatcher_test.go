package canbutton

import (
	"context"
	"strings"
	"testing"
	"time"
)

type dispatcherRig struct {
	ctrl *Virtual
	edge *EdgeSource
	disp *Dispatcher
	msgs chan string
}

// newDispatcherRig wires a dispatcher to a virtual controller with the
// sample's default frame and filter. The controller is not opened, tests
// that need transmit completions call rig.ctrl.Open themselves.
func newDispatcherRig(t *testing.T, txDepth int) *dispatcherRig {
	t.Helper()
	rig := &dispatcherRig{
		ctrl: newTestVirtual(t, txDepth),
		edge: NewEdgeSource(),
		msgs: make(chan string, 64),
	}
	rx, err := rig.ctrl.Subscribe(Filter{ID: 0x7cd, Mask: 0x7cd}, 100)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	rig.disp = NewDispatcher(rig.ctrl, rig.edge, rx, CANFrame{Identifier: 0x7c9, Direction: Outgoing})
	rig.disp.OnMessage = func(msg string) { rig.msgs <- msg }
	return rig
}

func (rig *dispatcherRig) run(t *testing.T) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go rig.disp.Run(ctx)
	return cancel
}

func waitMsg(t *testing.T, msgs <-chan string, want string) string {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-msgs:
			if strings.Contains(msg, want) {
				return msg
			}
		case <-deadline:
			t.Fatalf("timeout waiting for message containing %q", want)
		}
	}
}

// waitMsgs waits until a message containing each wanted substring has
// been seen, in any order.
func waitMsgs(t *testing.T, msgs <-chan string, wants ...string) {
	t.Helper()
	pending := make(map[string]struct{}, len(wants))
	for _, w := range wants {
		pending[w] = struct{}{}
	}
	deadline := time.After(time.Second)
	for len(pending) > 0 {
		select {
		case msg := <-msgs:
			for w := range pending {
				if strings.Contains(msg, w) {
					delete(pending, w)
					break
				}
			}
		case <-deadline:
			t.Fatalf("timeout, still waiting for %v", pending)
		}
	}
}

func expectNoMsg(t *testing.T, msgs <-chan string, unwanted string, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case msg := <-msgs:
			if strings.Contains(msg, unwanted) {
				t.Fatalf("unexpected message %q", msg)
			}
		case <-deadline:
			return
		}
	}
}

func TestDispatcherCoalescesEdges(t *testing.T) {
	rig := newDispatcherRig(t, 8)
	defer rig.ctrl.Close()

	// All edges land before the dispatcher first claims.
	for i := 0; i < 5; i++ {
		rig.edge.Trigger()
	}
	cancel := rig.run(t)
	defer cancel()

	waitMsg(t, rig.msgs, "enqueued CAN frame")
	expectNoMsg(t, rig.msgs, "enqueued CAN frame", 100*time.Millisecond)

	if got := len(rig.ctrl.txChan); got != 1 {
		t.Fatalf("transmission attempts = %d, want 1", got)
	}
}

func TestDispatcherSlotExhaustion(t *testing.T) {
	// Scenario: depth 1, two edges back to back, no completion in
	// between (the controller is never opened so nothing drains).
	rig := newDispatcherRig(t, 1)
	defer rig.ctrl.Close()
	cancel := rig.run(t)
	defer cancel()

	rig.edge.Trigger()
	waitMsg(t, rig.msgs, "enqueued CAN frame")

	rig.edge.Trigger()
	msg := waitMsg(t, rig.msgs, "failed to enqueue CAN frame")
	if !strings.Contains(msg, ErrTxQueueFull.Error()) {
		t.Fatalf("failure report = %q, want transmit queue full", msg)
	}
}

func TestDispatcherTokenRestoration(t *testing.T) {
	rig := newDispatcherRig(t, 1)
	defer rig.ctrl.Close()
	ctx, cancelCtrl := context.WithCancel(context.Background())
	defer cancelCtrl()
	if err := rig.ctrl.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	cancel := rig.run(t)
	defer cancel()

	rig.edge.Trigger()
	waitMsgs(t, rig.msgs, "enqueued CAN frame", "CAN frame sent")

	// The completed transmission restored the slot, a new edge sends again.
	rig.edge.Trigger()
	waitMsg(t, rig.msgs, "enqueued CAN frame")
}

func TestDispatcherEnqueueReportContent(t *testing.T) {
	rig := newDispatcherRig(t, 4)
	defer rig.ctrl.Close()
	cancel := rig.run(t)
	defer cancel()

	rig.edge.Trigger()
	msg := waitMsg(t, rig.msgs, "enqueued CAN frame")
	for _, want := range []string{"0x7C9", "RTR false", "DLC 0"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("enqueue report %q missing %q", msg, want)
		}
	}
}

func TestDispatcherReceiveFidelity(t *testing.T) {
	rig := newDispatcherRig(t, 4)
	defer rig.ctrl.Close()
	cancel := rig.run(t)
	defer cancel()

	rig.ctrl.Inject(CANFrame{Identifier: 0x7cd, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}})
	msg := waitMsg(t, rig.msgs, "received CAN frame")
	for _, want := range []string{"0x7CD", "RTR false", "DLC 4", "DE AD BE EF"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("receive report %q missing %q", msg, want)
		}
	}
}

func TestDispatcherFiltersInbound(t *testing.T) {
	rig := newDispatcherRig(t, 4)
	defer rig.ctrl.Close()
	cancel := rig.run(t)
	defer cancel()

	rig.ctrl.Inject(CANFrame{Identifier: 0x3cd})
	expectNoMsg(t, rig.msgs, "received CAN frame", 100*time.Millisecond)

	rig.ctrl.Inject(CANFrame{Identifier: 0x7cd})
	waitMsg(t, rig.msgs, "received CAN frame ID 0x7CD")
}

func TestDispatcherLiveness(t *testing.T) {
	rig := newDispatcherRig(t, 4)
	defer rig.ctrl.Close()
	cancel := rig.run(t)
	defer cancel()

	// Let the loop settle into its blocking wait, then wake each source.
	time.Sleep(20 * time.Millisecond)
	rig.ctrl.Inject(CANFrame{Identifier: 0x7cd})
	waitMsg(t, rig.msgs, "received CAN frame")

	time.Sleep(20 * time.Millisecond)
	rig.edge.Trigger()
	waitMsg(t, rig.msgs, "enqueued CAN frame")
}

func TestDispatcherStopsOnClosedQueue(t *testing.T) {
	rig := newDispatcherRig(t, 4)
	done := make(chan error, 1)
	go func() { done <- rig.disp.Run(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	rig.ctrl.Close()
	select {
	case err := <-done:
		if err != ErrQueueClosed {
			t.Fatalf("Run returned %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after queue close")
	}
}

func TestDispatcherBanner(t *testing.T) {
	rig := newDispatcherRig(t, 4)
	defer rig.ctrl.Close()
	banner := rig.disp.Banner()
	for _, want := range []string{"Virtual", "standard", "11-bit", "0x7C9", "RTR false", "CAN-FD false"} {
		if !strings.Contains(banner, want) {
			t.Fatalf("banner %q missing %q", banner, want)
		}
	}
}
