package canbutton

import (
	"context"
	"fmt"
	"log"
)

// Dispatcher is the single event loop bridging the edge source to frame
// transmission while draining one inbound queue. It is the sole consumer
// of both sources and never blocks outside its combined wait.
type Dispatcher struct {
	ctrl  Controller
	edge  *EdgeSource
	rx    <-chan CANFrame
	frame CANFrame

	// OnMessage receives the textual reports: enqueue success/failure,
	// transmit completion and per-frame receive summaries.
	OnMessage func(string)
}

func NewDispatcher(ctrl Controller, edge *EdgeSource, rx <-chan CANFrame, frame CANFrame) *Dispatcher {
	return &Dispatcher{
		ctrl:      ctrl,
		edge:      edge,
		rx:        rx,
		frame:     frame,
		OnMessage: func(msg string) { log.Println(msg) },
	}
}

// Banner describes what the dispatcher will put on the bus.
func (d *Dispatcher) Banner() string {
	idType := "standard"
	if d.frame.Extended {
		idType = "extended"
	}
	return fmt.Sprintf("babbling on %s with %s (%d-bit) CAN ID 0x%03X, RTR %v, CAN-FD %v",
		d.ctrl.Name(), idType, d.frame.IDBits(), d.frame.Identifier, d.frame.RTR, d.frame.FD)
}

// Run blocks on the edge source and the inbound queue until ctx is
// cancelled or the inbound queue is closed. Each wake handles exactly the
// sources that are ready: one transmission attempt per claimed edge, one
// frame drained per iteration. Neither branch ever blocks, failed submits
// are reported and dropped without retry.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		// Claim a pending edge ahead of the combined wait so transmission
		// wins when both sources are ready.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.edge.C():
			d.sendFrame()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.edge.C():
			d.sendFrame()
		case frame, ok := <-d.rx:
			if !ok {
				return ErrQueueClosed
			}
			d.reportFrame(frame)
		}
	}
}

func (d *Dispatcher) sendFrame() {
	frame := d.frame
	err := d.ctrl.Submit(&frame, func(err error) {
		if err != nil {
			d.OnMessage(fmt.Sprintf("CAN frame send failed: %v", err))
			return
		}
		d.OnMessage("CAN frame sent")
	})
	if err != nil {
		d.OnMessage(fmt.Sprintf("failed to enqueue CAN frame: %v", err))
		return
	}
	d.OnMessage(fmt.Sprintf("enqueued CAN frame ID 0x%03X, RTR %v, DLC %d", frame.Identifier, frame.RTR, frame.DLC()))
}

func (d *Dispatcher) reportFrame(frame CANFrame) {
	d.OnMessage(fmt.Sprintf("received CAN frame ID 0x%03X, RTR %v, DLC %d, data % 02X",
		frame.Identifier, frame.RTR, frame.DLC(), frame.Data))
}
