package canbutton

import (
	"context"
)

// Virtual is an in-memory bus controller used for tests, simulations and
// the default demo target. Submitted frames are confirmed asynchronously
// and echoed back through the installed filters. Inject feeds inbound
// traffic as if it arrived from the wire.
type Virtual struct {
	BaseController
	txChan chan txRequest
}

func init() {
	if err := RegisterController(&ControllerInfo{
		Name:               "Virtual",
		Description:        "In-memory loopback bus",
		RequiresSerialPort: false,
		New:                NewVirtual,
	}); err != nil {
		panic(err)
	}
}

func NewVirtual(cfg *Config) (Controller, error) {
	depth := cfg.TxQueueDepth
	if depth <= 0 {
		depth = DefaultTxQueueDepth
	}
	return &Virtual{
		BaseController: NewBaseController("Virtual", cfg),
		txChan:         make(chan txRequest, depth),
	}, nil
}

func (v *Virtual) Open(ctx context.Context) error {
	go v.sendManager(ctx)
	return nil
}

func (v *Virtual) Close() error {
	v.BaseController.Close()
	return nil
}

// Submit claims a transmit slot and hands the frame to the send manager.
// The slot is restored by the completion callback, or immediately when the
// frame cannot be accepted.
func (v *Virtual) Submit(frame *CANFrame, onComplete func(error)) error {
	select {
	case <-v.closeChan:
		return ErrControllerClosed
	default:
	}
	if err := v.acquireSlot(); err != nil {
		return err
	}
	select {
	case v.txChan <- txRequest{frame: frame, done: v.completion(onComplete)}:
		return nil
	default:
		v.releaseSlot()
		return ErrTxQueueFull
	}
}

func (v *Virtual) sendManager(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.closeChan:
			return
		case req := <-v.txChan:
			v.sent.Add(1)
			v.route(*req.frame)
			req.done(nil)
		}
	}
}

// Inject delivers an inbound frame to the installed filters, bypassing
// the wire.
func (v *Virtual) Inject(frame CANFrame) {
	v.route(frame)
}
