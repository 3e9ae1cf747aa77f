//go:build linux

package canbutton

import (
	"context"
	"fmt"
	"net"
	"strings"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/candevice"
	"go.einride.tech/can/pkg/socketcan"
)

// SocketCAN drives a Linux SocketCAN interface. Filtering happens in
// software via the base routing table.
type SocketCAN struct {
	BaseController
	txChan chan txRequest
	dev    *candevice.Device
	conn   net.Conn
	tx     *socketcan.Transmitter
	rx     *socketcan.Receiver
}

func init() {
	if err := RegisterController(&ControllerInfo{
		Name:               "SocketCAN",
		Description:        "Linux SocketCAN driver",
		RequiresSerialPort: false,
		New:                NewSocketCAN,
	}); err != nil {
		panic(err)
	}
}

func NewSocketCAN(cfg *Config) (Controller, error) {
	depth := cfg.TxQueueDepth
	if depth <= 0 {
		depth = DefaultTxQueueDepth
	}
	return &SocketCAN{
		BaseController: NewBaseController("SocketCAN", cfg),
		txChan:         make(chan txRequest, depth),
	}, nil
}

func (a *SocketCAN) Open(ctx context.Context) error {
	dev, err := candevice.New(a.cfg.Port)
	if err != nil {
		return Unrecoverable(fmt.Errorf("%w: %v", ErrDeviceNotReady, err))
	}
	a.dev = dev
	if err := a.dev.SetBitrate(uint32(a.cfg.CANRate * 1000)); err != nil {
		return Unrecoverable(err)
	}
	if err := a.dev.SetUp(); err != nil {
		return Unrecoverable(err)
	}

	conn, err := socketcan.DialContext(ctx, "can", a.cfg.Port)
	if err != nil {
		return Unrecoverable(err)
	}
	a.conn = conn
	a.tx = socketcan.NewTransmitter(conn)
	a.rx = socketcan.NewReceiver(conn)

	go a.recvManager(ctx)
	go a.sendManager(ctx)
	return nil
}

func (a *SocketCAN) Close() error {
	a.BaseController.Close()
	if a.conn != nil {
		a.conn.Close()
	}
	if a.dev != nil {
		return a.dev.SetDown()
	}
	return nil
}

// Submit claims a transmit slot and hands the frame to the send manager.
// Completion fires once the frame has been written to the socket.
func (a *SocketCAN) Submit(frame *CANFrame, onComplete func(error)) error {
	select {
	case <-a.closeChan:
		return ErrControllerClosed
	default:
	}
	if err := a.acquireSlot(); err != nil {
		return err
	}
	select {
	case a.txChan <- txRequest{frame: frame, done: a.completion(onComplete)}:
		return nil
	default:
		a.releaseSlot()
		return ErrTxQueueFull
	}
}

func (a *SocketCAN) sendManager(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closeChan:
			return
		case req := <-a.txChan:
			cf := can.Frame{
				ID:         req.frame.Identifier,
				Length:     uint8(req.frame.DLC()),
				IsExtended: req.frame.Extended,
				IsRemote:   req.frame.RTR,
			}
			copy(cf.Data[:], req.frame.Data)
			err := a.tx.TransmitFrame(ctx, cf)
			if err != nil {
				a.Error(fmt.Errorf("send error: %w", err))
			} else {
				a.sent.Add(1)
			}
			req.done(err)
		}
	}
}

func (a *SocketCAN) recvManager(ctx context.Context) {
	for a.rx.Receive() {
		select {
		case <-ctx.Done():
			return
		case <-a.closeChan:
			return
		default:
		}
		f := a.rx.Frame()
		frame := NewFrame(f.ID, f.Data[:f.Length], Incoming)
		frame.Extended = f.IsExtended
		frame.RTR = f.IsRemote
		a.route(*frame)
	}
	if err := a.rx.Err(); err != nil {
		select {
		case <-a.closeChan:
		default:
			a.Fatal(err)
		}
	}
}

// FindCANDevices lists network interfaces that look like CAN devices.
func FindCANDevices() (dev []string) {
	iFaces, _ := net.Interfaces()
	for _, i := range iFaces {
		if strings.Contains(i.Name, "can") {
			dev = append(dev, i.Name)
		}
	}
	return
}
