package canbutton

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

// SLCan drives a Lawicel/Canable SLCAN adapter over a serial port.
// Acceptance filtering happens in software via the base routing table,
// the adapter hardware accepts everything.
type SLCan struct {
	BaseController
	txChan chan txRequest
	port   serial.Port
	closed bool
}

func init() {
	if err := RegisterController(&ControllerInfo{
		Name:               "SLCan",
		Description:        "Canable SLCan adapter",
		RequiresSerialPort: true,
		New:                NewSLCan,
	}); err != nil {
		panic(err)
	}
}

func NewSLCan(cfg *Config) (Controller, error) {
	depth := cfg.TxQueueDepth
	if depth <= 0 {
		depth = DefaultTxQueueDepth
	}
	return &SLCan{
		BaseController: NewBaseController("SLCan", cfg),
		txChan:         make(chan txRequest, depth),
	}, nil
}

func (sl *SLCan) Open(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: sl.cfg.PortBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	err := retry.Do(func() error {
		p, err := serial.Open(sl.cfg.Port, mode)
		if err != nil {
			return fmt.Errorf("failed to open com port %q : %v", sl.cfg.Port, err)
		}
		sl.port = p
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.OnRetry(func(n uint, err error) {
			sl.cfg.OnMessage(fmt.Sprintf("retry #%d: %v", n, err))
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return Unrecoverable(err)
	}
	sl.port.SetReadTimeout(3 * time.Millisecond)

	sl.port.ResetOutputBuffer()
	sl.port.ResetInputBuffer()

	if version, err := sl.probeVersion(); err == nil && version != "" {
		sl.Info("adapter version " + version)
	}

	rate, err := canRateCommand(sl.cfg.CANRate)
	if err != nil {
		sl.port.Close()
		return Unrecoverable(err)
	}
	sl.port.Write([]byte(rate + "\r"))
	time.Sleep(10 * time.Millisecond)
	sl.port.Write([]byte("O\r"))

	go sl.sendManager(ctx)
	go sl.recvManager(ctx)

	return nil
}

// probeVersion asks the adapter for its firmware version, best effort.
func (sl *SLCan) probeVersion() (string, error) {
	sl.port.Write([]byte("V\r"))
	start := time.Now()
	var version string
	errg, _ := errgroup.WithContext(context.Background())
	errg.Go(func() error {
		readBuf := make([]byte, 8)
		buf := make([]byte, 0, 16)
		for time.Since(start) < 300*time.Millisecond {
			n, err := sl.port.Read(readBuf)
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			for _, b := range readBuf[:n] {
				if b == '\r' {
					version = string(buf)
					return nil
				}
				buf = append(buf, b)
			}
		}
		return nil
	})
	if err := errg.Wait(); err != nil {
		return "", err
	}
	return version, nil
}

func canRateCommand(kbit float64) (string, error) {
	switch kbit {
	case 10.0:
		return "S0", nil
	case 20.0:
		return "S1", nil
	case 50.0:
		return "S2", nil
	case 100.0:
		return "S3", nil
	case 125.0:
		return "S4", nil
	case 250.0:
		return "S5", nil
	case 500.0:
		return "S6", nil
	case 750.0:
		return "S7", nil
	case 1000.0:
		return "S8", nil
	default:
		return "", fmt.Errorf("unknown CAN rate: %f", kbit)
	}
}

func (sl *SLCan) Close() error {
	sl.BaseController.Close()
	sl.closed = true
	time.Sleep(10 * time.Millisecond)
	sl.port.Write([]byte("C\r"))
	time.Sleep(10 * time.Millisecond)
	return sl.port.Close()
}

// Submit claims a transmit slot and hands the frame to the send manager.
// Completion fires once the frame has been written to the serial port.
func (sl *SLCan) Submit(frame *CANFrame, onComplete func(error)) error {
	select {
	case <-sl.closeChan:
		return ErrControllerClosed
	default:
	}
	if err := sl.acquireSlot(); err != nil {
		return err
	}
	select {
	case sl.txChan <- txRequest{frame: frame, done: sl.completion(onComplete)}:
		return nil
	default:
		sl.releaseSlot()
		return ErrTxQueueFull
	}
}

func (sl *SLCan) sendManager(ctx context.Context) {
	var outBuf = make([]byte, 0, 64) // reused scratch buffer for frames
	for {
		select {
		case <-ctx.Done():
			return
		case <-sl.closeChan:
			return
		case req := <-sl.txChan:
			outBuf = appendSLCANFrame(outBuf[:0], req.frame)
			_, err := sl.port.Write(outBuf)
			if err != nil {
				err = fmt.Errorf("failed to write to com port: %w", err)
				sl.Error(err)
			} else {
				sl.sent.Add(1)
				if sl.cfg.Debug {
					sl.Debug(">> " + string(outBuf))
				}
			}
			req.done(err)
		}
	}
}

func (sl *SLCan) recvManager(ctx context.Context) {
	buf := make([]byte, 0, 1024)
	readBuf := make([]byte, 8)
	for ctx.Err() == nil {
		n, err := sl.port.Read(readBuf)
		if err != nil {
			if !sl.closed {
				sl.Fatal(fmt.Errorf("failed to read com port: %w", err))
			}
			return
		}
		if n == 0 {
			continue
		}
		buf = sl.parse(buf, readBuf[:n])
	}
}

// parse processes the read data and returns any remaining partial data.
func (sl *SLCan) parse(buf, readBuf []byte) []byte {
	for _, b := range readBuf {
		if b != '\r' {
			buf = append(buf, b)
			continue
		}
		if len(buf) == 0 {
			continue
		}
		switch buf[0] {
		case 't', 'T', 'r', 'R':
			if sl.cfg.Debug {
				sl.Debug("<< " + string(buf))
			}
			f, err := decodeSLCANFrame(buf)
			if err != nil {
				sl.cfg.OnMessage(fmt.Sprintf("%v: %X", err, buf))
				buf = buf[:0]
				continue
			}
			sl.route(*f)
		default:
			sl.Warn("Unknown>> " + string(buf))
		}
		// Reset buffer after a full message
		buf = buf[:0]
	}
	return buf
}

// appendSLCANFrame encodes the frame in SLCAN ASCII form:
// 't' + 3-hex-digit ID + len-nibble + data-as-hex + '\r' for standard
// frames, 'T' + 8-hex-digit ID for extended, 'r'/'R' for RTR.
func appendSLCANFrame(buf []byte, frame *CANFrame) []byte {
	var kind byte
	var idDigits int
	switch {
	case frame.Extended && frame.RTR:
		kind, idDigits = 'R', 8
	case frame.Extended:
		kind, idDigits = 'T', 8
	case frame.RTR:
		kind, idDigits = 'r', 3
	default:
		kind, idDigits = 't', 3
	}
	buf = append(buf, kind)

	id := frame.Identifier
	if !frame.Extended {
		id &= 0x7FF
	}
	for i := idDigits - 1; i >= 0; i-- {
		buf = append(buf, nybbleToHex(byte(id>>(uint(i)*4))&0xF))
	}

	// DLC (single hex digit)
	dlc := frame.DLC()
	buf = append(buf, nybbleToHex(byte(dlc)&0xF))

	if !frame.RTR {
		for i := 0; i < dlc; i++ {
			buf = append(buf, nybbleToHex(frame.Data[i]>>4), nybbleToHex(frame.Data[i]&0xF))
		}
	}

	return append(buf, '\r')
}

// helper converts a 0..15 value to its ASCII hex nibble
func nybbleToHex(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}

func decodeSLCANFrame(buf []byte) (*CANFrame, error) {
	extended := buf[0] == 'T' || buf[0] == 'R'
	rtr := buf[0] == 'r' || buf[0] == 'R'
	idDigits := 3
	if extended {
		idDigits = 8
	}
	if len(buf) < 1+idDigits+1 {
		return nil, fmt.Errorf("truncated frame")
	}
	id, err := strconv.ParseUint(string(buf[1:1+idDigits]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %v", err)
	}
	dataLen, err := strconv.ParseUint(string(buf[1+idDigits]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data length: %v", err)
	}
	if dataLen > 8 {
		return nil, fmt.Errorf("invalid data length: %d", dataLen)
	}
	var data []byte
	if !rtr {
		body := buf[1+idDigits+1:]
		if uint64(len(body)) < dataLen*2 {
			return nil, fmt.Errorf("truncated frame body")
		}
		data, err = hex.DecodeString(string(body[:dataLen*2]))
		if err != nil {
			return nil, fmt.Errorf("failed to decode frame body: %v", err)
		}
	}
	frame := NewFrame(uint32(id), data, Incoming)
	frame.Extended = extended
	frame.RTR = rtr
	if rtr {
		frame.Data = make([]byte, dataLen)
	}
	return frame, nil
}
