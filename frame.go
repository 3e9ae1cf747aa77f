package canbutton

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

type FrameDirection int

const (
	Incoming FrameDirection = iota
	Outgoing
)

// CANFrame is a single message on the bus. Payload is at most 8 bytes for
// classic frames, the FD and BRS flags are carried but only acted upon by
// controllers that support them.
type CANFrame struct {
	Identifier uint32
	Extended   bool
	RTR        bool
	FD         bool
	BRS        bool
	Data       []byte
	Direction  FrameDirection
}

// NewFrame creates a standard 11-bit CANFrame and copies the data slice
func NewFrame(identifier uint32, data []byte, direction FrameDirection) *CANFrame {
	d := make([]byte, len(data))
	copy(d, data)
	return &CANFrame{
		Identifier: identifier,
		Data:       d,
		Direction:  direction,
	}
}

// NewExtendedFrame creates a 29-bit CANFrame and copies the data slice
func NewExtendedFrame(identifier uint32, data []byte, direction FrameDirection) *CANFrame {
	frame := NewFrame(identifier, data, direction)
	frame.Extended = true
	return frame
}

// Returns the length of the data (DLC)
func (f *CANFrame) DLC() int {
	return len(f.Data)
}

// IDBits returns the width of the identifier in bits
func (f *CANFrame) IDBits() int {
	if f.Extended {
		return 29
	}
	return 11
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f *CANFrame) String() string {
	var out strings.Builder
	switch f.Direction {
	case Incoming:
		out.WriteString("<i> || ")
	case Outgoing:
		out.WriteString("<o> || ")
	}
	out.WriteString(fmt.Sprintf("0x%03X", f.Identifier) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	var hexView strings.Builder
	for i, b := range f.Data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-23s", hexView.String()))
	out.WriteString(" || ")
	out.WriteString(onlyPrintable(f.Data))
	return out.String()
}

func (f *CANFrame) ColorString() string {
	var out strings.Builder
	switch f.Direction {
	case Incoming:
		out.WriteString("<i> || ")
	case Outgoing:
		out.WriteString("<o> || ")
	}
	out.WriteString(green("0x%03X", f.Identifier) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	var hexView strings.Builder
	for i, b := range f.Data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(red(fmt.Sprintf("%-23s", hexView.String())))
	out.WriteString(" || ")
	out.WriteString(yellow(onlyPrintable(f.Data)))
	return out.String()
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 127 {
			out.WriteString("·")
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
