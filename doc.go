// Package canbutton bridges a single input edge (a button press) to an
// outbound CAN frame while logging a filtered subset of inbound traffic.
//
// The package provides:
//   - A CANFrame type with the usual identifier/flags/payload fields
//   - A Filter (identifier + mask) installed against a bus controller
//   - A Controller interface with pluggable implementations (virtual
//     loopback, SLCAN over serial, SocketCAN on Linux)
//   - A Dispatcher running the single blocking event loop that multiplexes
//     the edge source and the inbound frame queue
package canbutton
