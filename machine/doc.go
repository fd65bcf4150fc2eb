// Package machine resolves a connection descriptor string into a live
// bidirectional byte channel to a machine-control device and provides the
// raw transport operations the streaming engine needs: draining boot
// chatter, reliable batched block writes, and a line reader over the
// device's responses.
//
// Supported descriptor formats:
//
//   - "-" for stdio passthrough (write stdout, read stdin), useful for
//     debugging or wiring up with e.g. socat.
//   - A serial device path with optional comma-separated parameters,
//     e.g. "/dev/ttyACM0,b115200,-crtscts". "b<rate>" selects the
//     transmission speed, "[+|-]crtscts" toggles hardware flow control
//     (enabled by default).
//   - "host[:port]" for devices that receive gcode via TCP. The port
//     defaults to DefaultTCPPort.
//
// Transports are attempted in that order; a path that cannot be opened as
// a serial device silently falls through to TCP, but parameter errors on
// an opened device are fatal.
package machine
