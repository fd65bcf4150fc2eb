package machine

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// StdioDescriptor selects the stdio passthrough transport.
const StdioDescriptor = "-"

// DefaultBaudRate is used when the descriptor carries no speed parameter.
const DefaultBaudRate = 115200

// Sentinel errors for descriptor and connection handling.
var (
	// ErrBadBaudRate reports a speed the platform does not support.
	ErrBadBaudRate = errors.New("machine: unsupported baud rate")
	// ErrUnknownParam reports an unrecognized serial parameter token.
	ErrUnknownParam = errors.New("machine: unknown connection parameter")
	// ErrConnectFailed reports that no transport could be opened for
	// the descriptor.
	ErrConnectFailed = errors.New("machine: cannot open connection")
)

// errSerialUnavailable marks a serial open attempt that failed before the
// device was configured; Open falls through to the TCP transport.
var errSerialUnavailable = errors.New("machine: not an openable serial device")

// SupportedBaudRates lists the symbolic transmission speeds accepted in a
// "b<rate>" descriptor parameter.
var SupportedBaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400, 460800}

// serialParams holds the parsed serial parameter list of a descriptor.
type serialParams struct {
	baudRate int
	rtscts   bool
}

// parseSerialParams parses the comma-separated parameter list following
// the device path in a serial descriptor. Defaults are 115200 baud with
// hardware flow control enabled.
func parseSerialParams(params string) (serialParams, error) {
	p := serialParams{baudRate: DefaultBaudRate, rtscts: true}

	if params == "" {
		return p, nil
	}

	for _, tok := range strings.Split(params, ",") {
		if tok == "" {
			continue
		}

		if tok[0] == 'b' || tok[0] == 'B' {
			rate, err := strconv.Atoi(tok[1:])
			if err != nil {
				return p, fmt.Errorf("%w: %q", ErrUnknownParam, tok)
			}
			if !supportedBaud(rate) {
				return p, fmt.Errorf("%w: %d (valid rates: %v)", ErrBadBaudRate, rate, SupportedBaudRates)
			}
			p.baudRate = rate

			continue
		}

		// Flags take an optional positive or negative prefix.
		enable := true
		flag := tok
		switch tok[0] {
		case '+':
			flag = tok[1:]
		case '-':
			enable = false
			flag = tok[1:]
		}

		if flag == "crtscts" {
			p.rtscts = enable

			continue
		}

		return p, fmt.Errorf("%w: %q", ErrUnknownParam, tok)
	}

	return p, nil
}

func supportedBaud(rate int) bool {
	for _, r := range SupportedBaudRates {
		if r == rate {
			return true
		}
	}

	return false
}

// splitSerialDescriptor separates the device path from its parameter list.
func splitSerialDescriptor(descriptor string) (path, params string) {
	path, params, _ = strings.Cut(descriptor, ",")

	return path, params
}

// tcpAddr normalizes a "host[:port]" descriptor, appending the default
// port when none is given.
func tcpAddr(descriptor, defaultPort string) string {
	if _, _, err := net.SplitHostPort(descriptor); err == nil {
		return descriptor
	}

	return net.JoinHostPort(descriptor, defaultPort)
}
