//go:build !linux

package machine

import "fmt"

// Serial devices are only supported on Linux; elsewhere Open falls
// through to the TCP transport.
func openSerial(descriptor string) (Port, error) {
	path, _ := splitSerialDescriptor(descriptor)

	return nil, fmt.Errorf("%w: %s: serial unsupported on this platform", errSerialUnavailable, path)
}
