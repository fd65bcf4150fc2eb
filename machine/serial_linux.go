//go:build linux

package machine

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openSerial opens descriptor as a local serial device and configures it
// for raw 8N1 operation with the requested speed and flow control.
//
// Failures before the device is configured (missing path, not a tty)
// return errSerialUnavailable so Open can fall through to TCP. Parameter
// and termios errors after a successful open are fatal; the descriptor
// is closed before returning.
func openSerial(descriptor string) (Port, error) {
	path, paramStr := splitSerialDescriptor(descriptor)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errSerialUnavailable, path, err)
	}

	params, err := parseSerialParams(paramStr)
	if err != nil {
		_ = unix.Close(fd)

		return nil, err
	}

	if err := configureTTY(fd, path, params); err != nil {
		_ = unix.Close(fd)

		return nil, err
	}

	// The fd stays non-blocking so the runtime poller can honor read
	// deadlines on the returned file.
	return os.NewFile(uintptr(fd), path), nil
}

// configureTTY puts the tty into raw non-canonical mode and applies the
// requested baud rate and RTS/CTS setting.
func configureTTY(fd int, path string, params serialParams) error {
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		// Openable but not a tty; let Open try the next transport.
		return fmt.Errorf("%w: %s is not a tty: %v", errSerialUnavailable, path, err)
	}

	// 8N1, no modem controls.
	tio.Cflag |= unix.CLOCAL | unix.CREAD
	tio.Cflag &^= unix.CSIZE
	tio.Cflag |= unix.CS8
	tio.Cflag &^= unix.PARENB
	tio.Cflag &^= unix.CSTOPB

	if params.rtscts {
		tio.Cflag |= unix.CRTSCTS
	} else {
		tio.Cflag &^= unix.CRTSCTS
	}

	// Raw, non-canonical mode.
	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Oflag &^= unix.OPOST

	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 1

	baud, err := baudFlag(params.baudRate)
	if err != nil {
		return err
	}
	tio.Cflag &^= unix.CBAUD
	tio.Cflag |= baud

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return fmt.Errorf("machine: cannot configure %s: %w", path, err)
	}

	return nil
}

// baudFlag maps a numeric rate to its termios speed constant. The rate
// set must stay in sync with SupportedBaudRates.
func baudFlag(rate int) (uint32, error) {
	switch rate {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	default:
		return 0, fmt.Errorf("%w: %d (valid rates: %v)", ErrBadBaudRate, rate, SupportedBaudRates)
	}
}
