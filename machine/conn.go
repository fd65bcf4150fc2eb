package machine

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/machfeed/machfeed/gcode"
	"github.com/machfeed/machfeed/logger"
)

// Port is a bidirectional byte channel to a machine. One concrete type
// exists per transport kind, selected once at Open time.
type Port interface {
	io.ReadWriteCloser

	// SetReadDeadline bounds subsequent Read calls; the zero time means
	// no deadline. It backs DiscardPendingInput's silence detection.
	SetReadDeadline(t time.Time) error
}

// Connection is a live bidirectional channel to a machine plus a line
// reader over its responses.
//
// A Connection is owned by a single streaming run; it is not
// goroutine-safe. Close closes the underlying port exactly once.
type Connection struct {
	port       Port
	reader     *gcode.LineReader
	logger     logger.Logger
	descriptor string

	wbuf      []byte // scratch for WriteBlocks, reused across calls
	closeOnce sync.Once
	closeErr  error
}

// Open resolves descriptor into a Connection, attempting transports in a
// fixed order: stdio sentinel, serial device, TCP endpoint.
//
// A serial path that cannot be opened falls through to TCP silently.
// Once a device is opened, any parameter error (bad speed, unknown
// token) is fatal and no partial connection is left behind.
func Open(descriptor string, opts ...Option) (*Connection, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	if descriptor == "" {
		return nil, fmt.Errorf("%w: empty descriptor", ErrConnectFailed)
	}

	if descriptor == StdioDescriptor {
		return newConnection(&stdioPort{in: os.Stdin, out: os.Stdout}, descriptor, cfg), nil
	}

	port, serr := openSerial(descriptor)
	if serr == nil {
		return newConnection(port, descriptor, cfg), nil
	}
	if !errors.Is(serr, errSerialUnavailable) {
		// The device opened but could not be configured.
		return nil, serr
	}

	cfg.logger.Debug("machine: not a serial device, trying TCP",
		"descriptor", descriptor, "reason", serr.Error())

	conn, derr := net.DialTimeout("tcp", tcpAddr(descriptor, cfg.defaultPort), cfg.connectTimeout)
	if derr != nil {
		return nil, fmt.Errorf("%w: %q is not a tty and not a reachable TCP endpoint: %v",
			ErrConnectFailed, descriptor, derr)
	}

	return newConnection(conn, descriptor, cfg), nil
}

func newConnection(port Port, descriptor string, cfg *config) *Connection {
	return &Connection{
		port: port,
		// Comment removal stays off for responses; machines may emit
		// semicolons in telemetry.
		reader:     gcode.NewLineReader(port, cfg.readBufSize, false),
		logger:     cfg.logger,
		descriptor: descriptor,
	}
}

// Descriptor returns the descriptor string this connection was opened
// with.
func (c *Connection) Descriptor() string {
	return c.descriptor
}

// ResponseLines returns the line reader over the machine's responses.
func (c *Connection) ResponseLines() *gcode.LineReader {
	return c.reader
}

// DiscardPendingInput reads and discards whatever the machine sends
// until the line has been silent for timeout. Many machines produce
// boot-up chatter on connect; draining it keeps stray bytes from being
// misclassified as responses to the first real block.
//
// Discarded bytes are forwarded to echo when it is non-nil. The count of
// discarded bytes is returned.
func (c *Connection) DiscardPendingInput(timeout time.Duration, echo io.Writer) (int, error) {
	total := 0
	buf := make([]byte, 128)

	for {
		if err := c.port.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			if errors.Is(err, os.ErrNoDeadline) {
				// Input cannot signal readiness (e.g. stdin redirected
				// from a regular file); nothing to drain.
				return total, nil
			}

			return total, err
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			total += n
			if echo != nil {
				_, _ = echo.Write(buf[:n])
			}
		}

		if err != nil {
			_ = c.port.SetReadDeadline(time.Time{})

			if isTimeout(err) || errors.Is(err, io.EOF) {
				return total, nil // silence on the wire
			}

			return total, fmt.Errorf("machine: discarding input: %w", err)
		}
	}
}

// WriteBlocks concatenates all blocks into one contiguous buffer and
// performs a reliable write, retrying on partial writes. The scratch
// buffer is owned by the connection and reused across calls.
func (c *Connection) WriteBlocks(blocks [][]byte) error {
	total := 0
	for _, b := range blocks {
		total += len(b)
	}
	if total == 0 {
		return nil
	}

	if cap(c.wbuf) < total {
		c.wbuf = make([]byte, 0, total)
	}

	buf := c.wbuf[:0]
	for _, b := range blocks {
		buf = append(buf, b...)
	}
	c.wbuf = buf

	return c.writeAll(buf)
}

func (c *Connection) writeAll(data []byte) error {
	for written := 0; written < len(data); {
		n, err := c.port.Write(data[written:])
		written += n

		if err != nil {
			return fmt.Errorf("machine: write failed after %d of %d bytes: %w",
				written, len(data), err)
		}
	}

	return nil
}

// Close closes the underlying port. Safe to call multiple times; only
// the first call has effect.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.port.Close()
		c.logger.Debug("machine: connection closed", "descriptor", c.descriptor)
	})

	return c.closeErr
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var nerr net.Error

	return errors.As(err, &nerr) && nerr.Timeout()
}

// stdioPort adapts the process's standard streams to the Port interface
// for scripted or piped use. Close leaves the process streams open.
type stdioPort struct {
	in  *os.File
	out *os.File
}

func (p *stdioPort) Read(b []byte) (int, error) { return p.in.Read(b) }

func (p *stdioPort) Write(b []byte) (int, error) { return p.out.Write(b) }

func (p *stdioPort) SetReadDeadline(t time.Time) error { return p.in.SetReadDeadline(t) }

func (p *stdioPort) Close() error { return nil }
