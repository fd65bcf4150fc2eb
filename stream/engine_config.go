package stream

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/machfeed/machfeed/logger"
)

// Defaults for engine options.
const (
	// DefaultBlockBufferCount sends one block at a time. Larger values
	// overlap transmission and processing but risk overrunning buffers
	// on low-memory machines.
	DefaultBlockBufferCount = 1

	// DefaultSettleTimeout is how long the wire must be silent before
	// the startup chatter discard ends; it covers a typical device
	// reset banner after connect.
	DefaultSettleTimeout = 2500 * time.Millisecond
)

// DefaultFailureKeywords are the response prefixes treated as terminal
// failures. The set is configurable because firmwares disagree on how
// they report failure.
var DefaultFailureKeywords = []string{"error", "alarm"}

// ErrorHandler decides what happens after the machine rejects a block.
// Returning nil continues with the next block; returning an error aborts
// the run.
type ErrorHandler func(block []byte, ack Ack) error

type engineConfig struct {
	blockBufferCount int
	settleTimeout    time.Duration
	flowControl      bool
	dryRun           bool
	failureKeywords  []string
	commWriter       io.Writer
	errorHandler     ErrorHandler
	logger           logger.Logger
}

func newEngineConfig(opts ...Option) (*engineConfig, error) {
	cfg := &engineConfig{
		blockBufferCount: DefaultBlockBufferCount,
		settleTimeout:    DefaultSettleTimeout,
		flowControl:      true,
		failureKeywords:  DefaultFailureKeywords,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for NewEngine.
type Option interface {
	apply(*engineConfig) error
}

type optFunc func(*engineConfig) error

func (f optFunc) apply(cfg *engineConfig) error { return f(cfg) }

// WithBlockBufferCount sets how many blocks are written to the transport
// before their responses are awaited. Must be >= 1.
func WithBlockBufferCount(n int) Option {
	return optFunc(func(cfg *engineConfig) error {
		if n < 1 {
			return fmt.Errorf("stream: block buffer count %d must be >= 1", n)
		}
		cfg.blockBufferCount = n

		return nil
	})
}

// WithSettleTimeout sets the quiet period used for the startup and
// shutdown chatter discards.
func WithSettleTimeout(d time.Duration) Option {
	return optFunc(func(cfg *engineConfig) error {
		if d < 0 {
			return errors.New("stream: settle timeout must not be negative")
		}
		cfg.settleTimeout = d

		return nil
	})
}

// WithFlowControl enables or disables waiting for "ok" acknowledgments.
// When disabled every block is assumed acknowledged without reading.
// Enabled by default.
func WithFlowControl(enabled bool) Option {
	return optFunc(func(cfg *engineConfig) error {
		cfg.flowControl = enabled

		return nil
	})
}

// WithDryRun skips the transport entirely: nothing is written or read
// and every block counts as acknowledged. Used to validate that a file
// parses without sending anything.
func WithDryRun(enabled bool) Option {
	return optFunc(func(cfg *engineConfig) error {
		cfg.dryRun = enabled

		return nil
	})
}

// WithFailureKeywords replaces the set of case-insensitive response
// prefixes treated as terminal failures.
func WithFailureKeywords(keywords ...string) Option {
	return optFunc(func(cfg *engineConfig) error {
		if len(keywords) == 0 {
			return errors.New("stream: at least one failure keyword is required")
		}
		cfg.failureKeywords = keywords

		return nil
	})
}

// WithCommWriter echoes the request/response conversation, line numbers
// included, to w. Discarded chatter is echoed there as well.
func WithCommWriter(w io.Writer) Option {
	return optFunc(func(cfg *engineConfig) error {
		cfg.commWriter = w

		return nil
	})
}

// WithErrorHandler installs the operator-decision step invoked after a
// terminal failure response. Without a handler the engine aborts on the
// first failure; silently dropping a failed instruction on a physical
// machine is not an option.
func WithErrorHandler(h ErrorHandler) Option {
	return optFunc(func(cfg *engineConfig) error {
		cfg.errorHandler = h

		return nil
	})
}

// WithLogger sets the logger for the engine.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *engineConfig) error {
		if l == nil {
			return errors.New("stream: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
