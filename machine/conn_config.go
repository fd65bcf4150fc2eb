package machine

import (
	"errors"
	"time"

	"github.com/machfeed/machfeed/logger"
)

// Defaults for connection options.
const (
	// DefaultReadBufferSize is the capacity of the response line reader.
	DefaultReadBufferSize = 64 * 1024

	// DefaultConnectTimeout bounds the TCP dial.
	DefaultConnectTimeout = 3 * time.Second

	// DefaultTCPPort is assumed when a "host[:port]" descriptor omits
	// the port.
	DefaultTCPPort = "8888"
)

type config struct {
	readBufSize    int
	connectTimeout time.Duration
	defaultPort    string
	logger         logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		readBufSize:    DefaultReadBufferSize,
		connectTimeout: DefaultConnectTimeout,
		defaultPort:    DefaultTCPPort,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for Open.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithReadBufferSize sets the buffer capacity, in bytes, of the response
// line reader.
func WithReadBufferSize(size int) Option {
	return optFunc(func(cfg *config) error {
		if size < 1 {
			return errors.New("machine: read buffer size must be >= 1")
		}
		cfg.readBufSize = size

		return nil
	})
}

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return errors.New("machine: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithDefaultPort sets the TCP port assumed when the descriptor omits one.
func WithDefaultPort(port string) Option {
	return optFunc(func(cfg *config) error {
		if port == "" {
			return errors.New("machine: default port must not be empty")
		}
		cfg.defaultPort = port

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("machine: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
