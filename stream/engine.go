package stream

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/machfeed/machfeed/gcode"
	"github.com/machfeed/machfeed/logger"
	"github.com/machfeed/machfeed/machine"
)

// Sentinel errors for a streaming run.
var (
	// ErrWriteFailed reports an unrecoverable transport write failure.
	ErrWriteFailed = errors.New("stream: write to machine failed")
	// ErrBlockRejected reports a terminal failure response that the
	// operator-decision step did not recover from.
	ErrBlockRejected = errors.New("stream: machine rejected block")
)

// Engine owns a machine connection for the duration of one run and
// drives the full send/acknowledge cycle for its input.
//
// Engine is single-threaded: all transport I/O happens on the calling
// goroutine of Run. Only the Metrics counters may be observed
// concurrently.
type Engine struct {
	cfg     *engineConfig
	conn    *machine.Connection
	logger  logger.Logger
	metrics *Metrics
}

// NewEngine creates an Engine over conn. conn may be nil only in
// dry-run mode.
func NewEngine(conn *machine.Connection, opts ...Option) (*Engine, error) {
	cfg, err := newEngineConfig(opts...)
	if err != nil {
		return nil, err
	}

	if conn == nil && !cfg.dryRun {
		return nil, errors.New("stream: connection is nil and dry-run is off")
	}

	return &Engine{
		cfg:     cfg,
		conn:    conn,
		logger:  cfg.logger,
		metrics: newMetrics(),
	}, nil
}

// Metrics returns the run counters. Safe for concurrent readers.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Run streams all blocks from src to the machine, pacing on
// acknowledgments, and returns once the input is exhausted or a fatal
// condition occurred. Progress made before a mid-stream failure is
// reported in the returned error.
func (e *Engine) Run(src *gcode.LineReader) error {
	start := time.Now()
	useFlow := e.cfg.flowControl && !e.cfg.dryRun

	// Ignore initial chatter until the wire is silent; machines often
	// reset on connect and emit a banner. Even without flow control the
	// wait matters, otherwise early bytes answer the wrong block.
	if !e.cfg.dryRun {
		n, err := e.conn.DiscardPendingInput(e.cfg.settleTimeout, e.cfg.commWriter)
		if err != nil {
			return err
		}
		if n > 0 {
			e.metrics.BytesDiscarded.Add(int64(n))
			e.logger.Debug("stream: discarded startup chatter", "bytes", n)
		}
	}

	lineNo := 0

	for !src.Exhausted() {
		blocks := src.ReadNextLines(e.cfg.blockBufferCount)
		if len(blocks) == 0 {
			continue
		}

		// The whole group goes out in one write; responses are then
		// awaited strictly in send order.
		if !e.cfg.dryRun {
			if err := e.conn.WriteBlocks(blocks); err != nil {
				return fmt.Errorf("%w after %d blocks: %v", ErrWriteFailed, lineNo, err)
			}
		}

		for _, block := range blocks {
			lineNo++
			e.metrics.BlocksSent.Inc()

			if err := e.awaitAck(block, lineNo, useFlow); err != nil {
				return err
			}
		}
	}

	if err := src.Err(); err != nil {
		return fmt.Errorf("stream: reading input after %d blocks: %w", lineNo, err)
	}

	// One more discard pass: the machine should be silent now, so any
	// meaningful data here means sent blocks and acknowledgments are
	// imbalanced.
	if !e.cfg.dryRun {
		n, err := e.conn.DiscardPendingInput(e.cfg.settleTimeout, e.cfg.commWriter)
		if err != nil {
			e.logger.Warn("stream: draining trailing machine output failed", "error", err)
		}
		if n > 0 {
			e.metrics.BytesDiscarded.Add(int64(n))
			e.logger.Warn("stream: unexpected trailing output from machine",
				"bytes", n, "blocksSent", lineNo)
		}
	}

	e.logger.Info("stream: finished",
		"blocks", lineNo,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"dryRun", e.cfg.dryRun)

	return nil
}

// awaitAck reads response lines for one block until a terminal Ok or
// Error arrives. Intermediate messages are surfaced and the wait
// continues.
func (e *Engine) awaitAck(block []byte, lineNo int, useFlow bool) error {
	w := e.cfg.commWriter
	requestEchoed := false

	if !useFlow {
		e.metrics.OkCount.Inc()
		if w != nil {
			fmt.Fprintf(w, "%6d\t%s\n", lineNo, chomp(block))
		}

		return nil
	}

	for {
		ack := e.readAck()

		if w != nil {
			if !requestEchoed {
				fmt.Fprintf(w, "%6d\t%s ", lineNo, chomp(block))
				requestEchoed = true
			}
			if ack.Kind == AckOk {
				fmt.Fprintf(w, "<< OK\n")
			} else {
				fmt.Fprintf(w, "\n%s\n", ack.Text)
			}
		}

		switch ack.Kind {
		case AckOk:
			e.metrics.OkCount.Inc()

			return nil

		case AckMessage:
			e.metrics.MessageCount.Inc()
			e.logger.Info("stream: machine message", "line", lineNo, "text", ack.Text)

			continue // not a completed response yet

		case AckError:
			e.metrics.ErrorCount.Inc()
			e.logger.Error("stream: machine reported failure",
				"line", lineNo,
				"block", string(chomp(block)),
				"response", ack.Text)

			if e.cfg.errorHandler != nil {
				if herr := e.cfg.errorHandler(block, ack); herr == nil {
					// Operator chose to continue with the next block.
					return nil
				}
			}

			return fmt.Errorf("%w: line %d: %s", ErrBlockRejected, lineNo, ack.Text)
		}
	}
}

// readAck reads and classifies the next response line. A closed
// connection while awaiting a response classifies as a failure.
func (e *Engine) readAck() Ack {
	line := e.conn.ResponseLines().ReadLine()
	if line == nil {
		return Ack{Kind: AckError, Text: "nothing received from machine: connection closed"}
	}

	return classify(line, e.cfg.failureKeywords)
}

func chomp(block []byte) []byte {
	return bytes.TrimRight(block, "\r\n")
}
