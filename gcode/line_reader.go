package gcode

import (
	"errors"
	"io"
)

// ErrLineTooLong reports a line longer than the whole read buffer. Such a
// line cannot be carried over as a remainder, so the reader latches the
// error and behaves as exhausted rather than forwarding a truncated
// instruction to a machine.
var ErrLineTooLong = errors.New("gcode: line exceeds read buffer")

// LineReader reads gcode input in larger chunks (up to the configured
// buffer size) from an io.Reader and yields pre-tokenized blocks.
//
// If comment removal is enabled, semicolon end-of-line comments are
// removed. Leading and trailing whitespace is removed. Line endings
// "\r\n", "\r" or "\n" are canonicalized to exactly one '\n'. Empty lines
// are dropped.
//
// LineReader is not goroutine-safe and the blocks it returns alias its
// internal buffer; each read call invalidates the results of the
// previous one.
type LineReader struct {
	r              io.Reader
	buf            []byte
	size           int
	removeComments bool

	begin, end int
	rem        []byte // unterminated suffix carried to the next refill
	eof        bool
	err        error
}

// NewLineReader creates a LineReader over r with the given buffer
// capacity in bytes. bufSize bounds the length of a single line; a line
// that does not fit is reported via Err as ErrLineTooLong.
func NewLineReader(r io.Reader, bufSize int, removeComments bool) *LineReader {
	if bufSize < 2 {
		bufSize = 2
	}

	return &LineReader{
		r: r,
		// One spare byte holds the terminator synthesized for a final
		// line that ends without one.
		buf:            make([]byte, bufSize+1),
		size:           bufSize,
		removeComments: removeComments,
	}
}

// ReadNextLines reads at most n next lines (= gcode blocks) from the
// input. It may return fewer, including none, when the buffered chunk
// runs out before n terminators are found; that is not end of input.
// Results are only empty for good once Exhausted reports true.
//
// The returned slices are valid until the next call on the reader.
func (lr *LineReader) ReadNextLines(n int) [][]byte {
	result := make([][]byte, 0, n)

	if lr.begin >= lr.end && !lr.refill() {
		return result
	}

	for i := lr.begin; i < lr.end; i++ {
		if c := lr.buf[i]; c != '\n' && c != '\r' {
			continue
		}

		line := lr.cleanLine(lr.begin, i)
		lr.begin = i + 1

		if len(line) > 0 {
			result = append(result, line)
		}

		if len(result) >= n {
			return result
		}
	}

	lr.rem = lr.buf[lr.begin:lr.end]
	lr.begin = lr.end

	return result
}

// ReadLine is a convenience for reading a single block. It refills until
// one block is produced or the input is exhausted, in which case it
// returns nil.
func (lr *LineReader) ReadLine() []byte {
	for !lr.Exhausted() {
		lines := lr.ReadNextLines(1)
		if len(lines) == 0 {
			continue // buffer switchover
		}

		return lines[0]
	}

	return nil
}

// Exhausted reports whether the underlying stream has ended and all
// buffered data has been consumed.
func (lr *LineReader) Exhausted() bool {
	return lr.eof && lr.begin >= lr.end && len(lr.rem) == 0
}

// Err returns the first non-EOF read error encountered, if any. The
// error is latched: after it occurs the reader behaves as exhausted.
func (lr *LineReader) Err() error {
	return lr.err
}

// refill moves the carried remainder to the front of the buffer and
// issues one read into the remaining capacity. It reports whether any
// unconsumed data is available afterwards.
func (lr *LineReader) refill() bool {
	lr.end = copy(lr.buf, lr.rem)
	lr.begin = 0
	lr.rem = nil

	if lr.eof {
		if lr.end == 0 {
			return false
		}

		// Close the unterminated final line so it is not dropped.
		lr.buf[lr.end] = '\n'
		lr.end++

		return true
	}

	if lr.end >= lr.size {
		// The remainder alone fills the buffer: a single line with no
		// terminator in sight.
		lr.err = ErrLineTooLong
		lr.eof = true
		lr.begin, lr.end = 0, 0

		return false
	}

	n, err := lr.r.Read(lr.buf[lr.end:lr.size])
	lr.end += n

	if err != nil || n == 0 {
		// A reader that makes no progress without an error is treated as
		// end of stream, like a read(2) returning zero.
		lr.eof = true
		if err != nil && !errors.Is(err, io.EOF) {
			lr.err = err
		}

		if n == 0 && lr.end > lr.begin {
			lr.buf[lr.end] = '\n'
			lr.end++
		}
	}

	return lr.end > lr.begin
}

// cleanLine normalizes buf[first:term], where term indexes the line
// terminator: strips an end-of-line comment when enabled, trims
// surrounding whitespace and writes a fresh '\n' behind the resulting
// last character. It returns nil for lines that collapse to nothing.
func (lr *LineReader) cleanLine(first, term int) []byte {
	last := term - 1

	if lr.removeComments {
		for i := first; i <= last; i++ {
			if lr.buf[i] == ';' {
				last = i - 1
				break
			}
		}
	}

	for first <= last && isSpace(lr.buf[first]) {
		first++
	}
	for last >= first && isSpace(lr.buf[last]) {
		last--
	}

	if last < first {
		return nil
	}

	lr.buf[last+1] = '\n'

	return lr.buf[first : last+2]
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
