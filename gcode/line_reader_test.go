package gcode

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains the reader in batches of batchSize, copying each block
// since returned slices are invalidated by the next call.
func collect(t *testing.T, lr *LineReader, batchSize int) []string {
	t.Helper()

	var out []string
	for !lr.Exhausted() {
		for _, line := range lr.ReadNextLines(batchSize) {
			out = append(out, string(line))
		}
	}

	return out
}

func TestLineReader_BasicLines(t *testing.T) {
	lr := NewLineReader(strings.NewReader("G1 X1\nG1 Y1\nG1 Z1\n"), 64, true)

	lines := collect(t, lr, 10)
	assert.Equal(t, []string{"G1 X1\n", "G1 Y1\n", "G1 Z1\n"}, lines)
	assert.NoError(t, lr.Err())
}

func TestLineReader_MaxCountBound(t *testing.T) {
	lr := NewLineReader(strings.NewReader("a\nb\nc\nd\ne\n"), 64, true)

	lines := lr.ReadNextLines(2)
	require.Len(t, lines, 2)
	assert.Equal(t, "a\n", string(lines[0]))
	assert.Equal(t, "b\n", string(lines[1]))

	lines = lr.ReadNextLines(100)
	assert.Len(t, lines, 3)
}

func TestLineReader_CommentRemoval(t *testing.T) {
	input := "G1 X1 ; move right\n; full comment line\nG1 Y2;c\n"

	lr := NewLineReader(strings.NewReader(input), 64, true)
	assert.Equal(t, []string{"G1 X1\n", "G1 Y2\n"}, collect(t, lr, 10))

	// With comment removal disabled, semicolons pass through.
	lr = NewLineReader(strings.NewReader(input), 64, false)
	assert.Equal(t,
		[]string{"G1 X1 ; move right\n", "; full comment line\n", "G1 Y2;c\n"},
		collect(t, lr, 10))
}

func TestLineReader_WhitespaceSuppression(t *testing.T) {
	// Lines of only whitespace or only a comment yield no block at all.
	input := "   \n\t\n;only comment\n  ; indented comment\n\n\nG0 X0\n"

	lr := NewLineReader(strings.NewReader(input), 64, true)
	assert.Equal(t, []string{"G0 X0\n"}, collect(t, lr, 10))
}

func TestLineReader_LineEndingCanonicalization(t *testing.T) {
	crlf := NewLineReader(strings.NewReader("G1 X1\r\nG1 Y1\r\n"), 64, true)
	lf := NewLineReader(strings.NewReader("G1 X1\nG1 Y1\n"), 64, true)
	cr := NewLineReader(strings.NewReader("G1 X1\rG1 Y1\r"), 64, true)

	want := []string{"G1 X1\n", "G1 Y1\n"}
	assert.Equal(t, want, collect(t, crlf, 10))
	assert.Equal(t, want, collect(t, lf, 10))
	assert.Equal(t, want, collect(t, cr, 10))
}

func TestLineReader_TrimsWhitespace(t *testing.T) {
	lr := NewLineReader(strings.NewReader("  G1 X1  \n\tG1 Y1\t\n"), 64, true)
	assert.Equal(t, []string{"G1 X1\n", "G1 Y1\n"}, collect(t, lr, 10))
}

func TestLineReader_FinalLineWithoutTerminator(t *testing.T) {
	lr := NewLineReader(strings.NewReader("G1 X1\nG1 Y1"), 64, true)
	assert.Equal(t, []string{"G1 X1\n", "G1 Y1\n"}, collect(t, lr, 10))
}

func TestLineReader_BufferSizeIndependence(t *testing.T) {
	const input = "G0 X0\nG1 X10 Y10 ; diag\n\n  M3 S1000  \r\nG1 Z-1\nM5"

	want := []string{"G0 X0\n", "G1 X10 Y10\n", "M3 S1000\n", "G1 Z-1\n", "M5\n"}

	for _, size := range []int{24, 32, 48, 64, 1024} {
		lr := NewLineReader(strings.NewReader(input), size, true)
		assert.Equal(t, want, collect(t, lr, 3), "buffer size %d", size)
		assert.NoError(t, lr.Err())
	}
}

func TestLineReader_ContentPreservation(t *testing.T) {
	const input = "G0X0\nG1X1\r\nG2X2\rG3X3"

	lr := NewLineReader(strings.NewReader(input), 16, false)

	var joined strings.Builder
	for _, line := range collect(t, lr, 2) {
		joined.WriteString(strings.TrimSuffix(line, "\n"))
	}

	assert.Equal(t, "G0X0G1X1G2X2G3X3", joined.String())
}

func TestLineReader_ReadLine(t *testing.T) {
	lr := NewLineReader(strings.NewReader(";c\nG1 X1\nG1 Y1\n"), 64, true)

	assert.Equal(t, "G1 X1\n", string(lr.ReadLine()))
	assert.Equal(t, "G1 Y1\n", string(lr.ReadLine()))
	assert.Nil(t, lr.ReadLine())
	assert.True(t, lr.Exhausted())
}

func TestLineReader_EmptyInput(t *testing.T) {
	lr := NewLineReader(strings.NewReader(""), 64, true)

	assert.Empty(t, lr.ReadNextLines(5))
	assert.True(t, lr.Exhausted())
	assert.NoError(t, lr.Err())
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}

	n := copy(p, f.data)
	f.data = f.data[n:]

	return n, nil
}

func TestLineReader_ReadErrorLatched(t *testing.T) {
	wantErr := errors.New("device gone")
	lr := NewLineReader(&failingReader{data: []byte("G1 X1\nG1 Y"), err: wantErr}, 64, true)

	// Buffered content, including the unterminated tail, is still yielded.
	assert.Equal(t, []string{"G1 X1\n", "G1 Y\n"}, collect(t, lr, 10))
	assert.ErrorIs(t, lr.Err(), wantErr)
	assert.True(t, lr.Exhausted())

	// After the error the reader keeps behaving as end-of-stream.
	assert.Empty(t, lr.ReadNextLines(1))
}

func TestLineReader_LineTooLong(t *testing.T) {
	lr := NewLineReader(strings.NewReader(strings.Repeat("X", 100)+"\n"), 16, true)

	for !lr.Exhausted() {
		lr.ReadNextLines(4)
	}

	assert.ErrorIs(t, lr.Err(), ErrLineTooLong)
}

// Exercises remainder carry-over with a reader that returns data in tiny
// chunks with EOF attached to the final one.
func TestLineReader_ChunkedReads(t *testing.T) {
	lr := NewLineReader(iotestOneByte{strings.NewReader("G1 X1\nG1 Y1")}, 64, true)
	assert.Equal(t, []string{"G1 X1\n", "G1 Y1\n"}, collect(t, lr, 10))
}

type iotestOneByte struct {
	r io.Reader
}

func (o iotestOneByte) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}

	return o.r.Read(p)
}
