// Package gcode provides buffered, chunked reading of gcode input,
// yielding preprocessed blocks without comments or unnecessary whitespace.
//
// The central type is [LineReader], which reads larger chunks from an
// io.Reader into a fixed-size buffer and splits them into cleaned,
// newline-terminated blocks. Blocks returned by one read call are views
// into the internal buffer and are invalidated by the next call; callers
// must copy or fully consume a batch before requesting more.
package gcode
