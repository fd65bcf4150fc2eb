// Package stream drives the send/acknowledge cycle that paces gcode
// transmission to a machine.
//
// Blocks are read from a [gcode.LineReader] in groups of up to the
// configured block buffer count, written to the machine in one write,
// and then acknowledged strictly in send order: each block waits for a
// terminal "ok" or failure-keyword response, with any other lines
// surfaced as informational messages that do not end the wait.
//
// Before the first block and after the last one, pending machine output
// is discarded until the wire has been quiet for the settle timeout, so
// boot banners and trailing chatter are not misclassified as responses.
// The boundary between "quiet long enough" and "a legitimate early
// response was lost" is heuristic: the wire protocol carries no sequence
// numbers, so acknowledgments cannot be correlated to blocks beyond
// their order. Known limitation.
package stream
