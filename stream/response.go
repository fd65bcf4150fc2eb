package stream

import "strings"

// AckKind classifies a machine response line.
type AckKind int

const (
	// AckOk acknowledges a block and ends the wait for it.
	AckOk AckKind = iota
	// AckError reports a failed block; it ends the wait and triggers
	// the operator-decision step.
	AckError
	// AckMessage is an intermediate line (e.g. telemetry) that does not
	// end the wait; it is merely surfaced for display.
	AckMessage
)

func (k AckKind) String() string {
	switch k {
	case AckOk:
		return "ok"
	case AckError:
		return "error"
	case AckMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Ack is one classified response from the machine.
type Ack struct {
	Kind AckKind
	Text string
}

// classify maps a response line to an Ack by case-insensitive prefix:
// "ok" acknowledges, any of the failure keywords fails, everything else
// is an informational message.
func classify(line []byte, failureKeywords []string) Ack {
	text := strings.TrimSpace(string(line))

	if hasPrefixFold(text, "ok") {
		return Ack{Kind: AckOk, Text: text}
	}

	for _, kw := range failureKeywords {
		if hasPrefixFold(text, kw) {
			return Ack{Kind: AckError, Text: text}
		}
	}

	return Ack{Kind: AckMessage, Text: text}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
